// Package store is the public entry point to xanote persistence. New picks
// the backend named in the config; the backends themselves stay internal.
//
//	a, err := store.New(types.Config{Backend: types.BackendSQLite, DataDir: dir})
//	if err != nil { ... }
//	if err := a.Initialize(ctx); err != nil { ... }
//	defer a.Close()
package store

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/xanote/internal/d1"
	"github.com/mesh-intelligence/xanote/internal/sqlite"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

// New returns an uninitialized adapter for cfg.Backend.
func New(cfg types.Config) (types.Adapter, error) {
	switch cfg.Backend {
	case types.BackendSQLite:
		return sqlite.NewBackend(cfg), nil
	case types.BackendD1:
		return d1.NewBackend(cfg), nil
	case "":
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, types.ErrBackendEmpty)
	default:
		return nil, fmt.Errorf("%w: %w: %q", types.ErrConfiguration, types.ErrBackendUnknown, cfg.Backend)
	}
}

// Open returns an initialized adapter for cfg.
func Open(ctx context.Context, cfg types.Config) (types.Adapter, error) {
	a, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := a.Initialize(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// RequireInstalled returns types.ErrNotInstalled unless a reports the
// system as installed.
func RequireInstalled(ctx context.Context, a types.Adapter) error {
	if !a.IsInstalled(ctx) {
		return types.ErrNotInstalled
	}
	return nil
}
