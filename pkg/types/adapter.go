package types

import (
	"context"
	"errors"
)

// State is the lifecycle position of an Adapter.
type State int

// Adapter lifecycle states. Only Initialize is valid before Ready.
const (
	StateUninitialized State = iota
	StateBootstrapping
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBootstrapping:
		return "bootstrapping"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Preparer hands out statements bound to a query text.
type Preparer interface {
	// Prepare returns a Statement for query. It never fails; state and SQL
	// errors surface when the statement is executed.
	Prepare(query string) Statement
}

// Adapter is the backend-agnostic persistence contract. The embedded SQLite
// backend and the remote D1 backend both implement it.
type Adapter interface {
	Preparer

	// Initialize acquires the backend handle, applies the schema, and seeds a
	// fresh database. Returns ErrConfiguration when the handle or binding is
	// missing and ErrAlreadyInitialized when called on a ready adapter.
	Initialize(ctx context.Context) error

	// IsInstalled reports whether the system.installed setting equals "1".
	// A missing row, or any read failure, means not installed.
	IsInstalled(ctx context.Context) bool

	// Exec runs a multi-statement script one statement at a time. Statements
	// before a failing one stay committed.
	Exec(ctx context.Context, script string) error

	// Close releases the handle. Later operations return ErrNotInitialized.
	Close() error

	// State returns the current lifecycle state.
	State() State
}

// Adapter lifecycle errors.
var (
	ErrNotInitialized     = errors.New("database not initialized")
	ErrAlreadyInitialized = errors.New("database already initialized")
	ErrConfiguration      = errors.New("database configuration error")
	ErrNotInstalled       = errors.New("NOT_INSTALLED")
	ErrAlreadyInstalled   = errors.New("ALREADY_INSTALLED")
	ErrTransient          = errors.New("transient I/O error")
)
