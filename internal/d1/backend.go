// Package d1 implements the remote xanote storage backend on a Cloudflare D1
// database reached over the HTTP query API.
//
// Each statement call is one network request. Callers must not assume
// atomicity across calls: a Get followed by a Run based on its value may race
// with another writer.
package d1

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/xanote/internal/schema"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

// Backend implements types.Adapter on a remote D1 database.
type Backend struct {
	mu         sync.RWMutex
	state      types.State
	config     types.Config
	httpClient *http.Client
	client     *Client

	// closing records a Close that arrived while bootstrapping.
	closing bool
}

var _ types.Adapter = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithHTTPClient sets the HTTP client used for queries.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.httpClient = c }
}

// NewBackend creates a D1 backend for config. The backend is not
// initialized; call Initialize before use.
func NewBackend(config types.Config, opts ...Option) *Backend {
	b := &Backend{config: config}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current lifecycle state.
func (b *Backend) State() types.State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Initialize validates the D1 binding, applies the schema statement by
// statement and seeds a fresh database.
func (b *Backend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	if b.state == types.StateReady || b.state == types.StateBootstrapping {
		b.mu.Unlock()
		return types.ErrAlreadyInitialized
	}
	if err := b.config.Validate(); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}
	client, err := NewClient(b.config.D1, b.httpClient)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.state = types.StateBootstrapping
	b.mu.Unlock()

	_, err = schema.Bootstrap(ctx, clientConn{client}, schema.Options{
		BackfillDefaults: b.config.BackfillDefaults,
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closing {
		b.closing = false
		b.state = types.StateClosed
		if err == nil {
			return fmt.Errorf("closed while bootstrapping: %w", types.ErrNotInitialized)
		}
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err != nil {
		b.state = types.StateUninitialized
		return fmt.Errorf("bootstrap: %w", err)
	}
	b.client = client
	b.state = types.StateReady

	log.WithField("database", b.config.D1.DatabaseID).Debug("d1 database initialized")
	return nil
}

// handle returns the live client, or ErrNotInitialized when the backend is
// not ready.
func (b *Backend) handle() (*Client, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state != types.StateReady || b.client == nil {
		return nil, types.ErrNotInitialized
	}
	return b.client, nil
}

// Prepare returns a statement for query. State is checked when the statement
// executes.
func (b *Backend) Prepare(query string) types.Statement {
	return &statement{query: query, handle: b.handle}
}

// Exec runs each statement of script as a separate request, since D1 has no
// multi-statement execution in one call. Statements before a failing one
// stay committed.
func (b *Backend) Exec(ctx context.Context, script string) error {
	if _, err := b.handle(); err != nil {
		return err
	}
	for _, stmt := range schema.SplitStatements(script) {
		if _, err := b.Prepare(stmt).Run(ctx); err != nil {
			return fmt.Errorf("exec: %w", err)
		}
	}
	return nil
}

// IsInstalled reports whether system.installed is "1". Errors read as not
// installed.
func (b *Backend) IsInstalled(ctx context.Context) bool {
	row, err := b.Prepare(`SELECT value FROM settings WHERE key = ?`).Get(ctx, types.KeyInstalled)
	if err != nil {
		return false
	}
	return row.String("value") == types.InstalledValue
}

// Close drops the client. There is no connection to release. Close is
// idempotent. A Close during Initialize takes effect when bootstrapping
// finishes, and that Initialize returns ErrNotInitialized.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == types.StateBootstrapping {
		b.closing = true
		return nil
	}
	if b.state == types.StateReady {
		b.state = types.StateClosed
	}
	b.client = nil
	return nil
}

// clientConn exposes a client as a types.Preparer without lifecycle checks,
// for use while bootstrapping.
type clientConn struct {
	client *Client
}

func (c clientConn) Prepare(query string) types.Statement {
	return &statement{query: query, handle: func() (*Client, error) { return c.client, nil }}
}
