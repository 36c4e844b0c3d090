// Package sqlite implements the embedded xanote storage backend on SQLite.
// All statements run on a single connection, so persistence operations are
// serialised within the process.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/xanote/internal/schema"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

// DatabaseFile is the file name created inside Config.DataDir.
const DatabaseFile = "xanote.db"

// MemoryDataDir selects a private in-memory database instead of a file.
const MemoryDataDir = ":memory:"

// Backend implements types.Adapter on an embedded SQLite database.
type Backend struct {
	mu     sync.RWMutex
	state  types.State
	config types.Config
	db     *sqlx.DB

	// closing records a Close that arrived while bootstrapping.
	closing bool

	bootstrap func(context.Context, types.Preparer, schema.Options) (bool, error)
}

var _ types.Adapter = (*Backend)(nil)

// NewBackend creates a SQLite backend for config. The backend is not
// initialized; call Initialize before use.
func NewBackend(config types.Config) *Backend {
	return &Backend{config: config, bootstrap: schema.Bootstrap}
}

// State returns the current lifecycle state.
func (b *Backend) State() types.State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Initialize opens the database file, applies the schema and seeds a fresh
// database. Returns ErrAlreadyInitialized if the backend is ready or
// bootstrapping, and ErrConfiguration if no data directory is configured.
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
	dsn, err := b.dsn()
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.state = types.StateBootstrapping
	b.mu.Unlock()

	db, err := open(ctx, dsn)
	if err == nil {
		_, err = b.bootstrap(ctx, NewConn(db), schema.Options{
			BackfillDefaults: b.config.BackfillDefaults,
		})
		if err != nil {
			db.Close()
			err = fmt.Errorf("bootstrap: %w", err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closing {
		b.closing = false
		b.state = types.StateClosed
		if err == nil {
			db.Close()
			err = fmt.Errorf("closed while bootstrapping: %w", types.ErrNotInitialized)
		}
		return err
	}
	if err != nil {
		b.state = types.StateUninitialized
		return err
	}
	b.db = db
	b.state = types.StateReady

	log.WithField("dsn", dsn).Debug("sqlite database initialized")
	return nil
}

// dsn returns the driver data source name for the configured data directory,
// creating the directory when needed.
func (b *Backend) dsn() (string, error) {
	dataDir := b.config.DataDir
	switch dataDir {
	case "":
		return "", fmt.Errorf("%w: sqlite data directory is empty", types.ErrConfiguration)
	case MemoryDataDir:
		return MemoryDataDir, nil
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dataDir, DatabaseFile)
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
}

// open opens a single-connection handle and checks it answers.
func open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One shared connection. For :memory: this is also what keeps every
	// statement on the same database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// handle returns the live connection, or ErrNotInitialized when the backend
// is not ready.
func (b *Backend) handle() (*sqlx.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state != types.StateReady || b.db == nil {
		return nil, types.ErrNotInitialized
	}
	return b.db, nil
}

// Prepare returns a statement for query. State is checked when the statement
// executes.
func (b *Backend) Prepare(query string) types.Statement {
	return &statement{query: query, handle: b.handle}
}

// Exec splits script into statements and executes them in order. Statements
// before a failing one stay committed.
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

// Close releases the connection. Close is idempotent. After Close, all
// operations return ErrNotInitialized. A Close during Initialize takes effect
// when bootstrapping finishes, and that Initialize returns ErrNotInitialized.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == types.StateBootstrapping {
		b.closing = true
		return nil
	}

	if b.db == nil {
		if b.state == types.StateReady {
			b.state = types.StateClosed
		}
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.state = types.StateClosed
	return err
}
