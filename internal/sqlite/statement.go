package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/mesh-intelligence/xanote/internal/metrics"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

const backendName = "sqlite"

// Conn exposes an open handle as a types.Preparer without lifecycle checks.
// The backend uses it while bootstrapping; tests use it to drive the schema
// package directly.
type Conn struct {
	db *sqlx.DB
}

// NewConn wraps db.
func NewConn(db *sqlx.DB) *Conn {
	return &Conn{db: db}
}

// Prepare returns a statement for query.
func (c *Conn) Prepare(query string) types.Statement {
	return &statement{query: query, handle: func() (*sqlx.DB, error) { return c.db, nil }}
}

// statement runs one query on the handle returned by handle.
type statement struct {
	query  string
	handle func() (*sqlx.DB, error)
}

func (s *statement) Get(ctx context.Context, args ...any) (types.Row, error) {
	row, err := s.get(ctx, args)
	metrics.StatementsTotal.WithLabelValues(backendName, "get", metrics.Status(err)).Inc()
	return row, err
}

func (s *statement) get(ctx context.Context, args []any) (types.Row, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	m := make(map[string]any)
	err = db.QueryRowxContext(ctx, s.query, args...).MapScan(m)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return types.NormalizeRow(m), nil
}

func (s *statement) All(ctx context.Context, args ...any) ([]types.Row, error) {
	rows, err := s.all(ctx, args)
	metrics.StatementsTotal.WithLabelValues(backendName, "all", metrics.Status(err)).Inc()
	return rows, err
}

func (s *statement) all(ctx context.Context, args []any) ([]types.Row, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryxContext(ctx, s.query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.Row{}
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return nil, err
		}
		out = append(out, types.NormalizeRow(m))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *statement) Run(ctx context.Context, args ...any) (types.Result, error) {
	res, err := s.run(ctx, args)
	metrics.StatementsTotal.WithLabelValues(backendName, "run", metrics.Status(err)).Inc()
	return res, err
}

func (s *statement) run(ctx context.Context, args []any) (types.Result, error) {
	db, err := s.handle()
	if err != nil {
		return types.Result{}, err
	}

	res, err := db.ExecContext(ctx, s.query, args...)
	if err != nil {
		return types.Result{}, err
	}

	var out types.Result
	if out.Changes, err = res.RowsAffected(); err != nil {
		return types.Result{}, err
	}
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = &id
	}
	return out, nil
}
