package types

import (
	"context"
	"encoding/json"
	"time"
)

// Row is one result row keyed by column name. Values are normalised to
// string, int64, float64, []byte or nil so that both backends return
// identical rows for identical queries.
//
// One difference remains for REAL columns: D1 encodes a whole-valued REAL
// such as 2.0 as the JSON number 2, which normalises to int64, while SQLite
// returns float64. No table in the schema has a REAL column. Read such
// columns with Float64.
type Row map[string]any

// String returns the column as a string, or "" when absent or NULL.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Int64 returns the column as an int64, or 0 when absent or not numeric.
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Float64 returns the column as a float64, or 0 when absent or not numeric.
// It reads whole-valued REALs the same from both backends.
func (r Row) Float64(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Result reports the outcome of Statement.Run.
type Result struct {
	Changes      int64
	LastInsertID *int64
}

// Statement executes one parameterised query. Every operation blocks until
// the backend answers or ctx is done.
type Statement interface {
	// Get returns the first matching row, or nil when nothing matches.
	Get(ctx context.Context, args ...any) (Row, error)

	// All returns every matching row in order. The slice is empty, not nil,
	// when nothing matches.
	All(ctx context.Context, args ...any) ([]Row, error)

	// Run executes a write and reports the affected row count.
	Run(ctx context.Context, args ...any) (Result, error)
}

// NormalizeValue converts a column value produced by a driver or a JSON
// decoder into the Row value set: string, int64, float64, []byte or nil.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil, string, int64, float64, []byte:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return x
	}
}

// NormalizeRow applies NormalizeValue to every column of m.
func NormalizeRow(m map[string]any) Row {
	row := make(Row, len(m))
	for k, v := range m {
		row[k] = NormalizeValue(v)
	}
	return row
}
