package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "empty script",
			script: "  \n\t ",
			want:   nil,
		},
		{
			name:   "two statements",
			script: "CREATE TABLE a (x);\nCREATE TABLE b (y);",
			want:   []string{"CREATE TABLE a (x)", "CREATE TABLE b (y)"},
		},
		{
			name:   "missing trailing semicolon",
			script: "SELECT 1; SELECT 2",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "semicolon inside string literal",
			script: "INSERT INTO t VALUES ('a;b'); SELECT 1;",
			want:   []string{"INSERT INTO t VALUES ('a;b')", "SELECT 1"},
		},
		{
			name:   "escaped quote inside literal",
			script: "INSERT INTO t VALUES ('it''s; fine');",
			want:   []string{"INSERT INTO t VALUES ('it''s; fine')"},
		},
		{
			name:   "quoted identifier",
			script: `SELECT "a;b" FROM t;`,
			want:   []string{`SELECT "a;b" FROM t`},
		},
		{
			name:   "comment-only statements are dropped",
			script: "-- just a comment;\n;;/* block; comment */;",
			want:   nil,
		},
		{
			name:   "line comment before statement",
			script: "-- note; here\nSELECT 1;",
			want:   []string{"-- note; here\nSELECT 1"},
		},
		{
			name:   "block comment inside statement",
			script: "SELECT /* ; */ 1;",
			want:   []string{"SELECT /* ; */ 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitStatements(tt.script))
		})
	}
}

func TestScriptRoundTrip(t *testing.T) {
	got := SplitStatements(Script())
	assert.Len(t, got, len(Statements()))
}
