// Package schema declares the xanote table set, the rows seeded into a fresh
// database, and the bootstrap sequence shared by every backend.
package schema

import "strings"

// Table DDL. Every statement is create-if-absent so the schema can be applied
// on each start.
const (
	createSettings = `CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER
);`

	createCategories = `CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at INTEGER
);`

	createNotes = `CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    title TEXT,
    content TEXT,
    tags TEXT,
    category_id TEXT,
    created_at INTEGER,
    updated_at INTEGER
);`

	createShares = `CREATE TABLE IF NOT EXISTS shares (
    id TEXT PRIMARY KEY,
    note_id TEXT,
    password TEXT,
    expires_at INTEGER,
    created_at INTEGER
);`

	createTrash = `CREATE TABLE IF NOT EXISTS trash (
    id TEXT PRIMARY KEY,
    title TEXT,
    content TEXT,
    tags TEXT,
    category_id TEXT,
    created_at INTEGER,
    updated_at INTEGER,
    deleted_at INTEGER
);`

	createLogs = `CREATE TABLE IF NOT EXISTS logs (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    action TEXT NOT NULL,
    target_type TEXT,
    target_id TEXT,
    details TEXT,
    ip_address TEXT,
    user_agent TEXT,
    created_at INTEGER NOT NULL
);`
)

// Index DDL for the list and retention queries.
const (
	idxNotesCategory = `CREATE INDEX IF NOT EXISTS idx_notes_category ON notes(category_id);`
	idxNotesUpdated  = `CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at);`
	idxSharesNote    = `CREATE INDEX IF NOT EXISTS idx_shares_note ON shares(note_id);`
	idxLogsUser      = `CREATE INDEX IF NOT EXISTS idx_logs_user_created ON logs(user_id, created_at);`
	idxLogsCreated   = `CREATE INDEX IF NOT EXISTS idx_logs_created ON logs(created_at);`
)

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createSettings,
	createCategories,
	createNotes,
	createShares,
	createTrash,
	createLogs,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxNotesCategory,
	idxNotesUpdated,
	idxSharesNote,
	idxLogsUser,
	idxLogsCreated,
}

// Statements returns every schema statement in execution order: tables first,
// then indexes.
func Statements() []string {
	stmts := make([]string, 0, len(schemaDDL)+len(indexDDL))
	stmts = append(stmts, schemaDDL...)
	stmts = append(stmts, indexDDL...)
	return stmts
}

// Script returns the schema as one multi-statement script, suitable for
// Adapter.Exec.
func Script() string {
	return strings.Join(Statements(), "\n\n")
}
