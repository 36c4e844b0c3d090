package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/xanote/pkg/types"
)

// TimestampLayout formats export and last-backup timestamps: RFC 3339 in UTC
// with milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// NotesFileName returns the notes export file name for t.
func NotesFileName(t time.Time) string {
	return fmt.Sprintf("notes-backup-%s.json", t.UTC().Format(time.DateOnly))
}

// DatabaseFileName returns the database export file name for t.
func DatabaseFileName(t time.Time) string {
	return fmt.Sprintf("database-backup-%s.json", t.UTC().Format(time.DateOnly))
}

// NotesExport is the notes export document.
type NotesExport struct {
	Notes      []types.Row `json:"notes"`
	Categories []types.Row `json:"categories"`
	ExportTime string      `json:"exportTime"`
}

// DatabaseExport is the full database export document. Field order fixes
// the key order of the encoded object.
type DatabaseExport struct {
	Settings   []types.Row `json:"settings"`
	Categories []types.Row `json:"categories"`
	Notes      []types.Row `json:"notes"`
	Shares     []types.Row `json:"shares"`
	Trash      []types.Row `json:"trash"`
}

// Table returns a pointer to the rows of the named table, or nil for a
// table that is not exported.
func (d *DatabaseExport) Table(name string) *[]types.Row {
	switch name {
	case types.SettingsTable:
		return &d.Settings
	case types.CategoriesTable:
		return &d.Categories
	case types.NotesTable:
		return &d.Notes
	case types.SharesTable:
		return &d.Shares
	case types.TrashTable:
		return &d.Trash
	}
	return nil
}

// ExportNotes reads every note, newest update first, and every category.
// Any read failure fails the export.
func ExportNotes(ctx context.Context, db types.Preparer, now time.Time) (*NotesExport, error) {
	notes, err := db.Prepare(`SELECT * FROM notes ORDER BY updated_at DESC`).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("read notes: %w", err)
	}
	categories, err := db.Prepare(`SELECT * FROM categories`).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	return &NotesExport{
		Notes:      notes,
		Categories: categories,
		ExportTime: now.UTC().Format(TimestampLayout),
	}, nil
}

// ExportDatabase reads every row of each backup table. A table that cannot
// be read is exported as an empty list and named in the returned slice.
func ExportDatabase(ctx context.Context, db types.Preparer) (*DatabaseExport, []string) {
	export := &DatabaseExport{}
	var failed []string
	for _, table := range types.BackupTableNames {
		rows, err := db.Prepare(`SELECT * FROM ` + table).All(ctx)
		if err != nil {
			log.WithError(err).WithField("table", table).Warn("backup table read failed, exporting empty list")
			failed = append(failed, table)
			rows = []types.Row{}
		}
		*export.Table(table) = rows
	}
	return export, failed
}

// Encode renders v as JSON indented by two spaces.
func Encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return data, nil
}
