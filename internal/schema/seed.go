package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/mesh-intelligence/xanote/pkg/types"
)

// Seeded identifiers. The default note belongs to the default category and the
// default share points at the default note, so seeding order matters.
const (
	DefaultCategoryID = "default"
	WelcomeNoteID     = "xa-note-welcome"
	WelcomeShareID    = "xa-note"
)

// DefaultSettings are inserted into a fresh database.
var DefaultSettings = map[string]string{
	types.KeyLanguage: "zh",
}

// defaultSettingKeys fixes the insertion order of DefaultSettings.
var defaultSettingKeys = []string{
	types.KeyLanguage,
}

const welcomeContent = `# XA Note

XA Note is a **lightweight, fully self-hosted personal note system**. You deploy
and run it yourself; every note stays on your own server.

## Features

- **Markdown editing** with live preview
- **Categories and tags** to keep knowledge organised
- **Full-text search**
- **Read-only sharing** with optional password and expiry
- **WebDAV backup** on a daily, weekly or monthly schedule
- **Audit log** of every administrative action

## Configuration

Site, login, lock screen, backup and log retention settings are all managed
from the web interface. No configuration file edits are required.
`

// seedCategories, seedNotes and seedShares are built per call so that
// timestamps reflect the bootstrap time.
func seedCategories(now int64) []types.Category {
	return []types.Category{
		{ID: DefaultCategoryID, Name: "Default", CreatedAt: now},
	}
}

func seedNotes(now int64) []types.Note {
	return []types.Note{
		{
			ID:         WelcomeNoteID,
			Title:      "XA Note",
			Content:    welcomeContent,
			Tags:       "",
			CategoryID: DefaultCategoryID,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
}

func seedShares(now int64) []types.Share {
	return []types.Share{
		{ID: WelcomeShareID, NoteID: WelcomeNoteID, CreatedAt: now},
	}
}

// Seed inserts the default settings, category, note and share, in that order.
// It must only run against a fresh database; see IsFresh.
func Seed(ctx context.Context, db types.Preparer) error {
	now := time.Now().UnixMilli()

	insertSetting := db.Prepare(`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)`)
	for _, key := range defaultSettingKeys {
		if _, err := insertSetting.Run(ctx, key, DefaultSettings[key], now); err != nil {
			return fmt.Errorf("seeding setting %s: %w", key, err)
		}
	}

	insertCategory := db.Prepare(`INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?)`)
	for _, c := range seedCategories(now) {
		if _, err := insertCategory.Run(ctx, c.ID, c.Name, c.CreatedAt); err != nil {
			return fmt.Errorf("seeding category %s: %w", c.ID, err)
		}
	}

	insertNote := db.Prepare(`INSERT INTO notes (id, title, content, tags, category_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for _, n := range seedNotes(now) {
		if _, err := insertNote.Run(ctx, n.ID, n.Title, n.Content, n.Tags, n.CategoryID, n.CreatedAt, n.UpdatedAt); err != nil {
			return fmt.Errorf("seeding note %s: %w", n.ID, err)
		}
	}

	insertShare := db.Prepare(`INSERT INTO shares (id, note_id, password, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`)
	for _, s := range seedShares(now) {
		if _, err := insertShare.Run(ctx, s.ID, s.NoteID, s.Password, s.ExpiresAt, s.CreatedAt); err != nil {
			return fmt.Errorf("seeding share %s: %w", s.ID, err)
		}
	}

	return nil
}

// BackfillSettings inserts any DefaultSettings key missing from a database
// that was seeded earlier. Existing values are never touched. It returns the
// number of keys inserted.
func BackfillSettings(ctx context.Context, db types.Preparer) (int64, error) {
	now := time.Now().UnixMilli()
	stmt := db.Prepare(`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO NOTHING`)

	var inserted int64
	for _, key := range defaultSettingKeys {
		res, err := stmt.Run(ctx, key, DefaultSettings[key], now)
		if err != nil {
			return inserted, fmt.Errorf("backfilling setting %s: %w", key, err)
		}
		inserted += res.Changes
	}
	return inserted, nil
}
