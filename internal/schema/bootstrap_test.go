package schema_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/xanote/internal/schema"
	"github.com/mesh-intelligence/xanote/internal/sqlite"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

// setupTestDB opens a private in-memory database without any schema.
func setupTestDB(t *testing.T) *sqlite.Conn {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	return sqlite.NewConn(db)
}

func countRows(t *testing.T, db types.Preparer, table string) int64 {
	t.Helper()
	row, err := db.Prepare("SELECT COUNT(*) AS n FROM " + table).Get(context.Background())
	require.NoError(t, err)
	return row.Int64("n")
}

func TestApply_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	require.NoError(t, schema.Apply(ctx, db))
	require.NoError(t, schema.Apply(ctx, db))

	rows, err := db.Prepare(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`).All(ctx)
	require.NoError(t, err)

	var names []string
	for _, r := range rows {
		names = append(names, r.String("name"))
	}
	assert.Equal(t, []string{"categories", "logs", "notes", "settings", "shares", "trash"}, names)
}

func TestBootstrap(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, db types.Preparer)
		opts       schema.Options
		wantSeeded bool
		check      func(t *testing.T, db types.Preparer)
	}{
		{
			name:       "seeds empty database",
			wantSeeded: true,
			check: func(t *testing.T, db types.Preparer) {
				ctx := context.Background()
				assert.Equal(t, int64(1), countRows(t, db, "categories"))
				assert.Equal(t, int64(1), countRows(t, db, "notes"))
				assert.Equal(t, int64(1), countRows(t, db, "shares"))

				note, err := db.Prepare("SELECT * FROM notes").Get(ctx)
				require.NoError(t, err)
				assert.Equal(t, schema.WelcomeNoteID, note.String("id"))
				assert.Equal(t, schema.DefaultCategoryID, note.String("category_id"))

				share, err := db.Prepare("SELECT * FROM shares").Get(ctx)
				require.NoError(t, err)
				assert.Equal(t, schema.WelcomeShareID, share.String("id"))
				assert.Equal(t, schema.WelcomeNoteID, share.String("note_id"))
			},
		},
		{
			name: "does not seed database with settings",
			setup: func(t *testing.T, db types.Preparer) {
				require.NoError(t, schema.Apply(context.Background(), db))
				_, err := db.Prepare("INSERT INTO settings (key, value, updated_at) VALUES ('site.title', 't', 0)").Run(context.Background())
				require.NoError(t, err)
			},
			wantSeeded: false,
			check: func(t *testing.T, db types.Preparer) {
				assert.Equal(t, int64(0), countRows(t, db, "categories"))
				assert.Equal(t, int64(0), countRows(t, db, "notes"))
				assert.Equal(t, int64(0), countRows(t, db, "shares"))
				assert.Equal(t, int64(1), countRows(t, db, "settings"))
			},
		},
		{
			name: "backfills missing default settings only",
			setup: func(t *testing.T, db types.Preparer) {
				require.NoError(t, schema.Apply(context.Background(), db))
				_, err := db.Prepare("INSERT INTO settings (key, value, updated_at) VALUES ('site.title', 't', 0)").Run(context.Background())
				require.NoError(t, err)
			},
			opts:       schema.Options{BackfillDefaults: true},
			wantSeeded: false,
			check: func(t *testing.T, db types.Preparer) {
				assert.Equal(t, int64(2), countRows(t, db, "settings"))
				assert.Equal(t, int64(0), countRows(t, db, "notes"))
			},
		},
		{
			name: "backfill keeps existing values",
			setup: func(t *testing.T, db types.Preparer) {
				require.NoError(t, schema.Apply(context.Background(), db))
				_, err := db.Prepare("INSERT INTO settings (key, value, updated_at) VALUES ('language', 'en', 0)").Run(context.Background())
				require.NoError(t, err)
			},
			opts:       schema.Options{BackfillDefaults: true},
			wantSeeded: false,
			check: func(t *testing.T, db types.Preparer) {
				row, err := db.Prepare("SELECT value FROM settings WHERE key = 'language'").Get(context.Background())
				require.NoError(t, err)
				assert.Equal(t, "en", row.String("value"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			if tt.setup != nil {
				tt.setup(t, db)
			}

			seeded, err := schema.Bootstrap(context.Background(), db, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSeeded, seeded)
			tt.check(t, db)
		})
	}
}

func TestBootstrap_Twice(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	seeded, err := schema.Bootstrap(ctx, db, schema.Options{})
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = schema.Bootstrap(ctx, db, schema.Options{})
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Equal(t, int64(1), countRows(t, db, "notes"))
}
