package store_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/xanote/internal/d1/d1test"
	"github.com/mesh-intelligence/xanote/internal/settings"
	"github.com/mesh-intelligence/xanote/pkg/store"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

func TestNew(t *testing.T) {
	a, err := store.New(types.Config{Backend: types.BackendSQLite, DataDir: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, types.StateUninitialized, a.State())

	_, err = store.New(types.Config{})
	assert.ErrorIs(t, err, types.ErrConfiguration)
	assert.ErrorIs(t, err, types.ErrBackendEmpty)

	_, err = store.New(types.Config{Backend: "postgres"})
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}

// backends returns one initialized adapter per backend kind.
func backends(t *testing.T) map[string]types.Adapter {
	t.Helper()
	ctx := context.Background()

	embedded, err := store.Open(ctx, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { embedded.Close() })

	remote, err := store.Open(ctx, d1test.NewServer(t).Config())
	require.NoError(t, err)
	t.Cleanup(func() { remote.Close() })

	return map[string]types.Adapter{types.BackendSQLite: embedded, types.BackendD1: remote}
}

func TestInstallFlow(t *testing.T) {
	ctx := context.Background()
	for name, a := range backends(t) {
		t.Run(name, func(t *testing.T) {
			cache := settings.New(a)

			assert.False(t, a.IsInstalled(ctx))
			assert.ErrorIs(t, store.RequireInstalled(ctx, a), types.ErrNotInstalled)

			require.NoError(t, cache.Set(ctx, types.KeyInstalled, types.InstalledValue))
			assert.True(t, a.IsInstalled(ctx))
			assert.NoError(t, store.RequireInstalled(ctx, a))
		})
	}
}

func TestInstall(t *testing.T) {
	ctx := context.Background()
	for name, a := range backends(t) {
		t.Run(name, func(t *testing.T) {
			cache := settings.New(a)

			err := store.Install(ctx, a, cache, store.InstallParams{})
			require.Error(t, err)
			assert.False(t, a.IsInstalled(ctx))

			p := store.InstallParams{SiteTitle: "My Notes", AdminEmail: "admin@example.com"}
			require.NoError(t, store.Install(ctx, a, cache, p))
			assert.True(t, a.IsInstalled(ctx))

			all, err := settings.New(a).GetAll(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, "My Notes", all[types.KeySiteTitle])
			assert.Equal(t, "manual", all[types.KeyBackupFrequency])
			assert.Equal(t, "zh", all[types.KeyLanguage])
			v, ok := all[types.KeyWebDAVURL]
			assert.True(t, ok)
			assert.Empty(t, v)

			assert.ErrorIs(t, store.Install(ctx, a, cache, p), types.ErrAlreadyInstalled)
		})
	}
}

// Both backends return the same rows for the same statements.
func TestBackendParity(t *testing.T) {
	ctx := context.Background()
	bs := backends(t)

	queries := []struct {
		sql  string
		args []any
	}{
		{"SELECT id, name FROM categories", nil},
		{"SELECT id, title, tags, category_id FROM notes", nil},
		{"SELECT id, note_id, password, expires_at FROM shares", nil},
		{"SELECT key, value FROM settings ORDER BY key", nil},
		{"SELECT ? AS i, ? AS s, ? AS f, ? AS n", []any{int64(42), "text", 1.5, nil}},
		{"SELECT COUNT(*) AS count FROM trash", nil},
	}

	exec := func(a types.Adapter) [][]types.Row {
		var out [][]types.Row
		for _, q := range queries {
			rows, err := a.Prepare(q.sql).All(ctx, q.args...)
			require.NoError(t, err, q.sql)
			out = append(out, rows)
		}
		return out
	}

	embedded := exec(bs[types.BackendSQLite])
	remote := exec(bs[types.BackendD1])
	if diff := cmp.Diff(embedded, remote); diff != "" {
		t.Errorf("backend rows differ (-sqlite +d1):\n%s", diff)
	}

	for _, a := range bs {
		res, err := a.Prepare("UPDATE notes SET title = ? WHERE category_id = ?").Run(ctx, "Renamed", "default")
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Changes)
	}
}
