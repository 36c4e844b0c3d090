package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/xanote/internal/sqlite"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

func newTestDB(t *testing.T) *sqlite.Backend {
	t.Helper()
	b := sqlite.NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: sqlite.MemoryDataDir})
	require.NoError(t, b.Initialize(context.Background()))
	t.Cleanup(func() { b.Close() })
	return b
}

// hookDB wraps a Preparer and runs hooks around statement execution.
type hookDB struct {
	types.Preparer
	afterGet func()
	afterAll func()
	fail     error
}

func (h *hookDB) Prepare(query string) types.Statement {
	return &hookStmt{Statement: h.Preparer.Prepare(query), db: h}
}

type hookStmt struct {
	types.Statement
	db *hookDB
}

func (s *hookStmt) Get(ctx context.Context, args ...any) (types.Row, error) {
	if s.db.fail != nil {
		return nil, s.db.fail
	}
	row, err := s.Statement.Get(ctx, args...)
	if s.db.afterGet != nil {
		s.db.afterGet()
	}
	return row, err
}

func (s *hookStmt) All(ctx context.Context, args ...any) ([]types.Row, error) {
	if s.db.fail != nil {
		return nil, s.db.fail
	}
	rows, err := s.Statement.All(ctx, args...)
	if s.db.afterAll != nil {
		s.db.afterAll()
	}
	return rows, err
}

func (s *hookStmt) Run(ctx context.Context, args ...any) (types.Result, error) {
	if s.db.fail != nil {
		return types.Result{}, s.db.fail
	}
	return s.Statement.Run(ctx, args...)
}

func TestCache_ReadYourOwnWrite(t *testing.T) {
	ctx := context.Background()
	c := New(newTestDB(t))

	keys := []string{types.KeyInstalled, types.KeyBackupFrequency, "x.y", types.KeyLanguage}
	for i, k := range keys {
		want := fmt.Sprintf("v%d", i)
		require.NoError(t, c.Set(ctx, k, want))
		got, ok, err := c.Get(ctx, k)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}

	// Overwrite goes through as well.
	require.NoError(t, c.Set(ctx, types.KeyLanguage, "en"))
	assert.Equal(t, "en", c.Value(ctx, types.KeyLanguage, "zh"))
}

func TestCache_SetWritesThrough(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	c := New(db)
	c.now = func() time.Time { return time.UnixMilli(1234) }

	require.NoError(t, c.Set(ctx, types.KeyWebDAVURL, "https://dav.example.com"))

	row, err := db.Prepare("SELECT value, updated_at FROM settings WHERE key = ?").Get(ctx, types.KeyWebDAVURL)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "https://dav.example.com", row.String("value"))
	assert.Equal(t, int64(1234), row.Int64("updated_at"))

	// A fresh cache over the same backend sees the write.
	got, ok, err := New(db).Get(ctx, types.KeyWebDAVURL)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://dav.example.com", got)
}

func TestCache_AbsenceNotCached(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	c := New(db)

	_, ok, err := c.Get(ctx, "site.title")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "fallback", c.Value(ctx, "site.title", "fallback"))

	// Written behind the cache's back.
	_, err = db.Prepare("INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)").Run(ctx, "site.title", "Notes", int64(1))
	require.NoError(t, err)

	got, ok, err := c.Get(ctx, "site.title")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Notes", got)
}

func TestCache_EmptyValueIsPresent(t *testing.T) {
	ctx := context.Background()
	c := New(newTestDB(t))

	require.NoError(t, c.Set(ctx, types.KeyWebDAVUser, ""))
	c.Clear()

	got, ok, err := c.Get(ctx, types.KeyWebDAVUser)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", got)
	assert.Equal(t, 1, c.Len())
}

func TestCache_GetAll(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	c := New(db)

	require.NoError(t, c.Set(ctx, types.KeyBackupFrequency, "daily"))
	require.NoError(t, c.Set(ctx, types.KeyWebDAVURL, "https://dav"))
	require.NoError(t, c.Set(ctx, "backupx", "not in prefix"))
	require.NoError(t, c.Set(ctx, "backup_x", "x"))

	// Changed behind the cache; Get still answers from the cache.
	_, err := db.Prepare("UPDATE settings SET value = ? WHERE key = ?").Run(ctx, "weekly", types.KeyBackupFrequency)
	require.NoError(t, err)
	assert.Equal(t, "daily", c.Value(ctx, types.KeyBackupFrequency, ""))

	all, err := c.GetAll(ctx, types.PrefixBackup)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{types.KeyBackupFrequency: "weekly"}, all)

	all, err = c.GetAll(ctx, "backup_")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"backup_x": "x"}, all, "underscore is not a wildcard")

	// The refresh updated the cached entry.
	assert.Equal(t, "weekly", c.Value(ctx, types.KeyBackupFrequency, ""))

	all, err = c.GetAll(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "zh", all[types.KeyLanguage])
	assert.Len(t, all, 5)

	list, err := c.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 5)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Key, list[i].Key)
	}
}

func TestCache_Clear(t *testing.T) {
	ctx := context.Background()
	c := New(newTestDB(t))

	require.NoError(t, c.Set(ctx, "a", "1"))
	require.NoError(t, c.Set(ctx, "b", "2"))
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())

	// Values come back from the backend.
	assert.Equal(t, "1", c.Value(ctx, "a", ""))
	assert.Equal(t, 1, c.Len())
}

func TestCache_BackendErrorLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	db := &hookDB{Preparer: newTestDB(t)}
	c := New(db)

	require.NoError(t, c.Set(ctx, "k", "old"))

	boom := errors.New("boom")
	db.fail = boom

	err := c.Set(ctx, "k", "new")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "old", c.Value(ctx, "k", ""))

	_, _, err = c.Get(ctx, "missing")
	require.ErrorIs(t, err, boom)

	_, err = c.GetAll(ctx, "")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "old", c.Value(ctx, "k", ""))
}

func TestCache_RefreshDoesNotOverwriteNewerWrite(t *testing.T) {
	ctx := context.Background()
	db := &hookDB{Preparer: newTestDB(t)}
	c := New(db)

	require.NoError(t, c.Set(ctx, "k", "old"))
	c.Clear()

	// A Set lands after the backend read returned but before its result is
	// stored.
	db.afterGet = func() {
		db.afterGet = nil
		require.NoError(t, c.Set(ctx, "k", "new"))
	}

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "old", got)

	assert.Equal(t, "new", c.Value(ctx, "k", ""))
}

func TestCache_RefreshDroppedAfterWriteAndClear(t *testing.T) {
	ctx := context.Background()
	db := &hookDB{Preparer: newTestDB(t)}
	c := New(db)

	require.NoError(t, c.Set(ctx, "k", "old"))
	c.Clear()

	// The key is written and the cache cleared while the read of the old
	// value is in flight.
	db.afterGet = func() {
		db.afterGet = nil
		require.NoError(t, c.Set(ctx, "k", "new"))
		c.Clear()
	}

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "old", got)
	assert.Equal(t, 0, c.Len())

	assert.Equal(t, "new", c.Value(ctx, "k", ""))
}

func TestCache_ListDroppedAfterConcurrentSet(t *testing.T) {
	ctx := context.Background()
	db := &hookDB{Preparer: newTestDB(t)}
	c := New(db)

	require.NoError(t, c.Set(ctx, "a.one", "1"))
	c.Clear()

	db.afterAll = func() {
		db.afterAll = nil
		require.NoError(t, c.Set(ctx, "a.one", "2"))
		c.Clear()
	}

	got, err := c.GetAll(ctx, "a.")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.one": "1"}, got)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, "2", c.Value(ctx, "a.one", ""))
}

func TestCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := New(newTestDB(t))

	const workers = 8
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := fmt.Sprintf("worker.%d", w)
			for i := 0; i < 20; i++ {
				want := fmt.Sprintf("%d", i)
				if err := c.Set(ctx, key, want); err != nil {
					t.Error(err)
					return
				}
				got, ok, err := c.Get(ctx, key)
				if err != nil || !ok || got != want {
					t.Errorf("%s: got %q %v %v, want %q", key, got, ok, err, want)
					return
				}
				if i%5 == 0 {
					if _, err := c.GetAll(ctx, "worker."); err != nil {
						t.Error(err)
						return
					}
				}
			}
		}(w)
	}
	wg.Wait()

	all, err := c.GetAll(ctx, "worker.")
	require.NoError(t, err)
	assert.Len(t, all, workers)
}
