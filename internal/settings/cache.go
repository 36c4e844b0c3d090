// Package settings provides a process-local, write-through cache over the
// settings table.
//
// A Cache never returns a value older than the last Set this process made
// for that key. It may lag behind writes made by another process sharing the
// same backend.
package settings

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/mesh-intelligence/xanote/internal/metrics"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

// Lookup result label values.
const (
	resultHit    = "hit"
	resultMiss   = "miss"
	resultAbsent = "absent"
)

const (
	getQuery    = `SELECT value FROM settings WHERE key = ?`
	upsertQuery = `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	listQuery       = `SELECT key, value, updated_at FROM settings ORDER BY key`
	listPrefixQuery = `SELECT key, value, updated_at FROM settings WHERE key LIKE ? ESCAPE '\' ORDER BY key`
)

// Cache mirrors settings rows read or written through it.
type Cache struct {
	db  types.Preparer
	now func() time.Time

	mu     sync.RWMutex
	values map[string]string
	// epoch changes on every Set and Clear. A backend read that started in
	// an older epoch is not stored.
	epoch uint64

	loads singleflight.Group
}

// New returns an empty cache reading and writing through db.
func New(db types.Preparer) *Cache {
	return &Cache{
		db:     db,
		now:    time.Now,
		values: make(map[string]string),
	}
}

// Get returns the value of key. The boolean is false when the key has no
// row. Absence is not cached, so a key written by someone else after a miss
// is seen on the next call.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	v, ok := c.values[key]
	c.mu.RUnlock()
	if ok {
		metrics.SettingsLookupsTotal.WithLabelValues(resultHit).Inc()
		return v, true, nil
	}

	type loaded struct {
		value string
		found bool
	}
	res, err, _ := c.loads.Do(key, func() (any, error) {
		epoch := c.currentEpoch()
		row, err := c.db.Prepare(getQuery).Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return loaded{}, nil
		}
		value := row.String("value")
		c.fill(epoch, map[string]string{key: value})
		return loaded{value: value, found: true}, nil
	})
	if err != nil {
		log.WithError(err).WithField("key", key).Error("read setting")
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}

	l := res.(loaded)
	if !l.found {
		metrics.SettingsLookupsTotal.WithLabelValues(resultAbsent).Inc()
		return "", false, nil
	}
	metrics.SettingsLookupsTotal.WithLabelValues(resultMiss).Inc()
	return l.value, true, nil
}

// Value returns the value of key, or def when the key is absent or cannot be
// read.
func (c *Cache) Value(ctx context.Context, key, def string) string {
	v, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	return v
}

// Set upserts key with the current time as updated_at, then updates the
// cache. On a backend error the cache is left as it was.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	if _, err := c.db.Prepare(upsertQuery).Run(ctx, key, value, c.now().UnixMilli()); err != nil {
		log.WithError(err).WithField("key", key).Error("write setting")
		return fmt.Errorf("set setting %s: %w", key, err)
	}

	c.mu.Lock()
	c.values[key] = value
	c.epoch++
	c.mu.Unlock()
	return nil
}

// GetAll reads every setting whose key starts with prefix from the backend,
// refreshes the cache with the rows read and returns them. An empty prefix
// selects every key.
func (c *Cache) GetAll(ctx context.Context, prefix string) (map[string]string, error) {
	list, err := c.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(list))
	for _, s := range list {
		out[s.Key] = s.Value
	}
	return out, nil
}

// List is GetAll with updated_at, ordered by key.
func (c *Cache) List(ctx context.Context, prefix string) ([]types.Setting, error) {
	epoch := c.currentEpoch()

	var (
		rows []types.Row
		err  error
	)
	if prefix == "" {
		rows, err = c.db.Prepare(listQuery).All(ctx)
	} else {
		rows, err = c.db.Prepare(listPrefixQuery).All(ctx, escapeLike(prefix)+"%")
	}
	if err != nil {
		log.WithError(err).WithField("prefix", prefix).Error("read settings")
		return nil, fmt.Errorf("list settings: %w", err)
	}

	list := make([]types.Setting, 0, len(rows))
	fresh := make(map[string]string, len(rows))
	for _, r := range rows {
		s := types.Setting{Key: r.String("key"), Value: r.String("value"), UpdatedAt: r.Int64("updated_at")}
		list = append(list, s)
		fresh[s.Key] = s.Value
	}
	c.fill(epoch, fresh)

	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list, nil
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.values = make(map[string]string)
	c.epoch++
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

func (c *Cache) currentEpoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// fill stores values read from the backend during epoch. The read is
// dropped when a Set or Clear happened since, as it may predate that write.
func (c *Cache) fill(epoch uint64, values map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return
	}
	for k, v := range values {
		c.values[k] = v
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
