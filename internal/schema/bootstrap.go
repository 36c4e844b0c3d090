package schema

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/xanote/pkg/types"
)

// Apply executes every schema statement in order. Each statement is
// create-if-absent, so Apply is safe to run against an existing database.
func Apply(ctx context.Context, db types.Preparer) error {
	for _, stmt := range Statements() {
		if _, err := db.Prepare(stmt).Run(ctx); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

// IsFresh reports whether the settings table is empty.
func IsFresh(ctx context.Context, db types.Preparer) (bool, error) {
	row, err := db.Prepare(`SELECT COUNT(*) AS count FROM settings`).Get(ctx)
	if err != nil {
		return false, fmt.Errorf("counting settings: %w", err)
	}
	return row.Int64("count") == 0, nil
}

// Options tune Bootstrap.
type Options struct {
	// BackfillDefaults inserts missing default settings into a database that
	// is not fresh.
	BackfillDefaults bool
}

// Bootstrap applies the schema, then seeds the database when the settings
// table is empty. On a database that already holds settings it does nothing
// more unless BackfillDefaults is set. It reports whether seeding ran.
func Bootstrap(ctx context.Context, db types.Preparer, opts Options) (bool, error) {
	if err := Apply(ctx, db); err != nil {
		return false, err
	}

	fresh, err := IsFresh(ctx, db)
	if err != nil {
		return false, err
	}

	if fresh {
		if err := Seed(ctx, db); err != nil {
			return false, err
		}
		log.Info("seeded fresh database")
		return true, nil
	}

	if opts.BackfillDefaults {
		n, err := BackfillSettings(ctx, db)
		if err != nil {
			return false, err
		}
		if n > 0 {
			log.WithField("inserted", n).Info("backfilled default settings")
		}
	}
	return false, nil
}
