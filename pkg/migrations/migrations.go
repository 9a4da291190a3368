// Package migrations holds the schema for the on-device cache database.
// The sync daemon brings the schema up to date on every boot, so a fresh
// cache file needs no manual step before first use.
package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// BringUpToDate creates the migration tables if they don't exist yet and
// applies any unapplied migrations. The daemon calls this at boot; test
// helpers call it when building in-memory databases.
func BringUpToDate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)

	if err := migrator.Init(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return group, nil
}
