package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE catalog_items (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT,
				thumbnail_url TEXT,
				duration_seconds INTEGER,
				published_at TIMESTAMPTZ,
				playlist_position INTEGER,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_catalog_items_published_at ON catalog_items (published_at)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE progress_records (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				catalog_item_id TEXT NOT NULL,
				watched_seconds INTEGER NOT NULL DEFAULT 0,
				total_seconds INTEGER,
				completed BOOLEAN NOT NULL DEFAULT FALSE,
				completed_at TIMESTAMPTZ,
				last_position_seconds INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (user_id, catalog_item_id)
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_progress_records_user_id ON progress_records (user_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE note_records (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				catalog_item_id TEXT NOT NULL,
				content TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (user_id, catalog_item_id)
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_note_records_user_id ON note_records (user_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE pending_operations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				collection TEXT NOT NULL,
				kind TEXT NOT NULL,
				payload TEXT NOT NULL,
				enqueued_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_pending_operations_enqueued_at ON pending_operations (enqueued_at)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{"pending_operations", "note_records", "progress_records", "catalog_items"} {
			_, err := db.Exec("DROP TABLE IF EXISTS " + table)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
