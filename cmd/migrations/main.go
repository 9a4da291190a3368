package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/nihonma/manabi/pkg/config"
	"github.com/nihonma/manabi/pkg/database"
	"github.com/nihonma/manabi/pkg/migrations"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	migrator := migrate.NewMigrator(db, migrations.Migrations)

	app := &cli.App{
		Name:  "migrations",
		Usage: "manage the local cache database schema",
		Description: "The sync daemon migrates its cache database on boot. This CLI exists " +
			"for development and for inspecting a cache file outside the daemon.",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "bring the cache database up to date",
				Action: func(c *cli.Context) error {
					group, err := migrations.BringUpToDate(c.Context, db)
					if err != nil {
						return err
					}

					if group.ID == 0 {
						fmt.Printf("Cache database is already up to date\n")
						return nil
					}

					fmt.Printf("Migrated to %s\n", group)
					return nil
				},
			},
			{
				Name:  "rollback",
				Usage: "roll back the last migration group",
				Action: func(c *cli.Context) error {
					group, err := migrator.Rollback(c.Context)
					if err != nil {
						return err
					}

					if group.ID == 0 {
						fmt.Printf("There are no groups to roll back\n")
						return nil
					}

					fmt.Printf("Rolled back %s\n", group)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "create a new Go migration file",
				Action: func(c *cli.Context) error {
					name := strings.Join(c.Args().Slice(), "_")
					mf, err := migrator.CreateGoMigration(
						c.Context,
						name,
						migrate.WithGoTemplate(migrationTemplate),
					)
					if err != nil {
						return err
					}
					fmt.Printf("Created migration %s (%s)\n", mf.Name, mf.Path)

					return nil
				},
			},
			{
				Name:  "status",
				Usage: "print which migrations the cache database has applied",
				Action: func(c *cli.Context) error {
					ms, err := migrator.MigrationsWithStatus(c.Context)
					if err != nil {
						return err
					}
					fmt.Printf("Migrations: %s\n", ms)
					fmt.Printf("Unapplied migrations: %s\n", ms.Unapplied())
					fmt.Printf("Last migration group: %s\n", ms.LastGroup())

					return nil
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("app run error")
	}
}

const migrationTemplate = `package %s

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("")
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
`
