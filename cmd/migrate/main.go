package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"booklending/internal/platform/postgres"
)

func main() {
	loadEnvFiles()
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := newApp().Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("migrate failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "migrate",
		Usage: "apply and manage the booklending database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dsn", Usage: "postgres connection string", EnvVars: []string{"DB_DSN"}, Value: defaultDSN},
			&cli.StringFlag{Name: "dir", Usage: "migrations directory", Value: migrationsDir()},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: withDB(func(ctx context.Context, db *sql.DB, dir string) error {
					if err := goose.UpContext(ctx, db, dir); err != nil {
						return errors.Wrap(err, "apply migrations")
					}
					logrus.Info("migrations applied")
					return nil
				}),
			},
			{
				Name:  "down",
				Usage: "roll back the latest migration",
				Action: withDB(func(ctx context.Context, db *sql.DB, dir string) error {
					if err := goose.DownContext(ctx, db, dir); err != nil {
						return errors.Wrap(err, "roll back migration")
					}
					logrus.Info("migration rolled back")
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "print the state of every migration",
				Action: withDB(func(ctx context.Context, db *sql.DB, dir string) error {
					return errors.Wrap(goose.StatusContext(ctx, db, dir), "migration status")
				}),
			},
			{
				Name:      "create",
				Usage:     "create a new SQL migration",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					name := c.Args().First()
					if name == "" {
						return cli.Exit("name is required for 'create'", 2)
					}
					if err := goose.Create(nil, c.String("dir"), name, "sql"); err != nil {
						return errors.Wrap(err, "create migration")
					}
					logrus.WithField("name", name).Info("migration created")
					return nil
				},
			},
		},
	}
}

func withDB(fn func(ctx context.Context, db *sql.DB, dir string) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		ctx := c.Context
		dsn := c.String("dsn")

		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return errors.Wrapf(err, "connect to %s", postgres.RedactDSN(dsn))
		}
		defer pool.Close()

		db := stdlib.OpenDBFromPool(pool)
		defer db.Close()

		goose.SetBaseFS(nil)
		if err := goose.SetDialect("postgres"); err != nil {
			return err
		}
		return fn(ctx, db, c.String("dir"))
	}
}
