package database

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-form/log"
)

//go:embed migrations/*.sql
var schema embed.FS

func migrateDB(db *sql.DB) error {
	src, err := iofs.New(schema, "migrations")
	if err != nil {
		return errors.Wrap(err, "migrations source")
	}

	dst, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return errors.Wrap(err, "migrations target")
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "sqlite3", dst)
	if err != nil {
		return errors.Wrap(err, "migrator")
	}

	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug("db.migrate: schema up to date")
	case err != nil:
		return errors.Wrap(err, "migrate up")
	default:
		version, dirty, _ := migrator.Version()
		log.WithFields(log.Fields{"version": version, "dirty": dirty}).Info("db.migrate: schema upgraded")
	}
	return nil
}
