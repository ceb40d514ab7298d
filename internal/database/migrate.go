package database

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, eris.Wrap(err, "migrate: open embedded source")
	}
	driver, err := mysql.WithInstance(db, &mysql.Config{})
	if err != nil {
		return nil, eris.Wrap(err, "migrate: create mysql driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "mysql", driver)
	if err != nil {
		return nil, eris.Wrap(err, "migrate: create instance")
	}
	return m, nil
}

// Migrate applies every pending up migration.  A dirty schema is reported
// and left alone.
func Migrate(db *sql.DB) error {
	log := zap.L().With(zap.String("component", "migrate"))

	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	from, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return eris.Wrap(err, "migrate: read version")
	}
	if dirty {
		return eris.Errorf("migrate: database is dirty at version %d", from)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return eris.Wrap(err, "migrate: up")
	}

	to, _, _ := m.Version()
	log.Info("schema up to date", zap.Uint("from_version", from), zap.Uint("to_version", to))
	return nil
}
