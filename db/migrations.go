package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var fs embed.FS

func (c Config) migrateURL() (string, error) {
	switch c.Driver {
	case DriverSQLite:
		return "sqlite://" + c.Path, nil
	case DriverPostgres:
		return c.postgresURL(), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

func newMigrate(cfg Config) (*migrate.Migrate, error) {
	d, err := iofs.New(fs, "migrations")
	if err != nil {
		return nil, err
	}

	target, err := cfg.migrateURL()
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, target)
	if err != nil {
		return nil, fmt.Errorf("error creating migrate instance: %w", err)
	}
	return m, nil
}

// Migrate runs all pending migrations using golang-migrate
func Migrate(cfg Config) error {
	log.WithField("database", cfg.String()).Info("Running migrations")

	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

// Rollback reverts the last applied migration
func Rollback(cfg Config) error {
	log.WithField("database", cfg.String()).Info("Rolling back last migration")

	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	return m.Steps(-1)
}
