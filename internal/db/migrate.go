package db

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies all pending schema migrations for the database's dialect.
func Migrate(d *DB) error {
	src, err := iofs.New(migrationsFS, "migrations/"+string(d.Dialect))
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(d.Dialect, d.source))
	if err != nil {
		return fmt.Errorf("initializing migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// MigrationVersion reports the applied schema version.
func MigrationVersion(d *DB) (uint, bool, error) {
	src, err := iofs.New(migrationsFS, "migrations/"+string(d.Dialect))
	if err != nil {
		return 0, false, fmt.Errorf("loading migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(d.Dialect, d.source))
	if err != nil {
		return 0, false, fmt.Errorf("initializing migrations: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading migration version: %w", err)
	}
	return version, dirty, nil
}

// migrateURL converts a pool source into the URL form the migrate drivers
// expect.
func migrateURL(dialect Dialect, source string) string {
	if dialect == SQLite {
		return "sqlite://" + source
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(source, scheme) {
			return "pgx5://" + strings.TrimPrefix(source, scheme)
		}
	}
	return source
}
