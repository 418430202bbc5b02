package postgres

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	// Necessary to load the postgres driver used by migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrationsTable is the table golang-migrate uses to track
// the schema version of the tracker tables.
const MigrationsTable = "tracker_schema_migrations"

//go:embed migrations/*.sql
var fs embed.FS

// RunMigrations runs the latest migrations creating the Event Store,
// stream index and worker checkpoint tables.
//
// It is meant for application entrypoints, before any postgres component is built.
func RunMigrations(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("postgres.RunMigrations: invalid dsn format, %w", err)
	}

	// A dedicated migrations table avoids clashing with applications
	// running golang-migrate on the same database.
	q := u.Query()
	q.Set("x-migrations-table", MigrationsTable)
	u.RawQuery = q.Encode()

	d, err := iofs.New(fs, "migrations")
	if err != nil {
		return fmt.Errorf("postgres.RunMigrations: failed to read embedded migrations, %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, u.String())
	if err != nil {
		return fmt.Errorf("postgres.RunMigrations: failed to open migrations, %w", err)
	}

	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres.RunMigrations: failed to execute migrations, %w", err)
	}

	return nil
}
