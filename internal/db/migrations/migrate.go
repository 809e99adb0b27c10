package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed sqlite/*.sql mysql/*.sql
var files embed.FS

const table = "schema_migrations"

// Up applies every pending migration for the given driver ("sqlite" or "mysql").
// The mysql DSN must carry multiStatements=true.
func Up(db *sqlx.DB, driver string) error {
	m, err := newMigrate(db, driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back every applied migration.
func Down(db *sqlx.DB, driver string) error {
	m, err := newMigrate(db, driver)
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version reports the current schema version; ok is false when nothing was applied yet.
func Version(db *sqlx.DB, driver string) (version uint, dirty, ok bool, err error) {
	m, err := newMigrate(db, driver)
	if err != nil {
		return 0, false, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, err
	}
	return version, dirty, true, nil
}

// newMigrate never closes the returned Migrate: its database driver would close the shared pool.
func newMigrate(db *sqlx.DB, driver string) (*migrate.Migrate, error) {
	src, err := iofs.New(files, driver)
	if err != nil {
		return nil, fmt.Errorf("migration source %s: %w", driver, err)
	}

	var dbDriver database.Driver
	switch driver {
	case "sqlite":
		dbDriver, err = sqlite.WithInstance(db.DB, &sqlite.Config{MigrationsTable: table})
	case "mysql":
		dbDriver, err = mysql.WithInstance(db.DB, &mysql.Config{MigrationsTable: table})
	default:
		return nil, fmt.Errorf("unsupported migration driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("migration driver %s: %w", driver, err)
	}

	return migrate.NewWithInstance("iofs", src, driver, dbDriver)
}
