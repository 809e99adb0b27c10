// Package dbtest opens migrated SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/artverse/nova/internal/db"
	"github.com/artverse/nova/internal/db/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// New returns a fresh, fully migrated SQLite database living in t.TempDir().
func New(t testing.TB) *sqlx.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	dbx, err := db.NewSQLConnection(db.DriverSQLite, dsn, db.SQLOpts{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbx.Close() })

	require.NoError(t, migrations.Up(dbx, db.DriverSQLite))
	return dbx
}
