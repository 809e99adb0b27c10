package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/artverse/nova/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLConnectionRejectsUnknownDriver(t *testing.T) {
	_, err := NewSQLConnection("postgres", "host=x", SQLOpts{})
	require.Error(t, err)

	_, err = NewSQLConnection(DriverMySQL, "", SQLOpts{})
	require.Error(t, err)
}

func TestNewSQLConnectionSQLiteCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	dbx, err := NewSQLConnection("", "file:"+filepath.Join(dir, "app.db"), SQLOpts{MaxOpenConns: 8})
	require.NoError(t, err)
	defer dbx.Close()

	_, err = os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, dbx.Stats().MaxOpenConnections)

	var fk int
	require.NoError(t, dbx.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)
}

func TestEnsureSQLiteDirMemory(t *testing.T) {
	assert.NoError(t, ensureSQLiteDir(":memory:"))
	assert.NoError(t, ensureSQLiteDir("file:local.db?_pragma=foreign_keys(1)"))
}

func TestOptionalClientsDisabled(t *testing.T) {
	rdb, err := NewRedisClient(RedisOpts{})
	require.NoError(t, err)
	assert.Nil(t, rdb)

	ch, err := NewClickHouseConnection(ClickHouseOpts{})
	require.NoError(t, err)
	assert.Nil(t, ch)
}

func TestOpenOptionalStores(t *testing.T) {
	ch, err := OpenClickHouse(config.DatabaseConfig{})
	require.NoError(t, err)
	assert.Nil(t, ch)

	rds, err := OpenRedis(config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, rds)
}
