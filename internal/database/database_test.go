package database

import (
	"path/filepath"
	"testing"

	"github.com/segyhp/premium-engine/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemoryMigrates(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	var tables []string
	require.NoError(t, db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`))
	assert.Equal(t, []string{"calculations", "payment_installments", "products", "quotes"}, tables)

	// migrating twice is harmless
	assert.NoError(t, Migrate(db))
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "premium.db")
	db, err := Open(config.DatabaseConfig{Driver: DriverSQLite, URL: path, MaxOpenConns: 2, MaxIdleConns: 1})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DriverSQLite, db.DriverName())
}
