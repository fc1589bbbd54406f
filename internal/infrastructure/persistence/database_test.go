package persistence

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/budget/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	d, err := Open(dialector)
	require.NoError(t, err)

	return d, mock, mockDB
}

type countingPlugin struct {
	initialized int
}

func (p *countingPlugin) Name() string { return "test:counting" }

func (p *countingPlugin) Initialize(*gorm.DB) error {
	p.initialized++
	return nil
}

func TestOpen(t *testing.T) {
	t.Run("registers the ledger guard", func(t *testing.T) {
		d, err := Open(sqlite.Open(":memory:"))
		require.NoError(t, err)
		defer d.Close()

		assert.NotNil(t, d.DB.Callback().Update().Get("budget:ledger_append_only_update"))
		assert.NotNil(t, d.DB.Callback().Delete().Get("budget:ledger_append_only_delete"))
	})

	t.Run("registers plugins", func(t *testing.T) {
		plugin := &countingPlugin{}
		d, err := Open(sqlite.Open(":memory:"), WithPlugins(plugin))
		require.NoError(t, err)
		defer d.Close()

		assert.Equal(t, 1, plugin.initialized)
	})

	t.Run("translates driver errors", func(t *testing.T) {
		d, err := Open(sqlite.Open(":memory:"))
		require.NoError(t, err)
		defer d.Close()

		assert.True(t, d.DB.Config.TranslateError)
		assert.True(t, d.DB.Config.SkipDefaultTransaction)
	})
}

func TestNewDatabase_Unreachable(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:         "127.0.0.1",
		Port:         1,
		User:         "postgres",
		DBName:       "budget",
		SSLMode:      "disable",
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	}

	d, err := NewDatabase(cfg)
	assert.Error(t, err)
	assert.Nil(t, d)
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestDatabase_Ping(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectPing()

	assert.NoError(t, db.Ping())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()

	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
