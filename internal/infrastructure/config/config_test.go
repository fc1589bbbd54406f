package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"ERP_APP_NAME",
	"ERP_APP_ENV",
	"ERP_APP_PORT",
	"ERP_DATABASE_HOST",
	"ERP_DATABASE_PORT",
	"ERP_DATABASE_PASSWORD",
	"ERP_DATABASE_SSLMODE",
	"ERP_DATABASE_MAX_OPEN_CONNS",
	"ERP_DATABASE_MAX_IDLE_CONNS",
	"ERP_BUDGET_LOCK_TIMEOUT",
	"ERP_BUDGET_QUANTITY_TOLERANCE",
	"ERP_BUDGET_AMOUNT_TOLERANCE",
	"ERP_CURRENCY_PROVIDER",
	"ERP_CURRENCY_BASE_URL",
	"ERP_TELEMETRY_SAMPLING_RATIO",
	"ERP_TELEMETRY_LOGS_ENABLED",
	"ERP_TELEMETRY_PROFILING_ENABLED",
	"ERP_TELEMETRY_PROFILING_SERVER_ADDRESS",
	"ERP_HTTP_RATE_LIMIT_RPS",
	"ERP_HTTP_RATE_LIMIT_BURST",
	"ERP_HTTP_IDEMPOTENCY_TTL",
}

// clearEnv unsets every key for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "boq-budget", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "budget", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, 5*time.Second, cfg.Budget.LockTimeout)
		assert.True(t, cfg.Budget.QuantityTolerance.Equal(decimal.RequireFromString("0.0001")))
		assert.True(t, cfg.Budget.AmountTolerance.Equal(decimal.RequireFromString("0.01")))
		assert.Equal(t, "static", cfg.Currency.Provider)
		assert.Equal(t, 12*time.Hour, cfg.Currency.CacheTTL)
		assert.False(t, cfg.HTTP.RateLimitEnabled)
		assert.Equal(t, float64(50), cfg.HTTP.RateLimitRPS)
		assert.Equal(t, 100, cfg.HTTP.RateLimitBurst)
		assert.Equal(t, 24*time.Hour, cfg.HTTP.IdempotencyTTL)
		assert.Contains(t, cfg.HTTP.CORSAllowHeaders, "Idempotency-Key")
	})

	t.Run("loads values from environment variables with ERP prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ERP_APP_NAME", "test-app")
		t.Setenv("ERP_APP_PORT", "9000")
		t.Setenv("ERP_DATABASE_HOST", "testdb.local")
		t.Setenv("ERP_DATABASE_PORT", "5433")
		t.Setenv("ERP_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("ERP_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("ERP_BUDGET_LOCK_TIMEOUT", "2s")
		t.Setenv("ERP_BUDGET_QUANTITY_TOLERANCE", "0.5")
		t.Setenv("ERP_BUDGET_AMOUNT_TOLERANCE", "1")
		t.Setenv("ERP_CURRENCY_PROVIDER", "http")
		t.Setenv("ERP_CURRENCY_BASE_URL", "https://rates.example.com")
		t.Setenv("ERP_HTTP_RATE_LIMIT_RPS", "2.5")
		t.Setenv("ERP_HTTP_IDEMPOTENCY_TTL", "1h")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, 2*time.Second, cfg.Budget.LockTimeout)
		assert.True(t, cfg.Budget.QuantityTolerance.Equal(decimal.RequireFromString("0.5")))
		assert.True(t, cfg.Budget.AmountTolerance.Equal(decimal.NewFromInt(1)))
		assert.Equal(t, "http", cfg.Currency.Provider)
		assert.Equal(t, "https://rates.example.com", cfg.Currency.BaseURL)
		assert.Equal(t, 2.5, cfg.HTTP.RateLimitRPS)
		assert.Equal(t, time.Hour, cfg.HTTP.IdempotencyTTL)
	})

	t.Run("rejects malformed tolerance", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ERP_BUDGET_AMOUNT_TOLERANCE", "abc")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "budget.amount_tolerance")
	})

	t.Run("http provider requires base url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ERP_CURRENCY_PROVIDER", "http")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "currency.base_url")
	})

	t.Run("unknown currency provider", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ERP_CURRENCY_PROVIDER", "carrier-pigeon")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("production requires password", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ERP_APP_ENV", "production")
		t.Setenv("ERP_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password")
	})

	t.Run("idle conns cannot exceed open conns", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ERP_DATABASE_MAX_OPEN_CONNS", "5")
		t.Setenv("ERP_DATABASE_MAX_IDLE_CONNS", "10")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("negative rate limit", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ERP_HTTP_RATE_LIMIT_BURST", "-1")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("sampling ratio out of range", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ERP_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("profiling requires server address", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ERP_TELEMETRY_PROFILING_ENABLED", "true")

		_, err := Load()
		assert.ErrorContains(t, err, "profiling_server_address")

		t.Setenv("ERP_TELEMETRY_PROFILING_SERVER_ADDRESS", "http://pyroscope:4040")
		t.Setenv("ERP_TELEMETRY_LOGS_ENABLED", "true")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Telemetry.ProfilingEnabled)
		assert.Equal(t, "http://pyroscope:4040", cfg.Telemetry.ProfilingServerAddress)
		assert.True(t, cfg.Telemetry.LogsEnabled)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "app",
		Password: "p@ss word",
		DBName:   "budget",
		SSLMode:  "disable",
	}

	dsn := d.DSN()
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/budget?sslmode=disable", dsn)
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
