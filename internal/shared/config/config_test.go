package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "server:\n  address: \":9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 10*time.Minute, cfg.Limits.PlanCacheTTL)
	assert.Equal(t, 3, cfg.Limits.ReserveRetries)
	assert.Equal(t, 24*time.Hour, cfg.Limits.IdempotencyTTL)
	assert.Zero(t, cfg.Limits.RateLimit)
	assert.Equal(t, time.Minute, cfg.Limits.RateLimitWindow)
	assert.Equal(t, uint32(5), cfg.Breaker.FailureThreshold)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "billing", cfg.Metrics.Namespace)
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("BILLING_SERVER_ADDRESS", ":7070")
	t.Setenv("BILLING_LIMITS_RESERVE_RETRIES", "5")
	t.Setenv("BILLING_DB_PASSWORD", "s3cret")
	t.Setenv("BILLING_JWT_SECRET", "signing-key")
	t.Setenv("BILLING_AUTH_ENABLED", "true")

	cfg, err := LoadFile(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, 5, cfg.Limits.ReserveRetries)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "signing-key", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFile_Invalid(t *testing.T) {
	t.Run("auth without secret", func(t *testing.T) {
		_, err := LoadFile(writeConfig(t, "auth:\n  enabled: true\n"))
		assert.ErrorContains(t, err, "jwt secret")
	})

	t.Run("zero retries", func(t *testing.T) {
		_, err := LoadFile(writeConfig(t, "limits:\n  reserve_retries: 0\n"))
		assert.ErrorContains(t, err, "reserve_retries")
	})

	t.Run("negative rate limit", func(t *testing.T) {
		_, err := LoadFile(writeConfig(t, "limits:\n  rate_limit: -1\n"))
		assert.ErrorContains(t, err, "rate_limit")
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "billing", Password: "pw", Database: "billing", SSLMode: "require"}

	assert.Equal(t, "host=db port=5433 user=billing password=pw dbname=billing sslmode=require", c.DSN())
}
