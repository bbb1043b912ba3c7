package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PGHOST", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, 24, cfg.JWTExpiryHours)
	assert.Equal(t, 5*time.Minute, cfg.AnalyticsFlushInterval)
	assert.False(t, cfg.PaymentsEnabled())
}

func TestLoadPGAliases(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGDATABASE", "marketplace")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, "marketplace", cfg.DBName)
}

func TestPaymentsEnabled(t *testing.T) {
	cfg := Config{RazorpayKey: "rzp_test_key", RazorpaySecret: "secret"}
	assert.True(t, cfg.PaymentsEnabled())

	cfg.RazorpaySecret = ""
	assert.False(t, cfg.PaymentsEnabled())
}

func TestGetJWTExpiration(t *testing.T) {
	AppConfig = Config{JWTExpiryHours: 2}
	assert.Equal(t, 2*time.Hour, GetJWTExpiration())
}
