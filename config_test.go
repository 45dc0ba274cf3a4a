package main

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("QSHIELD_CONFIG", "")
	t.Setenv("LISTEN_ADDRESS", "")
	t.Setenv("ENV", "")

	cfg, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Address)
	assert.Equal(t, 20, cfg.History.Capacity)
	assert.Equal(t, 200, cfg.Model.Samples)
	assert.Equal(t, 50.0, cfg.Model.Mean)
	assert.Equal(t, 15.0, cfg.Model.StdDev)
	assert.Equal(t, 0.2, cfg.Model.Contamination)
	assert.Equal(t, uint64(42), cfg.Model.Seed)
	assert.Zero(t, cfg.RateLimit.RPS)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qshield.yaml")
	yaml := `
server:
  address: ":9000"
history:
  capacity: 5
model:
  trees: 25
ratelimit:
  rps: 2
  burst: 4
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("LISTEN_ADDRESS", ":9100")
	t.Setenv("ENV", "dev")
	t.Setenv("QSHIELD_LOG_FORMAT", "json")

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Address)
	assert.Equal(t, "dev", cfg.Server.Environment)
	assert.Equal(t, 5, cfg.History.Capacity)
	assert.Equal(t, 25, cfg.Model.Trees)
	assert.Equal(t, 200, cfg.Model.Samples)
	assert.Equal(t, 2.0, cfg.RateLimit.RPS)
	assert.Equal(t, 4, cfg.RateLimit.Burst)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "not found")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty address", func(c *Config) { c.Server.Address = "" }},
		{"zero capacity", func(c *Config) { c.History.Capacity = 0 }},
		{"no samples", func(c *Config) { c.Model.Samples = 0 }},
		{"flat distribution", func(c *Config) { c.Model.StdDev = 0 }},
		{"contamination too high", func(c *Config) { c.Model.Contamination = 0.7 }},
		{"no trees", func(c *Config) { c.Model.Trees = -1 }},
		{"negative rps", func(c *Config) { c.RateLimit.RPS = -1 }},
		{"rps without burst", func(c *Config) { c.RateLimit.RPS = 1; c.RateLimit.Burst = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.validate())
		})
	}

	cfg := defaultConfig()
	assert.NoError(t, cfg.validate())
}

func TestLoadConfigRejectsMalformedEnv(t *testing.T) {
	for _, key := range []string{"QSHIELD_HISTORY_CAPACITY", "QSHIELD_RATE_LIMIT_RPS", "QSHIELD_RATE_LIMIT_BURST"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv("QSHIELD_CONFIG", "")
			t.Setenv(key, "abc")

			_, err := loadConfig("")
			require.Error(t, err)
			assert.ErrorContains(t, err, key)
			assert.ErrorIs(t, err, strconv.ErrSyntax)
		})
	}
}
