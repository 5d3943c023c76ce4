package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/recruitment")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 30*time.Second, cfg.GrantCacheTTL)
	assert.Equal(t, int64(200), cfg.EventHistorySize)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.Production())
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DATABASE_DRIVER=sqlite\nDATABASE_URL=from-file.db\nPORT=9000\n"), 0o600))
	t.Setenv("PORT", "7000")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_DRIVER")
	os.Unsetenv("DATABASE_URL")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "from-file.db", cfg.DatabaseURL)
	assert.Equal(t, "7000", cfg.Port)
}

func TestValidate(t *testing.T) {
	base := Config{
		Environment:    "production",
		DatabaseDriver: "postgres",
		DatabaseURL:    "postgres://db",
		SessionSecret:  "s3cret",
		RequestTimeout: time.Second,
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }},
		{"missing url", func(c *Config) { c.DatabaseURL = "" }},
		{"default secret in production", func(c *Config) { c.SessionSecret = defaultSessionSecret }},
		{"half a vapid pair", func(c *Config) { c.VAPIDPublicKey = "pub" }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
