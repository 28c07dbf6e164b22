package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sync.db", cfg.Store.DBPath)
	assert.Empty(t, cfg.Store.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Sync.ActionTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.RetryBackoff)
	assert.True(t, cfg.Discord.Enabled)
	assert.True(t, cfg.GDrive.Enabled)
	assert.True(t, cfg.TeamSpeak.Enabled)
	assert.Equal(t, 10011, cfg.TeamSpeak.Port)
	assert.Equal(t, 1, cfg.TeamSpeak.ServerID)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SYNC_PORT", "9090")
	t.Setenv("SYNC_STORE_BASE_URL", "http://identity.internal:8000")
	t.Setenv("SYNC_ACTION_TIMEOUT", "2s")
	t.Setenv("SYNC_DISCORD_ENABLED", "false")
	t.Setenv("SYNC_DISCORD_BOT_TOKEN", "token")
	t.Setenv("SYNC_TS_PORT", "10022")
	t.Setenv("SYNC_GDRIVE_ITEM_TTL", "1m")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "http://identity.internal:8000", cfg.Store.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Sync.ActionTimeout)
	assert.False(t, cfg.Discord.Enabled)
	assert.Equal(t, "token", cfg.Discord.BotToken)
	assert.Equal(t, 10022, cfg.TeamSpeak.Port)
	assert.Equal(t, time.Minute, cfg.GDrive.ItemTTL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"no store", func(c *Config) { c.Store.BaseURL, c.Store.DBPath = "", "" }},
		{"zero action timeout", func(c *Config) { c.Sync.ActionTimeout = 0 }},
		{"bad teamspeak port", func(c *Config) { c.TeamSpeak.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("SYNC_TEST_BOOL", "1")
	t.Setenv("SYNC_TEST_INT", "not-a-number")
	t.Setenv("SYNC_TEST_DUR", "250ms")

	assert.True(t, getEnvBool("SYNC_TEST_BOOL", false))
	assert.Equal(t, 42, getEnvInt("SYNC_TEST_INT", 42))
	assert.Equal(t, 250*time.Millisecond, getEnvDuration("SYNC_TEST_DUR", time.Second))
	assert.Equal(t, "fallback", getEnv("SYNC_TEST_MISSING", "fallback"))
}
