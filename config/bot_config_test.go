package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBotConfig() BotConfig {
	return BotConfig{
		Server: ServerConfig{Port: 8081},
		Telegram: TelegramBotConfig{
			Token:        "123:abc",
			AllowedUsers: []int64{42},
			WebhookURL:   "https://bot.example.com/telegram/webhook",
		},
		Bridge: BridgeAPIConfig{BaseURL: "http://localhost:8080", APIKey: "bridge-key"},
	}
}

func TestBotConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *BotConfig)
		wantErr bool
	}{
		{"valid config", func(c *BotConfig) {}, false},
		{"invalid port", func(c *BotConfig) { c.Server.Port = 0 }, true},
		{"missing token", func(c *BotConfig) { c.Telegram.Token = "" }, true},
		{"no allowed users", func(c *BotConfig) { c.Telegram.AllowedUsers = nil }, true},
		{"missing webhook url", func(c *BotConfig) { c.Telegram.WebhookURL = "" }, true},
		{"unknown timezone", func(c *BotConfig) { c.Telegram.Timezone = "Mars/Olympus" }, true},
		{"known timezone", func(c *BotConfig) { c.Telegram.Timezone = "UTC" }, false},
		{"missing bridge url", func(c *BotConfig) { c.Bridge.BaseURL = "" }, true},
		{"missing bridge key", func(c *BotConfig) { c.Bridge.APIKey = "" }, true},
		{"negative timeout", func(c *BotConfig) { c.Bridge.HTTPTimeoutSeconds = -1 }, true},
		{"bad log format", func(c *BotConfig) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBotConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBotConfig_Defaults(t *testing.T) {
	cfg := validBotConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, DefaultHTTPTimeoutSeconds, cfg.Bridge.HTTPTimeoutSeconds)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
}

func TestBotConfig_IsUserAllowed(t *testing.T) {
	cfg := validBotConfig()
	assert.True(t, cfg.IsUserAllowed(42))
	assert.False(t, cfg.IsUserAllowed(7))
}

func TestLoadBotConfig_YAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bot.yaml")
	content := `server:
  port: 8081
telegram:
  token: "123:abc"
  allowed_users: [42, 43]
  webhook_url: https://bot.example.com/telegram/webhook
  timezone: Europe/London
bridge:
  base_url: http://localhost:8080
  api_key: bridge-key
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadBotConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, []int64{42, 43}, cfg.Telegram.AllowedUsers)
	assert.Equal(t, "Europe/London", cfg.Telegram.Timezone)
	assert.Equal(t, "bridge-key", cfg.Bridge.APIKey)
}

func TestLoadBotConfig_NotFound(t *testing.T) {
	_, err := LoadBotConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}

func TestLoadBotConfigFromEnv(t *testing.T) {
	t.Setenv("OHME_BOT_TOKEN", "123:abc")
	t.Setenv("OHME_BOT_ALLOWED_USERS", "42, 43")
	t.Setenv("OHME_BOT_WEBHOOK_URL", "https://bot.example.com/telegram/webhook")
	t.Setenv("OHME_BRIDGE_URL", "http://localhost:8080")
	t.Setenv("OHME_BRIDGE_API_KEY", "bridge-key")

	cfg, err := LoadBotConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, []int64{42, 43}, cfg.Telegram.AllowedUsers)

	t.Setenv("OHME_BOT_ALLOWED_USERS", "42,alice")
	_, err = LoadBotConfigFromEnv()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
