package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BotConfig represents the Telegram bot configuration
type BotConfig struct {
	Server   ServerConfig      `json:"server" yaml:"server"`
	Telegram TelegramBotConfig `json:"telegram" yaml:"telegram"`
	Bridge   BridgeAPIConfig   `json:"bridge" yaml:"bridge"`
	Logging  LoggingConfig     `json:"logging" yaml:"logging"`
}

// TelegramBotConfig contains Telegram bot settings
type TelegramBotConfig struct {
	Token         string  `json:"token" yaml:"token"`
	AllowedUsers  []int64 `json:"allowed_users" yaml:"allowed_users"`
	WebhookURL    string  `json:"webhook_url" yaml:"webhook_url"`
	WebhookSecret string  `json:"webhook_secret" yaml:"webhook_secret"`
	Timezone      string  `json:"timezone" yaml:"timezone"` // IANA name used for displayed times
}

// BridgeAPIConfig contains the ohmebridge API connection settings
type BridgeAPIConfig struct {
	BaseURL            string `json:"base_url" yaml:"base_url"`
	APIKey             string `json:"api_key" yaml:"api_key"`
	HTTPTimeoutSeconds int    `json:"http_timeout_seconds" yaml:"http_timeout_seconds"`
}

// HTTPTimeout returns the bridge request timeout as a duration
func (c BridgeAPIConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// LoadBotConfig loads bot configuration from a JSON or YAML file
func LoadBotConfig(path string) (*BotConfig, error) {
	var cfg BotConfig
	if err := decodeFile(path, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadBotConfigFromEnv loads bot configuration from environment variables
func LoadBotConfigFromEnv() (*BotConfig, error) {
	users, err := parseUserIDs(getEnv("OHME_BOT_ALLOWED_USERS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &BotConfig{
		Server: ServerConfig{
			Host: getEnv("OHME_BOT_HOST", "0.0.0.0"),
			Port: getEnvInt("OHME_BOT_PORT", 8081),
		},
		Telegram: TelegramBotConfig{
			Token:         getEnv("OHME_BOT_TOKEN", ""),
			AllowedUsers:  users,
			WebhookURL:    getEnv("OHME_BOT_WEBHOOK_URL", ""),
			WebhookSecret: getEnv("OHME_BOT_WEBHOOK_SECRET", ""),
			Timezone:      getEnv("OHME_BOT_TIMEZONE", ""),
		},
		Bridge: BridgeAPIConfig{
			BaseURL:            getEnv("OHME_BRIDGE_URL", ""),
			APIKey:             getEnv("OHME_BRIDGE_API_KEY", ""),
			HTTPTimeoutSeconds: getEnvInt("OHME_BRIDGE_HTTP_TIMEOUT", DefaultHTTPTimeoutSeconds),
		},
		Logging: LoggingConfig{
			Level:  getEnv("OHME_LOG_LEVEL", DefaultLogLevel),
			Format: getEnv("OHME_LOG_FORMAT", DefaultLogFormat),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseUserIDs reads a comma separated list of Telegram user IDs
func parseUserIDs(value string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid telegram user id %q", ErrInvalidConfig, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Validate checks if the configuration is valid and fills defaults
func (c *BotConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port", ErrInvalidConfig)
	}

	if c.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram.token is required", ErrInvalidConfig)
	}

	if len(c.Telegram.AllowedUsers) == 0 {
		return fmt.Errorf("%w: telegram.allowed_users cannot be empty", ErrInvalidConfig)
	}

	if c.Telegram.WebhookURL == "" {
		return fmt.Errorf("%w: telegram.webhook_url is required", ErrInvalidConfig)
	}

	if c.Telegram.Timezone != "" {
		if _, err := time.LoadLocation(c.Telegram.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfig, c.Telegram.Timezone)
		}
	}

	if c.Bridge.BaseURL == "" {
		return fmt.Errorf("%w: bridge.base_url is required", ErrInvalidConfig)
	}

	if c.Bridge.APIKey == "" {
		return fmt.Errorf("%w: bridge.api_key is required", ErrInvalidConfig)
	}

	if c.Bridge.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("%w: intervals cannot be negative", ErrInvalidConfig)
	}
	if c.Bridge.HTTPTimeoutSeconds == 0 {
		c.Bridge.HTTPTimeoutSeconds = DefaultHTTPTimeoutSeconds
	}

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("%w: log format must be json or text", ErrInvalidConfig)
	}

	return nil
}

// IsUserAllowed checks if a user ID is in the whitelist
func (c *BotConfig) IsUserAllowed(userID int64) bool {
	for _, allowedID := range c.Telegram.AllowedUsers {
		if allowedID == userID {
			return true
		}
	}
	return false
}
