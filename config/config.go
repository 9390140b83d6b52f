package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Defaults applied by Validate when a field is left empty
const (
	DefaultIdentityURL    = "https://www.googleapis.com/identitytoolkit/v3/relyingparty"
	DefaultSecureTokenURL = "https://securetoken.googleapis.com/v1"
	DefaultBaseURL        = "https://api.ohme.io"

	DefaultPollIntervalSeconds = 60
	DefaultHTTPTimeoutSeconds  = 30
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Security SecurityConfig `json:"security" yaml:"security"`
	Ohme     OhmeConfig     `json:"ohme" yaml:"ohme"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// SecurityConfig contains security settings for the local API
type SecurityConfig struct {
	APIKey string `json:"api_key" yaml:"api_key"`
}

// OhmeConfig contains the charger account and backend settings
type OhmeConfig struct {
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password" yaml:"password"`
	APIKey   string `json:"api_key" yaml:"api_key"` // identity backend web API key

	BaseURL        string `json:"base_url" yaml:"base_url"`
	IdentityURL    string `json:"identity_url" yaml:"identity_url"`
	SecureTokenURL string `json:"secure_token_url" yaml:"secure_token_url"`

	PollIntervalSeconds int `json:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	HTTPTimeoutSeconds  int `json:"http_timeout_seconds" yaml:"http_timeout_seconds"`
}

// PollInterval returns the scan interval as a duration
func (c OhmeConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// HTTPTimeout returns the outbound request timeout as a duration
func (c OhmeConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json or text
}

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port", ErrInvalidConfig)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfig)
	}

	if c.Security.APIKey == "" {
		return fmt.Errorf("%w: API key is required", ErrInvalidConfig)
	}

	// The daemon signs in unattended
	if c.Ohme.Password == "" {
		return fmt.Errorf("%w: ohme password is required", ErrInvalidConfig)
	}

	return c.Ohme.Validate(&c.Logging)
}

// Validate checks the charger account settings. Shared by the daemon and the CLI,
// which has no server or database section and may prompt for the password.
func (c *OhmeConfig) Validate(logging *LoggingConfig) error {
	if c.Email == "" {
		return fmt.Errorf("%w: ohme email is required", ErrInvalidConfig)
	}

	if c.APIKey == "" {
		return fmt.Errorf("%w: ohme api key is required", ErrInvalidConfig)
	}

	if c.PollIntervalSeconds < 0 || c.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("%w: intervals cannot be negative", ErrInvalidConfig)
	}

	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.IdentityURL == "" {
		c.IdentityURL = DefaultIdentityURL
	}
	if c.SecureTokenURL == "" {
		c.SecureTokenURL = DefaultSecureTokenURL
	}
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if c.HTTPTimeoutSeconds == 0 {
		c.HTTPTimeoutSeconds = DefaultHTTPTimeoutSeconds
	}

	if logging != nil {
		if logging.Level == "" {
			logging.Level = DefaultLogLevel
		}
		if logging.Format == "" {
			logging.Format = DefaultLogFormat
		}
		if logging.Format != "json" && logging.Format != "text" {
			return fmt.Errorf("%w: log format must be json or text", ErrInvalidConfig)
		}
	}

	return nil
}

// Load loads configuration from a JSON or YAML file, chosen by extension
func Load(path string) (*Config, error) {
	var config Config
	if err := decodeFile(path, &config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadOhme loads only the charger section of a config file
func LoadOhme(path string) (*OhmeConfig, error) {
	var config Config
	if err := decodeFile(path, &config); err != nil {
		return nil, err
	}

	if err := config.Ohme.Validate(nil); err != nil {
		return nil, err
	}

	return &config.Ohme, nil
}

func decodeFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigFileNotFound
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, out)
	default:
		err = json.Unmarshal(data, out)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
// This is useful for containerized deployments
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnv("OHME_HOST", "0.0.0.0"),
			Port: getEnvInt("OHME_PORT", 8080),
		},
		Database: DatabaseConfig{
			Path: getEnv("OHME_DB_PATH", "./ohmebridge.db"),
		},
		Security: SecurityConfig{
			APIKey: getEnv("OHME_BRIDGE_API_KEY", ""),
		},
		Ohme:    ohmeFromEnv(),
		Logging: LoggingConfig{
			Level:  getEnv("OHME_LOG_LEVEL", DefaultLogLevel),
			Format: getEnv("OHME_LOG_FORMAT", DefaultLogFormat),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadOhmeFromEnv loads only the charger settings from environment variables
func LoadOhmeFromEnv() (*OhmeConfig, error) {
	config := ohmeFromEnv()
	if err := config.Validate(nil); err != nil {
		return nil, err
	}
	return &config, nil
}

func ohmeFromEnv() OhmeConfig {
	return OhmeConfig{
		Email:               getEnv("OHME_EMAIL", ""),
		Password:            getEnv("OHME_PASSWORD", ""),
		APIKey:              getEnv("OHME_API_KEY", ""),
		BaseURL:             getEnv("OHME_BASE_URL", DefaultBaseURL),
		IdentityURL:         getEnv("OHME_IDENTITY_URL", DefaultIdentityURL),
		SecureTokenURL:      getEnv("OHME_SECURE_TOKEN_URL", DefaultSecureTokenURL),
		PollIntervalSeconds: getEnvInt("OHME_POLL_INTERVAL", DefaultPollIntervalSeconds),
		HTTPTimeoutSeconds:  getEnvInt("OHME_HTTP_TIMEOUT", DefaultHTTPTimeoutSeconds),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		fmt.Sscanf(value, "%d", &intVal)
		return intVal
	}
	return defaultValue
}
