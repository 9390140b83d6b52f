package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOhme() OhmeConfig {
	return OhmeConfig{Email: "owner@example.com", Password: "secret", APIKey: "web-key"}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				Server: ServerConfig{
					Host: "0.0.0.0",
					Port: 8080,
				},
				Database: DatabaseConfig{
					Path: "/path/to/db",
				},
				Security: SecurityConfig{
					APIKey: "test-key",
				},
				Ohme: validOhme(),
			},
			wantErr: false,
		},
		{
			name: "invalid port - zero",
			config: Config{
				Server:   ServerConfig{Port: 0},
				Database: DatabaseConfig{Path: "/path/to/db"},
				Security: SecurityConfig{APIKey: "test-key"},
				Ohme:     validOhme(),
			},
			wantErr: true,
		},
		{
			name: "invalid port - too large",
			config: Config{
				Server:   ServerConfig{Port: 70000},
				Database: DatabaseConfig{Path: "/path/to/db"},
				Security: SecurityConfig{APIKey: "test-key"},
				Ohme:     validOhme(),
			},
			wantErr: true,
		},
		{
			name: "missing database path",
			config: Config{
				Server:   ServerConfig{Port: 8080},
				Security: SecurityConfig{APIKey: "test-key"},
				Ohme:     validOhme(),
			},
			wantErr: true,
		},
		{
			name: "missing API key",
			config: Config{
				Server:   ServerConfig{Port: 8080},
				Database: DatabaseConfig{Path: "/path/to/db"},
				Ohme:     validOhme(),
			},
			wantErr: true,
		},
		{
			name: "missing ohme password",
			config: Config{
				Server:   ServerConfig{Port: 8080},
				Database: DatabaseConfig{Path: "/path/to/db"},
				Security: SecurityConfig{APIKey: "test-key"},
				Ohme:     OhmeConfig{Email: "owner@example.com", APIKey: "web-key"},
			},
			wantErr: true,
		},
		{
			name: "missing ohme web api key",
			config: Config{
				Server:   ServerConfig{Port: 8080},
				Database: DatabaseConfig{Path: "/path/to/db"},
				Security: SecurityConfig{APIKey: "test-key"},
				Ohme:     OhmeConfig{Email: "owner@example.com", Password: "secret"},
			},
			wantErr: true,
		},
		{
			name: "negative poll interval",
			config: Config{
				Server:   ServerConfig{Port: 8080},
				Database: DatabaseConfig{Path: "/path/to/db"},
				Security: SecurityConfig{APIKey: "test-key"},
				Ohme:     OhmeConfig{Email: "owner@example.com", Password: "secret", APIKey: "web-key", PollIntervalSeconds: -1},
			},
			wantErr: true,
		},
		{
			name: "unknown log format",
			config: Config{
				Server:   ServerConfig{Port: 8080},
				Database: DatabaseConfig{Path: "/path/to/db"},
				Security: SecurityConfig{APIKey: "test-key"},
				Ohme:     validOhme(),
				Logging:  LoggingConfig{Format: "xml"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateDefaults(t *testing.T) {
	config := Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "/path/to/db"},
		Security: SecurityConfig{APIKey: "test-key"},
		Ohme:     validOhme(),
	}
	require.NoError(t, config.Validate())

	assert.Equal(t, DefaultBaseURL, config.Ohme.BaseURL)
	assert.Equal(t, DefaultIdentityURL, config.Ohme.IdentityURL)
	assert.Equal(t, DefaultSecureTokenURL, config.Ohme.SecureTokenURL)
	assert.Equal(t, 60, config.Ohme.PollIntervalSeconds)
	assert.Equal(t, 30, config.Ohme.HTTPTimeoutSeconds)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	validConfig := `{
		"server": {
			"host": "0.0.0.0",
			"port": 8080
		},
		"database": {
			"path": "/path/to/db"
		},
		"security": {
			"api_key": "test-key"
		},
		"ohme": {
			"email": "owner@example.com",
			"password": "secret",
			"api_key": "web-key",
			"poll_interval_seconds": 120
		},
		"logging": {
			"level": "debug",
			"format": "text"
		}
	}`

	err := os.WriteFile(configPath, []byte(validConfig), 0644)
	require.NoError(t, err)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "/path/to/db", config.Database.Path)
	assert.Equal(t, "test-key", config.Security.APIKey)
	assert.Equal(t, "owner@example.com", config.Ohme.Email)
	assert.Equal(t, 120, config.Ohme.PollIntervalSeconds)
	assert.Equal(t, "debug", config.Logging.Level)

	// Test loading non-existent file
	_, err = Load("/nonexistent/config.json")
	assert.ErrorIs(t, err, ErrConfigFileNotFound)

	// Test loading invalid JSON
	invalidPath := filepath.Join(tmpDir, "invalid.json")
	err = os.WriteFile(invalidPath, []byte("invalid json"), 0644)
	require.NoError(t, err)

	_, err = Load(invalidPath)
	assert.Error(t, err)
}

func TestLoad_YAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	validConfig := `
server:
  host: 127.0.0.1
  port: 9000
database:
  path: ./ohme.db
security:
  api_key: test-key
ohme:
  email: owner@example.com
  password: secret
  api_key: web-key
  base_url: http://localhost:9999
`
	require.NoError(t, os.WriteFile(configPath, []byte(validConfig), 0644))

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "./ohme.db", config.Database.Path)
	assert.Equal(t, "http://localhost:9999", config.Ohme.BaseURL)
	assert.Equal(t, DefaultIdentityURL, config.Ohme.IdentityURL)
	assert.Equal(t, 60, config.Ohme.PollIntervalSeconds)
}

func TestLoadOhme(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "ohme.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("ohme:\n  email: owner@example.com\n  password: secret\n  api_key: web-key\n"), 0644))

	config, err := LoadOhme(configPath)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", config.Email)
	assert.Equal(t, DefaultBaseURL, config.BaseURL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("OHME_HOST", "127.0.0.1")
	t.Setenv("OHME_PORT", "9090")
	t.Setenv("OHME_DB_PATH", "/custom/db/path")
	t.Setenv("OHME_BRIDGE_API_KEY", "env-api-key")
	t.Setenv("OHME_EMAIL", "owner@example.com")
	t.Setenv("OHME_PASSWORD", "env-password")
	t.Setenv("OHME_API_KEY", "env-web-key")
	t.Setenv("OHME_POLL_INTERVAL", "30")

	config, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "/custom/db/path", config.Database.Path)
	assert.Equal(t, "env-api-key", config.Security.APIKey)
	assert.Equal(t, "env-password", config.Ohme.Password)
	assert.Equal(t, "env-web-key", config.Ohme.APIKey)
	assert.Equal(t, 30, config.Ohme.PollIntervalSeconds)
	assert.Equal(t, 30, config.Ohme.HTTPTimeoutSeconds)
}

func TestLoadOhmeFromEnv_Missing(t *testing.T) {
	t.Setenv("OHME_EMAIL", "")
	t.Setenv("OHME_PASSWORD", "")

	_, err := LoadOhmeFromEnv()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
