// Package config handles hivedesk configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the root configuration structure for hivedesk.
type Config struct {
	// API settings for the chat client.
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Sync settings for the conversation sync engine.
	Sync SyncConfig `yaml:"sync" mapstructure:"sync"`

	// Server settings for the local development backend.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Logging settings.
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// TUI settings.
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// APIConfig describes how the client reaches the portal API.
type APIConfig struct {
	// BaseURL is the portal API root (e.g. http://127.0.0.1:8000).
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Token is the auth token attached to every request.
	Token string `yaml:"token" mapstructure:"token"`

	// RequestTimeout bounds each transport call.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// SyncConfig tunes the polling sync engine.
type SyncConfig struct {
	// PollInterval is the cadence of the message poll loop.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// ServerConfig configures the development backend.
type ServerConfig struct {
	// Listen is the address the development backend binds to.
	Listen string `yaml:"listen" mapstructure:"listen"`

	// DatabasePath is the SQLite database file path.
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`

	// JWTSecret signs access tokens. Required to run the server.
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`

	// TokenTTL is the access token lifetime.
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`

	// CORSOrigins lists allowed browser origins.
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`
}

// TUIConfig contains terminal client settings.
type TUIConfig struct {
	// AnchorRows is how close to the newest message, in rows, the
	// viewport may be while still counting as anchored to the bottom.
	AnchorRows int `yaml:"anchor_rows" mapstructure:"anchor_rows"`

	// ShowTimestamps toggles per-message timestamps.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://127.0.0.1:8000",
			RequestTimeout: 10 * time.Second,
		},
		Sync: SyncConfig{
			PollInterval: 3 * time.Second,
		},
		Server: ServerConfig{
			Listen:       "127.0.0.1:8000",
			DatabasePath: defaultDatabasePath(),
			TokenTTL:     24 * time.Hour,
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		TUI: TUIConfig{
			AnchorRows:     3,
			ShowTimestamps: true,
		},
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.poll_interval must be positive, got %s", c.Sync.PollInterval)
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be positive, got %s", c.API.RequestTimeout)
	}
	if c.TUI.AnchorRows < 0 {
		return fmt.Errorf("tui.anchor_rows must not be negative, got %d", c.TUI.AnchorRows)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func defaultDatabasePath() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "hivedesk", "hivedesk.db")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "hivedesk.db"
	}
	return filepath.Join(home, ".local", "share", "hivedesk", "hivedesk.db")
}
