package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load loads configuration with precedence: defaults < config file < env.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		// The config file is optional unless explicitly specified.
		if l.configFile != "" {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		v.AddConfigPath(filepath.Join(xdg, "hivedesk"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		v.AddConfigPath(filepath.Join(home, ".config", "hivedesk"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("HIVEDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.setDefaults(cfg)
	v.AutomaticEnv()
}

func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.token", cfg.API.Token)
	v.SetDefault("api.request_timeout", cfg.API.RequestTimeout)

	v.SetDefault("sync.poll_interval", cfg.Sync.PollInterval)

	v.SetDefault("server.listen", cfg.Server.Listen)
	v.SetDefault("server.database_path", cfg.Server.DatabasePath)
	v.SetDefault("server.jwt_secret", cfg.Server.JWTSecret)
	v.SetDefault("server.token_ttl", cfg.Server.TokenTTL)
	v.SetDefault("server.cors_origins", cfg.Server.CORSOrigins)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("tui.anchor_rows", cfg.TUI.AnchorRows)
	v.SetDefault("tui.show_timestamps", cfg.TUI.ShowTimestamps)
}

func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && l.configFile == "" {
			return nil
		}
		return err
	}
	return nil
}
