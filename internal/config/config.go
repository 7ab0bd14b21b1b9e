// Package config loads and validates aigrabber-core's configuration via
// viper, layered under cobra persistent flags the way the CLI entrypoint
// wires them.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the root configuration tree, unmarshalled from a YAML file,
// AIGRABBER_-prefixed environment variables, and CLI flags, in that
// increasing order of precedence.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Encoder   EncoderConfig   `mapstructure:"encoder"`
	Helper    HelperConfig    `mapstructure:"helper"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SchedulerConfig configures the job scheduler.
type SchedulerConfig struct {
	DownloadPath   string `mapstructure:"download_path"`
	MaxConcurrent  int    `mapstructure:"max_concurrent"`
	MinFreeSpaceGB int    `mapstructure:"min_free_space_gb"`
}

// EncoderConfig configures the encoder adapter.
type EncoderConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // explicit override; empty triggers probing
}

// HelperConfig configures the external-helper (ytdlp) adapter.
type HelperConfig struct {
	BinaryPath string `mapstructure:"binary_path"`
}

// DatabaseConfig configures the job-history store.
type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
	WALMode        bool   `mapstructure:"wal_mode"`
	AutoVacuum     bool   `mapstructure:"auto_vacuum"`
}

// LoggingConfig configures the slog-based logging setup.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty = default file under the state directory
	Format     string `mapstructure:"format"` // "text" or "json"
	Color      bool   `mapstructure:"color"`
	MaxSize    int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Defaults returns the built-in configuration used before any file, env,
// or flag override is applied.
func Defaults() Config {
	return Config{
		Scheduler: SchedulerConfig{
			DownloadPath:   filepath.Join(getHomeDir(), "Downloads", "aigrabber-core"),
			MaxConcurrent:  3,
			MinFreeSpaceGB: 1,
		},
		Database: DatabaseConfig{
			Path:           filepath.Join(getStateDir(), "aigrabber-core", "jobs.db"),
			MaxConnections: 4,
			WALMode:        true,
			AutoVacuum:     true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Color:  true,
		},
	}
}

// Load builds a Config by starting from Defaults() and unmarshalling the
// caller's viper instance (with whatever config file it has read) over
// it. CLI flag overrides are applied by the caller afterwards.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Defaults()
	v.SetEnvPrefix("AIGRABBER")
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return &cfg, nil
}

func getHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func getStateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(getHomeDir(), ".local", "state")
}
