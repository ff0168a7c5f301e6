// Package config loads the vigil daemon configuration from a TOML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultStopTimeout       = 10 * time.Second
	DefaultMaxRestarts       = 5
	DefaultRestartWindow     = 300 * time.Second
	DefaultListen            = "127.0.0.1:8484"
)

// Config is the top-level configuration.
type Config struct {
	// DataDir hosts the pidfile and metrics document unless explicit
	// paths are given.
	DataDir           string        `mapstructure:"data_dir"`
	PIDFile           string        `mapstructure:"pidfile"`
	MetricsFile       string        `mapstructure:"metrics_file"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	StopTimeout       time.Duration `mapstructure:"stop_timeout"`
	MaxRestarts       int           `mapstructure:"max_restarts"`
	RestartWindow     time.Duration `mapstructure:"restart_window"`
	AutoRestart       bool          `mapstructure:"autorestart"`
	// Listen is the address of the embedded status API; empty disables it.
	Listen  string        `mapstructure:"listen"`
	Log     LogConfig     `mapstructure:"log"`
	History HistoryConfig `mapstructure:"history"`
}

type LogConfig struct {
	// Dir receives the rotated daemon log. Empty means DataDir/logs.
	Dir        string `mapstructure:"dir"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type HistoryConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	DSNs    []string `mapstructure:"dsns"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	cfg := Config{
		HeartbeatInterval: DefaultHeartbeatInterval,
		StopTimeout:       DefaultStopTimeout,
		MaxRestarts:       DefaultMaxRestarts,
		RestartWindow:     DefaultRestartWindow,
		AutoRestart:       true,
		Listen:            DefaultListen,
		Log:               LogConfig{Level: "info"},
	}
	cfg.normalize()
	return cfg
}

// Load reads the TOML file at path (optional) and applies VIGIL_*
// environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("heartbeat_interval", DefaultHeartbeatInterval)
	v.SetDefault("stop_timeout", DefaultStopTimeout)
	v.SetDefault("max_restarts", DefaultMaxRestarts)
	v.SetDefault("restart_window", DefaultRestartWindow)
	v.SetDefault("autorestart", true)
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize derives missing paths and clamps nonsensical values.
func (c *Config) normalize() {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.DataDir = filepath.Join(home, ".vigil")
	}
	if c.PIDFile == "" {
		c.PIDFile = filepath.Join(c.DataDir, "vigil.pid")
	}
	if c.MetricsFile == "" {
		c.MetricsFile = filepath.Join(c.DataDir, "process_metrics.json")
	}
	if c.Log.Dir == "" {
		c.Log.Dir = filepath.Join(c.DataDir, "logs")
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.MaxRestarts <= 0 {
		c.MaxRestarts = DefaultMaxRestarts
	}
	if c.RestartWindow <= 0 {
		c.RestartWindow = DefaultRestartWindow
	}
}
