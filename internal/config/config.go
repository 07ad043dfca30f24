// Package config provides configuration management for fibermap.
//
// Values come from, highest priority first:
//  1. Environment variables with the FIBERMAP_ prefix (FIBERMAP_HTTP_ADDR, ...)
//  2. A YAML config file
//  3. Built-in defaults
//
// Config file locations (priority order):
//  1. $FIBERMAP_CONFIG
//  2. ./fibermap.yaml
//  3. $XDG_CONFIG_HOME/fibermap/config.yaml
//  4. ~/.config/fibermap/config.yaml
//  5. /etc/fibermap/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "FIBERMAP"
	appName   = "fibermap"
)

// Config is the complete runtime configuration
type Config struct {
	HTTP     HTTPConfig
	Log      LogConfig
	Database DatabaseConfig
	Seed     SeedConfig
	Metrics  MetricsConfig
}

// HTTPConfig controls the API server
type HTTPConfig struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig controls the root logger. An empty File logs to stdout only.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DatabaseConfig locates the SQLite store
type DatabaseConfig struct {
	Path string
}

// SeedConfig names an optional topology document loaded into an empty store
type SeedConfig struct {
	Path  string
	Watch bool
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			RequestTimeout:  15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Database: DatabaseConfig{Path: "./fibermap.db"},
		Metrics:  MetricsConfig{Enabled: true},
	}
}

// Load finds and loads the config file, falling back to defaults and
// environment variables when none is found. It returns the path used.
func Load() (*Config, string, error) {
	v := newViper()
	path, err := locate(v)
	if err != nil {
		return nil, "", err
	}
	cfg, err := read(v, path)
	return cfg, path, err
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	if path == "" {
		return nil, "", fmt.Errorf("config path is empty")
	}
	cfg, err := read(newViper(), path)
	return cfg, path, err
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// locate returns the config file to read, or "" when none exists. An
// explicit $FIBERMAP_CONFIG is returned as is, so a wrong path fails loudly.
func locate(v *viper.Viper) (string, error) {
	if explicit := v.GetString("config"); explicit != "" {
		return explicit, nil
	}

	searches := []struct {
		name string
		dirs []string
	}{
		{name: appName, dirs: []string{"."}},
		{name: "config", dirs: configDirs()},
	}
	for _, s := range searches {
		finder := viper.New()
		finder.SetConfigName(s.name)
		for _, dir := range s.dirs {
			finder.AddConfigPath(dir)
		}
		err := finder.ReadInConfig()
		if err == nil {
			return finder.ConfigFileUsed(), nil
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return "", fmt.Errorf("read config: %w", err)
		}
	}
	return "", nil
}

// configDirs lists the per-user and system directories holding config.yaml
func configDirs() []string {
	var dirs []string
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, appName))
	}
	return append(dirs, "$HOME/.config/"+appName, "/etc/"+appName)
}

func read(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := unmarshal(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.request_timeout", d.HTTP.RequestTimeout)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("seed.path", d.Seed.Path)
	v.SetDefault("seed.watch", d.Seed.Watch)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

func unmarshal(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.HTTP.RequestTimeout = v.GetDuration("http.request_timeout")
	cfg.HTTP.ShutdownTimeout = v.GetDuration("http.shutdown_timeout")

	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.File = v.GetString("log.file")
	cfg.Log.MaxSizeMB = v.GetInt("log.max_size_mb")
	cfg.Log.MaxBackups = v.GetInt("log.max_backups")
	cfg.Log.MaxAgeDays = v.GetInt("log.max_age_days")
	cfg.Log.Compress = v.GetBool("log.compress")

	cfg.Database.Path = v.GetString("database.path")

	cfg.Seed.Path = v.GetString("seed.path")
	cfg.Seed.Watch = v.GetBool("seed.watch")

	cfg.Metrics.Enabled = v.GetBool("metrics.enabled")

	return cfg
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr must not be empty"))
	}
	if c.HTTP.RequestTimeout <= 0 {
		errs = append(errs, errors.New("http.request_timeout must be positive"))
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("http.shutdown_timeout must be positive"))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path must not be empty"))
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		errs = append(errs, errors.New("log rotation values must not be negative"))
	}
	if c.Seed.Watch && strings.TrimSpace(c.Seed.Path) == "" {
		errs = append(errs, errors.New("seed.watch needs seed.path"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
