package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Storage backend identifiers.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// StorageConfig selects and configures the local key-value backend.
type StorageConfig struct {
	// Backend is one of the Storage* constants.
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Path is the data directory for the file backend or the database
	// file for the sqlite backend. Ignored by the memory backend.
	Path string `mapstructure:"path" yaml:"path"`
}

// RemoteConfig configures the optional remote API backend. When enabled,
// the same JSON shape that the local store persists crosses the HTTP
// boundary verbatim.
type RemoteConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Token is sent as a Bearer credential on every request.
	Token string `mapstructure:"token" yaml:"token"`

	// PushTimeoutSec bounds a single background save to the backend.
	PushTimeoutSec int `mapstructure:"push_timeout_sec" yaml:"push_timeout_sec"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Remote  RemoteConfig  `mapstructure:"remote" yaml:"remote"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/projectplanner/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "projectplanner", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	home, err := os.UserHomeDir()
	dataDir := "."
	if err == nil {
		dataDir = filepath.Join(home, ".local", "share", "projectplanner")
	}
	return &AppConfig{
		Storage: StorageConfig{
			Backend: StorageFile,
			Path:    dataDir,
		},
		Remote: RemoteConfig{
			PushTimeoutSec: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	def := defaultAppConfig()
	v.SetDefault("storage.backend", def.Storage.Backend)
	v.SetDefault("storage.path", def.Storage.Path)
	v.SetDefault("remote.push_timeout_sec", def.Remote.PushTimeoutSec)
	v.SetDefault("log.level", def.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return def, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Remote.Enabled && cfg.Remote.BaseURL == "" {
		return nil, fmt.Errorf("config %s: remote.base_url is required when remote.enabled is set", path)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("storage", cfg.Storage)
	v.Set("remote", cfg.Remote)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
