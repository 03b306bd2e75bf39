// Package config loads, defaults, and validates the mediasync
// configuration, and provides factories that build the configured record
// store and remote source.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete mediasync configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (MEDIASYNC_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Store Configuration Pattern:
// The store and remote sections carry a Type field plus one
// type-specific map per implementation; only the map matching the
// selected type is decoded (see factories.go).
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Account is the session identifier (server user) this client syncs
	Account string `mapstructure:"account" validate:"required,excludes=:" yaml:"account"`

	// Store specifies the record store type and type-specific configuration
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Cache configures the on-disk artifact cache
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Sync configures pagination and listing windows
	Sync SyncConfig `mapstructure:"sync" yaml:"sync"`

	// Remote specifies the remote source type and type-specific configuration
	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
}

// StoreConfig specifies record store configuration.
type StoreConfig struct {
	// Type specifies which record store implementation to use
	// Valid values: badger, memory
	Type string `mapstructure:"type" validate:"required,oneof=badger memory" yaml:"type"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// CacheConfig configures the on-disk artifact cache.
type CacheConfig struct {
	// Path is the cache root directory
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// MaxBytes is the cache byte budget (default 500MB)
	MaxBytes int64 `mapstructure:"max_bytes" validate:"gte=0" yaml:"max_bytes"`

	// ThumbMemoryBytes is the in-memory thumbnail tier budget (default 32MB)
	ThumbMemoryBytes int64 `mapstructure:"thumb_memory_bytes" validate:"gte=0" yaml:"thumb_memory_bytes"`
}

// SyncConfig configures listing and pagination behavior.
type SyncConfig struct {
	// PageSize is how many records one UI page holds (default 200)
	PageSize int `mapstructure:"page_size" validate:"gte=0" yaml:"page_size"`

	// SearchLimit bounds one listing request; 0 means unlimited
	SearchLimit int `mapstructure:"search_limit" validate:"gte=0" yaml:"search_limit"`
}

// RemoteConfig specifies remote source configuration.
type RemoteConfig struct {
	// Type specifies which remote source implementation to use
	// Valid values: s3
	Type string `mapstructure:"type" validate:"required,oneof=s3" yaml:"type"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses the default
//     location $XDG_CONFIG_HOME/mediasync/config.yaml)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variables and config file search.
func setupViper(v *viper.Viper, configPath string) {
	// Example: MEDIASYNC_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("MEDIASYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing
// file on the default search path is not an error: defaults plus
// environment variables may be a complete configuration. An explicitly
// requested file must exist.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && configPath == "" {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// defaultDataDir returns the default data directory for a subcomponent
// (record store, artifact cache).
func defaultDataDir(sub string) string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mediasync", sub)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mediasync", sub)
	}
	return filepath.Join(home, ".local", "share", "mediasync", sub)
}

// getConfigDir returns the default configuration directory.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mediasync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mediasync")
}
