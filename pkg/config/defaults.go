package config

import (
	"strings"

	"github.com/marmos91/mediasync/pkg/cache"
	"github.com/marmos91/mediasync/pkg/fetch"
	mediasync "github.com/marmos91/mediasync/pkg/sync"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStoreDefaults(&cfg.Store)
	applyCacheDefaults(&cfg.Cache)
	applySyncDefaults(&cfg.Sync)
	applyRemoteDefaults(&cfg.Remote)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)
}

// applyStoreDefaults sets record store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}

	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = defaultDataDir("records")
	}
}

// applyCacheDefaults sets artifact cache defaults.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Path == "" {
		cfg.Path = defaultDataDir("artifacts")
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = cache.DefaultMaxBytes
	}
	if cfg.ThumbMemoryBytes == 0 {
		cfg.ThumbMemoryBytes = fetch.DefaultMemoryBytes
	}
}

// applySyncDefaults sets pagination defaults.
func applySyncDefaults(cfg *SyncConfig) {
	if cfg.PageSize == 0 {
		cfg.PageSize = mediasync.DefaultPageSize
	}
	// SearchLimit defaults to 0 (unlimited)
}

// applyRemoteDefaults sets remote source defaults.
func applyRemoteDefaults(cfg *RemoteConfig) {
	if cfg.Type == "" {
		cfg.Type = "s3"
	}

	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Store: StoreConfig{
			Badger: make(map[string]any),
		},
		Remote: RemoteConfig{
			S3: make(map[string]any),
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
