package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func validConfig() *Config {
	cfg := GetDefaultConfig()
	cfg.Account = "user@example.com"
	cfg.Remote.S3 = map[string]any{
		"bucket": "media",
		"region": "eu-west-1",
	}
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level INFO, got %q", cfg.Logging.Level)
	}
	if cfg.Store.Type != "badger" {
		t.Errorf("Expected default store type badger, got %q", cfg.Store.Type)
	}
	if cfg.Store.Badger["db_path"] == "" {
		t.Error("Expected default badger db_path to be set")
	}
	if cfg.Cache.Path == "" {
		t.Error("Expected default cache path to be set")
	}
	if cfg.Cache.MaxBytes == 0 {
		t.Error("Expected default cache budget to be set")
	}
	if cfg.Sync.PageSize == 0 {
		t.Error("Expected default page size to be set")
	}
	if cfg.Remote.Type != "s3" {
		t.Errorf("Expected default remote type s3, got %q", cfg.Remote.Type)
	}
}

func TestApplyDefaultsNormalizesLogLevel(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level DEBUG, got %q", cfg.Logging.Level)
	}
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Cache: CacheConfig{MaxBytes: 1234},
		Sync:  SyncConfig{PageSize: 50},
	}
	ApplyDefaults(cfg)

	if cfg.Cache.MaxBytes != 1234 {
		t.Errorf("Explicit cache budget overwritten: %d", cfg.Cache.MaxBytes)
	}
	if cfg.Sync.PageSize != 50 {
		t.Errorf("Explicit page size overwritten: %d", cfg.Sync.PageSize)
	}
}

func TestValidateValid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Expected valid config, got: %v", err)
	}
}

func TestValidateMissingAccount(t *testing.T) {
	cfg := validConfig()
	cfg.Account = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for missing account")
	}
}

func TestValidateAccountWithColon(t *testing.T) {
	cfg := validConfig()
	cfg.Account = "user:name"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for account containing a colon")
	}
}

func TestValidateBadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "VERBOSE"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for unknown log level")
	}
}

func TestValidateUnknownStoreType(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Type = "postgres"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for unknown store type")
	}
}

func TestValidateBadgerMissingDBPath(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Badger = map[string]any{}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for badger store without db_path")
	}
	if !strings.Contains(err.Error(), "db_path") {
		t.Errorf("Expected db_path error, got: %v", err)
	}
}

func TestValidateS3MissingBucket(t *testing.T) {
	cfg := validConfig()
	cfg.Remote.S3 = map[string]any{"region": "eu-west-1"}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for s3 remote without bucket")
	}
	if !strings.Contains(err.Error(), "bucket") {
		t.Errorf("Expected bucket error, got: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
account: user@example.com
logging:
  level: debug
store:
  type: memory
cache:
  path: ` + filepath.Join(dir, "artifacts") + `
remote:
  type: s3
  s3:
    bucket: media
    region: eu-west-1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Account != "user@example.com" {
		t.Errorf("Unexpected account: %q", cfg.Account)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized DEBUG level, got %q", cfg.Logging.Level)
	}
	if cfg.Store.Type != "memory" {
		t.Errorf("Unexpected store type: %q", cfg.Store.Type)
	}
	// Unspecified fields picked up their defaults.
	if cfg.Sync.PageSize == 0 {
		t.Error("Expected default page size to be applied")
	}
}

// TestDumpLoadRoundTrip verifies a marshalled config loads back intact:
// the yaml keys must match the mapstructure keys or every multi-word
// setting silently reverts to its default.
func TestDumpLoadRoundTrip(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.MaxBytes = 777
	cfg.Cache.ThumbMemoryBytes = 888
	cfg.Sync.PageSize = 55
	cfg.Sync.SearchLimit = 66

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load dumped config: %v", err)
	}

	if loaded.Cache.MaxBytes != 777 {
		t.Errorf("cache.max_bytes lost in round trip: %d", loaded.Cache.MaxBytes)
	}
	if loaded.Cache.ThumbMemoryBytes != 888 {
		t.Errorf("cache.thumb_memory_bytes lost in round trip: %d", loaded.Cache.ThumbMemoryBytes)
	}
	if loaded.Sync.PageSize != 55 {
		t.Errorf("sync.page_size lost in round trip: %d", loaded.Sync.PageSize)
	}
	if loaded.Sync.SearchLimit != 66 {
		t.Errorf("sync.search_limit lost in round trip: %d", loaded.Sync.SearchLimit)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	// No account, so validation must fail.
	content := `
store:
  type: memory
remote:
  type: s3
  s3:
    bucket: media
    region: eu-west-1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Expected validation error for config without account")
	}
}
