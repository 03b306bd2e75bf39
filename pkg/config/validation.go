package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// A badger store needs a database directory
	if cfg.Store.Type == "badger" {
		path, _ := cfg.Store.Badger["db_path"].(string)
		if path == "" {
			return fmt.Errorf("store.badger: db_path is required")
		}
	}

	// An S3 remote needs bucket and region; the rest has usable defaults
	if cfg.Remote.Type == "s3" {
		bucket, _ := cfg.Remote.S3["bucket"].(string)
		if bucket == "" {
			return fmt.Errorf("remote.s3: bucket is required")
		}
		region, _ := cfg.Remote.S3["region"].(string)
		if region == "" {
			return fmt.Errorf("remote.s3: region is required")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
