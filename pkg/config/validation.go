package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MinWindowBytes is the smallest non-zero send window. A window must hold the
// largest call the fetcher sends, or that call could never be transmitted.
const MinWindowBytes = 4096

// readReplyOverhead is the reply header and READ result bytes preceding the
// data in a READ reply record.
const readReplyOverhead = 512

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
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	t := cfg.Transport

	if t.WindowBytes != 0 && t.WindowBytes < MinWindowBytes {
		return fmt.Errorf("transport.window_bytes: %d is below the minimum of %d (use 0 for no window)",
			t.WindowBytes, MinWindowBytes)
	}

	if t.BytesPerSecond != 0 && t.WindowBytes == 0 {
		return fmt.Errorf("transport.bytes_per_second: requires window_bytes")
	}

	// A full READ reply has to fit in one inbound record
	if t.MaxRecordSize != 0 && uint64(cfg.Client.ReadSize)+readReplyOverhead > uint64(t.MaxRecordSize) {
		return fmt.Errorf("client.read_size: %d does not fit in transport.max_record_size %d",
			cfg.Client.ReadSize, t.MaxRecordSize)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Address == "" && cfg.Metrics.TextfilePath == "" {
		return fmt.Errorf("metrics: enabled but neither address nor textfile_path is set")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		// Return the first validation error with context
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
