package config

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// ConfigurationError represents errors during configuration validation or setup.
type ConfigurationError struct {
	Field   string // The configuration field that caused the error
	Message string // Human-readable error message
	Cause   error  // Underlying error cause (optional)
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error in field '%s': %s (caused by: %v)", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error in field '%s': %s", e.Field, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

func NewConfigurationErrorWithCause(field, message string, cause error) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// ValidationError represents validation failures for specific fields.
type ValidationError struct {
	Field string // The field that failed validation
	Value string // The invalid value
	Rule  string // The validation rule that was violated
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': value '%s' violates rule '%s'", e.Field, e.Value, e.Rule)
}

func NewValidationError(field, value, rule string) *ValidationError {
	return &ValidationError{
		Field: field,
		Value: value,
		Rule:  rule,
	}
}

var (
	// ErrMissingRequiredField indicates a required configuration field is missing
	ErrMissingRequiredField = errors.New("required configuration field is missing")

	// ErrInvalidURL indicates an invalid site URL
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrSameSite indicates source and destination point at the same site
	ErrSameSite = errors.New("source and destination are the same site")

	// ErrInvalidRateLimit indicates an invalid rate limiting configuration
	ErrInvalidRateLimit = errors.New("invalid rate limiting configuration")

	// ErrInvalidRetryConfiguration indicates an invalid retry configuration
	ErrInvalidRetryConfiguration = errors.New("invalid retry configuration")

	// ErrInvalidDuplicatePolicy indicates an unknown duplicate-title policy
	ErrInvalidDuplicatePolicy = errors.New("invalid duplicate policy")

	// ErrInvalidPattern indicates a malformed sitemap glob pattern
	ErrInvalidPattern = errors.New("invalid sitemap pattern")
)

func IsConfigurationError(err error) bool {
	var configErr *ConfigurationError
	return errors.As(err, &configErr)
}

func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// GetConfigurationField extracts the field name from a configuration error.
func GetConfigurationField(err error) string {
	var configErr *ConfigurationError
	if errors.As(err, &configErr) {
		return configErr.Field
	}
	return ""
}

// GetValidationRule extracts the validation rule from a validation error.
func GetValidationRule(err error) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Rule
	}
	return ""
}
