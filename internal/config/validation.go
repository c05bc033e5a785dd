package config

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

func (c *Config) Validate() error {
	if err := c.validateSites(); err != nil {
		return errors.Errorf("site config validation failed: %w", err)
	}

	if err := c.validateHTTP(); err != nil {
		return errors.Errorf("HTTP config validation failed: %w", err)
	}

	if err := c.validateDiscovery(); err != nil {
		return errors.Errorf("discovery config validation failed: %w", err)
	}

	if err := c.validateMigration(); err != nil {
		return errors.Errorf("migration config validation failed: %w", err)
	}

	return nil
}

func (c *Config) validateSites() error {
	source, err := validateSiteURL("source URL", c.Source.URL)
	if err != nil {
		return err
	}

	destination, err := validateSiteURL("destination URL", c.Destination.URL)
	if err != nil {
		return err
	}

	if strings.EqualFold(source.Host, destination.Host) &&
		strings.TrimRight(source.Path, "/") == strings.TrimRight(destination.Path, "/") {
		return NewConfigurationErrorWithCause("destination URL", "must differ from the source URL", ErrSameSite)
	}

	if c.Destination.Username == "" {
		return NewConfigurationErrorWithCause("username", "WordPress username must be configured", ErrMissingRequiredField)
	}

	if c.Destination.AppPassword == "" {
		return NewConfigurationErrorWithCause("application password", "WordPress application password must be configured", ErrMissingRequiredField)
	}

	if (c.Source.Username == "") != (c.Source.AppPassword == "") {
		return NewConfigurationErrorWithCause("source credentials",
			"source username and application password must be set together", ErrMissingRequiredField)
	}

	return nil
}

func validateSiteURL(field, raw string) (*url.URL, error) {
	if raw == "" {
		return nil, NewConfigurationErrorWithCause(field, "must be configured", ErrMissingRequiredField)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, NewConfigurationErrorWithCause(field, "cannot be parsed", errors.Errorf("%w: %s", ErrInvalidURL, err.Error()))
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, NewConfigurationErrorWithCause(field, "scheme must be http or https", ErrInvalidURL)
	}

	if u.Host == "" {
		return nil, NewConfigurationErrorWithCause(field, "host is missing", ErrInvalidURL)
	}

	return u, nil
}

func (c *Config) validateHTTP() error {
	if c.HTTP.RequestDelay < 0 {
		return NewConfigurationErrorWithCause("request delay", "cannot be negative", ErrInvalidRateLimit)
	}

	if c.HTTP.Timeout <= 0 {
		return NewConfigurationErrorWithCause("request timeout", "must be positive", ErrInvalidRateLimit)
	}

	if c.HTTP.MaxAttempts <= 0 {
		return NewConfigurationErrorWithCause("max attempts", "must be positive", ErrInvalidRetryConfiguration)
	}

	if c.HTTP.RetryBackoff < 0 {
		return NewConfigurationErrorWithCause("retry backoff", "cannot be negative", ErrInvalidRetryConfiguration)
	}

	return nil
}

func (c *Config) validateDiscovery() error {
	if c.Discovery.PageSize < 1 || c.Discovery.PageSize > 100 {
		return NewValidationError("page size", strconv.Itoa(c.Discovery.PageSize), "between 1 and 100")
	}

	if len(c.Discovery.PostSitemapPatterns) == 0 {
		return NewConfigurationErrorWithCause("post sitemap patterns", "at least one pattern is required", ErrMissingRequiredField)
	}

	for _, pattern := range c.Discovery.PostSitemapPatterns {
		if !doublestar.ValidatePattern(pattern) {
			return NewConfigurationErrorWithCause("post sitemap patterns", "malformed pattern "+strconv.Quote(pattern), ErrInvalidPattern)
		}
	}

	return nil
}

func (c *Config) validateMigration() error {
	switch c.Migration.DuplicatePolicy {
	case DuplicateSkip, DuplicateCreate:
	default:
		return NewConfigurationErrorWithCause("duplicate policy",
			"must be "+string(DuplicateSkip)+" or "+string(DuplicateCreate)+", got "+strconv.Quote(string(c.Migration.DuplicatePolicy)),
			ErrInvalidDuplicatePolicy)
	}

	if c.Migration.TermCacheSize <= 0 {
		return NewValidationError("term cache size", strconv.Itoa(c.Migration.TermCacheSize), "positive")
	}

	if c.Migration.TermCacheTTL <= 0 {
		return NewValidationError("term cache TTL", c.Migration.TermCacheTTL.String(), "positive")
	}

	return nil
}
