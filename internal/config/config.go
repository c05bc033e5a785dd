// Package config holds the migration settings. Defaults come from WP_*
// environment variables; the four required values are usually confirmed
// interactively.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DuplicatePolicy decides what happens when the destination already has a
// post with the same title.
type DuplicatePolicy string

const (
	DuplicateSkip   DuplicatePolicy = "skip"
	DuplicateCreate DuplicatePolicy = "create"
)

type Config struct {
	Source      SiteConfig
	Destination SiteConfig
	HTTP        HTTPConfig
	Discovery   DiscoveryConfig
	Migration   MigrationConfig
	Logging     LoggingConfig
}

// SiteConfig identifies one WordPress site. An empty Username means requests
// are sent without credentials.
type SiteConfig struct {
	URL         string
	Username    string
	AppPassword string
}

type HTTPConfig struct {
	RequestDelay time.Duration
	Timeout      time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

type DiscoveryConfig struct {
	PageSize            int
	PostSitemapPatterns []string
}

type MigrationConfig struct {
	DuplicatePolicy DuplicatePolicy
	DryRun          bool
	RewriteLinks    bool
	ReportFile      string
	TermCacheSize   int
	TermCacheTTL    time.Duration
}

type LoggingConfig struct {
	Level string
}

func New() *Config {
	return &Config{
		Source: SiteConfig{
			URL:         getEnvOrDefault("WP_SOURCE_URL", ""),
			Username:    getEnvOrDefault("WP_SOURCE_USERNAME", ""),
			AppPassword: getEnvOrDefault("WP_SOURCE_APP_PASSWORD", ""),
		},
		Destination: SiteConfig{
			URL:         getEnvOrDefault("WP_DESTINATION_URL", ""),
			Username:    getEnvOrDefault("WP_USERNAME", ""),
			AppPassword: getEnvOrDefault("WP_APP_PASSWORD", ""),
		},
		HTTP: HTTPConfig{
			RequestDelay: getEnvDurationOrDefault("WP_REQUEST_DELAY", 500*time.Millisecond),
			Timeout:      getEnvDurationOrDefault("WP_REQUEST_TIMEOUT", 30*time.Second),
			MaxAttempts:  getEnvIntOrDefault("WP_MAX_ATTEMPTS", 3),
			RetryBackoff: getEnvDurationOrDefault("WP_RETRY_BACKOFF", 1*time.Second),
		},
		Discovery: DiscoveryConfig{
			PageSize: getEnvIntOrDefault("WP_PAGE_SIZE", 100),
			PostSitemapPatterns: getEnvListOrDefault("WP_POST_SITEMAP_PATTERNS", []string{
				"**/*post*sitemap*.xml",
				"**/wp-sitemap-posts-post-*.xml",
			}),
		},
		Migration: MigrationConfig{
			DuplicatePolicy: DuplicatePolicy(strings.ToLower(getEnvOrDefault("WP_DUPLICATE_POLICY", string(DuplicateSkip)))),
			DryRun:          getEnvBoolOrDefault("WP_DRY_RUN", false),
			RewriteLinks:    getEnvBoolOrDefault("WP_REWRITE_LINKS", false),
			ReportFile:      getEnvOrDefault("WP_REPORT_FILE", ""),
			TermCacheSize:   getEnvIntOrDefault("WP_TERM_CACHE_SIZE", 512),
			TermCacheTTL:    getEnvDurationOrDefault("WP_TERM_CACHE_TTL", time.Hour),
		},
		Logging: LoggingConfig{
			Level: getEnvOrDefault("WP_LOG_LEVEL", "info"),
		},
	}
}

// NormalizeURL trims whitespace and trailing slashes and assumes https when
// no scheme was given.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
