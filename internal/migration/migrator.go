// Package migration copies the published posts of one WordPress site to
// another. It checks both sites, discovers the source posts and migrates them
// one by one, tallying a result for each.
package migration

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/exileum/wp-content-migrate/internal/config"
	"github.com/exileum/wp-content-migrate/internal/content"
	"github.com/exileum/wp-content-migrate/internal/discovery"
	"github.com/exileum/wp-content-migrate/internal/media"
	"github.com/exileum/wp-content-migrate/internal/progress"
	"github.com/exileum/wp-content-migrate/internal/taxonomy"
	"github.com/exileum/wp-content-migrate/internal/wordpress"
)

// Migrator runs one migration from a validated configuration.
type Migrator struct {
	config *config.Config
	out    io.Writer
}

// NewMigrator creates a migrator that prints progress and the summary to out.
func NewMigrator(cfg *config.Config, out io.Writer) *Migrator {
	return &Migrator{
		config: cfg,
		out:    out,
	}
}

// Run validates the configuration, checks both sites, discovers the source
// posts and migrates them. Per-post failures are tallied and do not fail the
// run. A fatal error is returned for invalid configuration, rejected
// credentials, or failed discovery. When ctx is cancelled mid-run the summary
// is still printed and the context error is returned.
func (m *Migrator) Run(ctx context.Context) (*progress.Tracker, error) {
	cfg := m.config
	logger := zerolog.Ctx(ctx)
	startedAt := time.Now().UTC()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("configuration validation failed: %w", err)
	}

	source, destination, err := m.newClients()
	if err != nil {
		return nil, err
	}

	checker := NewPreflightChecker(source, destination, cfg.Source.Username != "", cfg.Migration.DryRun)
	if err := checker.RunChecks(ctx); err != nil {
		return nil, err
	}

	discoverer := discovery.New(source, discovery.Options{
		SitemapPaths:        discovery.DefaultSitemapPaths,
		PostSitemapPatterns: cfg.Discovery.PostSitemapPatterns,
		PageSize:            cfg.Discovery.PageSize,
	})
	found, err := discoverer.Discover(ctx)
	if err != nil {
		return nil, newFatalError(ErrDiscovery, err)
	}

	reporter := progress.NewConsoleReporter(m.out)
	reporter.Discovered(len(found.Posts), string(found.Method))

	var rewriter *content.LinkRewriter
	if cfg.Migration.RewriteLinks {
		rewriter, err = content.NewLinkRewriter(cfg.Source.URL, cfg.Destination.URL)
		if err != nil {
			return nil, errors.Errorf("building link rewriter: %w", err)
		}
	}

	tracker := progress.NewTracker(cfg.Migration.DryRun)
	runner := NewRunner(
		source,
		destination,
		taxonomy.NewResolver(destination, cfg.Migration.TermCacheSize, cfg.Migration.TermCacheTTL),
		media.NewMigrator(source, destination),
		NewTransformer(rewriter),
		tracker,
		reporter,
		RunnerOptions{
			DuplicatePolicy: cfg.Migration.DuplicatePolicy,
			DryRun:          cfg.Migration.DryRun,
		},
	)
	runErr := runner.Run(ctx, found.Posts)

	if err := tracker.PrintSummary(m.out); err != nil {
		logger.Warn().Err(err).Msg("⚠ Could not render summary")
	}

	if path := cfg.Migration.ReportFile; path != "" {
		report := tracker.NewReport(cfg.Source.URL, cfg.Destination.URL, string(found.Method), startedAt)
		if err := progress.WriteReport(context.WithoutCancel(ctx), path, report); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("⚠ Could not write run report")
		} else {
			logger.Info().Str("path", path).Msg("✓ Run report written")
		}
	}

	return tracker, runErr
}

// newClients builds both site clients over one shared throttle, so each host
// keeps its own delay even if both URLs point at the same server.
func (m *Migrator) newClients() (*wordpress.Client, *wordpress.Client, error) {
	cfg := m.config
	opts := wordpress.Options{
		Timeout:      cfg.HTTP.Timeout,
		RequestDelay: cfg.HTTP.RequestDelay,
		MaxAttempts:  cfg.HTTP.MaxAttempts,
		RetryBackoff: cfg.HTTP.RetryBackoff,
		Throttle:     wordpress.NewThrottle(cfg.HTTP.RequestDelay),
	}

	source, err := wordpress.NewClient(wordpress.Credentials{
		BaseURL:     cfg.Source.URL,
		Username:    cfg.Source.Username,
		AppPassword: cfg.Source.AppPassword,
	}, opts)
	if err != nil {
		return nil, nil, errors.Errorf("failed to initialize source client: %w", err)
	}

	destination, err := wordpress.NewClient(wordpress.Credentials{
		BaseURL:     cfg.Destination.URL,
		Username:    cfg.Destination.Username,
		AppPassword: cfg.Destination.AppPassword,
	}, opts)
	if err != nil {
		return nil, nil, errors.Errorf("failed to initialize destination client: %w", err)
	}

	return source, destination, nil
}
