package migration

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/exileum/wp-content-migrate/internal/wordpress"
)

// Site is the part of a WordPress client the pre-flight checks need.
type Site interface {
	BaseURL() string
	Ping(ctx context.Context) error
	CurrentUser(ctx context.Context) (*wordpress.User, error)
}

type PreflightChecker struct {
	source            Site
	destination       Site
	sourceCredentials bool
	dryRun            bool
}

// NewPreflightChecker builds the checker. sourceCredentials tells whether the
// source client was given an account to verify.
func NewPreflightChecker(source, destination Site, sourceCredentials, dryRun bool) *PreflightChecker {
	return &PreflightChecker{
		source:            source,
		destination:       destination,
		sourceCredentials: sourceCredentials,
		dryRun:            dryRun,
	}
}

// RunChecks verifies both sites answer and the destination accepts the
// application password. Failures are fatal.
func (p *PreflightChecker) RunChecks(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().Msg("Running pre-flight checks...")

	if p.dryRun {
		logger.Info().Msg("  Running in DRY-RUN mode - no changes will be made to the destination")
	}

	if err := p.checkSource(ctx); err != nil {
		return err
	}

	if err := p.checkDestination(ctx); err != nil {
		return err
	}

	logger.Info().Msg("✓ All pre-flight checks passed")
	return nil
}

func (p *PreflightChecker) checkSource(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	if err := p.source.Ping(ctx); err != nil {
		kind := ErrDiscovery
		if errors.Is(err, wordpress.ErrUnauthorized) {
			kind = ErrAuthentication
		}
		return newFatalError(kind, errors.Errorf("source site %s: %w", p.source.BaseURL(), err))
	}
	logger.Info().Str("site", p.source.BaseURL()).Msg("  ✓ Source REST API reachable")

	if !p.sourceCredentials {
		return nil
	}

	user, err := p.source.CurrentUser(ctx)
	if err != nil {
		return newFatalError(ErrAuthentication, errors.Errorf("source site %s: %w", p.source.BaseURL(), err))
	}
	logger.Info().Str("user", user.Slug).Msg("  ✓ Source credentials verified")
	return nil
}

func (p *PreflightChecker) checkDestination(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	user, err := p.destination.CurrentUser(ctx)
	if err != nil {
		return newFatalError(ErrAuthentication, errors.Errorf("destination site %s: %w", p.destination.BaseURL(), err))
	}
	logger.Info().
		Str("site", p.destination.BaseURL()).
		Str("user", user.Slug).
		Msg("  ✓ Destination credentials verified")
	return nil
}
