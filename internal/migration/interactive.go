package migration

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gitlab.com/tozd/go/errors"

	"github.com/exileum/wp-content-migrate/internal/config"
)

// InteractiveRunner handles the interactive migration flow
type InteractiveRunner struct {
	prompter       *config.Prompter
	out            io.Writer
	nonInteractive bool
}

// NewInteractiveRunner creates a new interactive migration runner. prompter
// may be nil when nonInteractive is set.
func NewInteractiveRunner(prompter *config.Prompter, out io.Writer, nonInteractive bool) *InteractiveRunner {
	return &InteractiveRunner{
		prompter:       prompter,
		out:            out,
		nonInteractive: nonInteractive,
	}
}

// Run offers a dry run, asks for confirmation and then migrates. A run
// cancelled by the operator is not an error.
func (r *InteractiveRunner) Run(ctx context.Context, cfg *config.Config) error {
	if !r.nonInteractive && !cfg.Migration.DryRun {
		proceed, err := r.handlePreMigrationSteps(ctx, cfg)
		if err != nil || !proceed {
			return err
		}
	}

	fmt.Fprintln(r.out, "\n"+color.New(color.Bold, color.FgCyan).Sprint("Starting migration..."))
	fmt.Fprintln(r.out, "This will migrate ALL posts from the source site. Press Ctrl+C to cancel.")
	fmt.Fprintln(r.out)

	if _, err := NewMigrator(cfg, r.out).Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(r.out, "\n"+color.YellowString("Migration cancelled by user."))
			return nil
		}
		return errors.Errorf("migration failed: %w", err)
	}

	fmt.Fprintln(r.out, color.New(color.Bold, color.FgGreen).Sprint("Migration completed successfully!"))
	return nil
}

func (r *InteractiveRunner) handlePreMigrationSteps(ctx context.Context, cfg *config.Config) (bool, error) {
	if r.prompter.Bool("Would you like to do a dry run first? (recommended)", true) {
		if err := r.runDryRun(ctx, cfg); err != nil {
			if errors.Is(err, context.Canceled) {
				return false, nil
			}
			return false, errors.Errorf("dry run failed: %w", err)
		}
	}

	if !r.prompter.Bool("Start the actual migration now?", false) {
		fmt.Fprintln(r.out, "Migration not started.")
		return false, nil
	}
	return true, nil
}

func (r *InteractiveRunner) runDryRun(ctx context.Context, cfg *config.Config) error {
	fmt.Fprintln(r.out, "\nRunning dry run...")

	dry := *cfg
	dry.Migration.DryRun = true
	dry.Migration.ReportFile = ""

	_, err := NewMigrator(&dry, r.out).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		config.ReportStatus(r.out, "Dry run finished", err)
	}
	return err
}
