package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/exileum/wp-content-migrate/internal/config"
	"github.com/exileum/wp-content-migrate/internal/logging"
	"github.com/exileum/wp-content-migrate/internal/migration"
)

type rootOptions struct {
	dryRun         bool
	nonInteractive bool
	reportFile     string
	logLevel       string
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:   "wp-content-migrate",
		Short: "Copy every published post from one WordPress site to another",
		Long: `wp-content-migrate copies published posts, their featured images, categories,
tags and metadata from a source WordPress site to a destination site over the
REST API. The destination is accessed with a username and application password.

Settings default to the WP_* environment variables; the site URLs, username and
application password are prompted for unless --non-interactive is given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, in, out, errOut)
		},
	}

	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.Flags()
	flags.BoolVar(&opts.dryRun, "dry-run", false, "discover and check posts without writing to the destination")
	flags.BoolVar(&opts.nonInteractive, "non-interactive", false, "take every setting from the environment and skip prompts")
	flags.StringVar(&opts.reportFile, "report", "", "write a YAML run report to this path")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	return cmd
}

func run(cmd *cobra.Command, opts rootOptions, in io.Reader, out, errOut io.Writer) error {
	var cfg *config.Config
	var prompter *config.Prompter
	if opts.nonInteractive {
		cfg = config.New()
	} else {
		prompter = config.NewPrompter(in, out)
		cfg = config.InteractiveConfig(prompter)
	}

	if cmd.Flags().Changed("dry-run") {
		cfg.Migration.DryRun = opts.dryRun
	}
	if opts.reportFile != "" {
		cfg.Migration.ReportFile = opts.reportFile
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	ctx := logging.WithContext(cmd.Context(), errOut, cfg.Logging.Level)

	return migration.NewInteractiveRunner(prompter, out, opts.nonInteractive).Run(ctx, cfg)
}
