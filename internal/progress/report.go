package progress

import (
	"context"
	"os"
	"time"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// Report is the YAML record of one run. It is informational only; runs never
// read it back.
type Report struct {
	Source      string    `yaml:"source"`
	Destination string    `yaml:"destination"`
	Method      string    `yaml:"discovery_method,omitempty"`
	DryRun      bool      `yaml:"dry_run,omitempty"`
	StartedAt   time.Time `yaml:"started_at"`
	FinishedAt  time.Time `yaml:"finished_at"`
	Counts      Counts    `yaml:"counts"`
	Results     []Result  `yaml:"results"`
}

// NewReport snapshots the tracker's results.
func (t *Tracker) NewReport(source, destination, method string, startedAt time.Time) *Report {
	return &Report{
		Source:      source,
		Destination: destination,
		Method:      method,
		DryRun:      t.dryRun,
		StartedAt:   startedAt.UTC(),
		FinishedAt:  time.Now().UTC(),
		Counts:      t.Counts(),
		Results:     t.Results(),
	}
}

func WriteReport(ctx context.Context, path string, report *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return errors.Errorf("failed to marshal run report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Errorf("failed to write run report to %s: %w", path, err)
	}
	return nil
}
