// Package progress tallies per-post migration results and reports them on the
// console and, optionally, in a YAML run report.
package progress

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pterm/pterm"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result is the outcome for one discovered post.
type Result struct {
	SourceID      int      `yaml:"source_id"`
	SourceURL     string   `yaml:"source_url,omitempty"`
	Title         string   `yaml:"title,omitempty"`
	DestinationID int      `yaml:"destination_id,omitempty"`
	Status        Status   `yaml:"status"`
	Reason        string   `yaml:"reason,omitempty"`
	ImageError    string   `yaml:"image_error,omitempty"`
	DroppedMeta   []string `yaml:"dropped_meta,omitempty"`
}

// Label names the post for humans: its title when known, otherwise its ID.
func (r Result) Label() string {
	if r.Title != "" {
		return fmt.Sprintf("#%d %q", r.SourceID, r.Title)
	}
	return fmt.Sprintf("#%d", r.SourceID)
}

type Counts struct {
	Succeeded     int `yaml:"succeeded"`
	Skipped       int `yaml:"skipped"`
	Failed        int `yaml:"failed"`
	ImageFailures int `yaml:"image_failures"`
}

func (c Counts) Total() int {
	return c.Succeeded + c.Skipped + c.Failed
}

// Tracker is the append-only result tally of a run.
type Tracker struct {
	mu      sync.Mutex
	results []Result
	dryRun  bool
}

func NewTracker(dryRun bool) *Tracker {
	return &Tracker{dryRun: dryRun}
}

func (t *Tracker) Record(result Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results = append(t.results, result)
}

func (t *Tracker) Results() []Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Result, len(t.results))
	copy(out, t.results)
	return out
}

func (t *Tracker) Counts() Counts {
	t.mu.Lock()
	defer t.mu.Unlock()

	var c Counts
	for _, r := range t.results {
		switch r.Status {
		case StatusSuccess:
			c.Succeeded++
		case StatusSkipped:
			c.Skipped++
		case StatusFailed:
			c.Failed++
		}
		if r.ImageError != "" {
			c.ImageFailures++
		}
	}
	return c
}

// PrintSummary writes the final tally followed by every failed post and every
// missing featured image.
func (t *Tracker) PrintSummary(w io.Writer) error {
	counts := t.Counts()
	results := t.Results()

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 50))
	pterm.DefaultSection.WithWriter(w).Println("Migration Summary")

	err := pterm.DefaultTable.
		WithHasHeader().
		WithWriter(w).
		WithData(pterm.TableData{
			{"Result", "Posts"},
			{"Migrated", strconv.Itoa(counts.Succeeded)},
			{"Skipped", strconv.Itoa(counts.Skipped)},
			{"Failed", strconv.Itoa(counts.Failed)},
			{"Missing featured image", strconv.Itoa(counts.ImageFailures)},
		}).
		Render()
	if err != nil {
		return err
	}

	if counts.Failed > 0 {
		fmt.Fprintln(w, "\nFailed posts:")
		for _, r := range results {
			if r.Status == StatusFailed {
				fmt.Fprintf(w, "  - %s: %s\n", r.Label(), r.Reason)
			}
		}
	}

	if counts.ImageFailures > 0 {
		fmt.Fprintln(w, "\nPosts created without their featured image:")
		for _, r := range results {
			if r.ImageError != "" {
				fmt.Fprintf(w, "  - %s: %s\n", r.Label(), r.ImageError)
			}
		}
	}

	if t.dryRun {
		fmt.Fprintln(w, "\n[DRY-RUN MODE] No actual changes were made")
	}
	return nil
}
