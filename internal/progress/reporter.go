package progress

import (
	"io"

	"github.com/pterm/pterm"
)

// Reporter receives per-post events as the driver runs.
type Reporter interface {
	Discovered(total int, method string)
	PostStarted(index, total int, label string)
	PostFinished(result Result)
}

// ConsoleReporter prints one line per event with pterm prefix printers.
type ConsoleReporter struct {
	info    *pterm.PrefixPrinter
	success *pterm.PrefixPrinter
	warning *pterm.PrefixPrinter
	failure *pterm.PrefixPrinter
}

func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{
		info:    pterm.Info.WithWriter(w),
		success: pterm.Success.WithWriter(w),
		warning: pterm.Warning.WithWriter(w),
		failure: pterm.Error.WithWriter(w),
	}
}

func (r *ConsoleReporter) Discovered(total int, method string) {
	if total == 0 {
		r.warning.Println("No posts found to migrate")
		return
	}
	r.info.Printfln("Found %d posts (via %s)", total, method)
}

func (r *ConsoleReporter) PostStarted(index, total int, label string) {
	r.info.Printfln("[%d/%d] Migrating %s", index, total, label)
}

func (r *ConsoleReporter) PostFinished(result Result) {
	switch result.Status {
	case StatusSuccess:
		r.success.Printfln("%s → destination post #%d", result.Label(), result.DestinationID)
		if result.ImageError != "" {
			r.warning.Printfln("%s created without featured image: %s", result.Label(), result.ImageError)
		}
		if len(result.DroppedMeta) > 0 {
			r.warning.Printfln("%s dropped meta keys: %v", result.Label(), result.DroppedMeta)
		}
	case StatusSkipped:
		r.warning.Printfln("%s skipped: %s", result.Label(), result.Reason)
	case StatusFailed:
		r.failure.Printfln("%s failed: %s", result.Label(), result.Reason)
	}
}

// NopReporter discards every event.
type NopReporter struct{}

func (NopReporter) Discovered(int, string)       {}
func (NopReporter) PostStarted(int, int, string) {}
func (NopReporter) PostFinished(Result)          {}
