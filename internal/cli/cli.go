// Package cli prints headless run progress to a terminal or log.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"sessionq/internal/config"
	"sessionq/internal/runner"
)

// Printer renders a single-line progress bar. Its sinks must be called
// serially, which the runner guarantees.
type Printer struct {
	out   io.Writer
	start time.Time
	bytes uint64
	width int
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, start: time.Now(), width: 20}
}

func (p *Printer) Header(cfg config.Config, runID string) {
	journey := cfg.Journey()
	first := ""
	if len(journey) > 0 {
		first = journey[0].URL
	}

	fmt.Fprintf(p.out, "\n🚀 STARTING SESSIONQ RUN %s\n", runID)
	fmt.Fprintf(p.out, "======================================================================\n")
	fmt.Fprintf(p.out, "Target     : %s (%d step journey)\n", first, len(journey))
	fmt.Fprintf(p.out, "Sessions   : %d, %d at a time\n", cfg.TotalAttempts, cfg.Concurrency)
	fmt.Fprintf(p.out, "Pause      : %s - %s between waves\n", cfg.InterBatchDelay.Min(), cfg.InterBatchDelay.Max())
	fmt.Fprintf(p.out, "Assets     : %s\n", assetMode(cfg))
	fmt.Fprintf(p.out, "Timeout    : %ds\n", cfg.TimeoutSec)
	fmt.Fprintf(p.out, "======================================================================\n\n")
	p.start = time.Now()
}

// Outcome adds the session's traffic to the running byte total.
func (p *Printer) Outcome(o runner.Outcome) {
	if o.Usage != nil {
		p.bytes += o.Usage.TotalBytes
	}
}

// Progress redraws the progress line.
func (p *Printer) Progress(pr runner.Progress) {
	fmt.Fprintf(p.out, "\r%s %3.0f%% | %d/%d | OK: %d | Fail: %d | %s | %s   ",
		progressBar(pr.Fraction(), p.width), pr.Fraction()*100,
		pr.Completed, pr.Total,
		pr.Succeeded, pr.Failed,
		humanize.IBytes(p.bytes),
		time.Since(p.start).Round(time.Second),
	)
}

// Finish ends the progress line and reports how the run ended.
func (p *Printer) Finish(pr runner.Progress, err error) {
	fmt.Fprintf(p.out, "\n\n")
	switch {
	case err == nil:
		fmt.Fprintf(p.out, "✅ %d sessions completed in %s\n\n", pr.Completed, time.Since(p.start).Round(time.Second))
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(p.out, "⚠️  run cancelled after %d of %d sessions\n\n", pr.Completed, pr.Total)
	default:
		fmt.Fprintf(p.out, "❌ run stopped after %d of %d sessions: %v\n\n", pr.Completed, pr.Total, err)
	}
}

// Exported lists written report files.
func (p *Printer) Exported(paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Fprintf(p.out, "\n💾 Reports saved:\n")
	for _, path := range paths {
		fmt.Fprintf(p.out, "   %s\n", path)
	}
}

func assetMode(cfg config.Config) string {
	if !cfg.FetchAssets {
		return "off"
	}
	rate := "unlimited"
	if cfg.AssetRate > 0 {
		rate = fmt.Sprintf("%.0f/s", cfg.AssetRate)
	}
	return fmt.Sprintf("up to %d per page, %s", cfg.MaxAssetsPerPage, rate)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}
