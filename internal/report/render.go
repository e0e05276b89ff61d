package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"sessionq/internal/tui/styles"
)

// EmptyMessage is rendered in place of statistics when no session
// produced usage data.
const EmptyMessage = "no usage data collected"

// Render formats r for the terminal.
func Render(r Report) string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("SESSIONQ REPORT"))
	b.WriteString("\n\n")
	b.WriteString(row("Run", r.RunID))
	b.WriteString(row("Target", r.Target))
	b.WriteString(row("Sessions", fmt.Sprintf("%d/%d completed, %d succeeded, %d failed",
		r.Progress.Completed, r.Progress.Total, r.Progress.Succeeded, r.Progress.Failed)))
	b.WriteString(row("Success rate", fmt.Sprintf("%.1f%%", r.SuccessRate)))
	b.WriteString("\n")

	s := r.Stats
	if s == nil {
		b.WriteString(styles.Warn.Render(EmptyMessage))
		b.WriteString("\n")
		return styles.Panel.Render(b.String())
	}

	b.WriteString(section("Bandwidth"))
	b.WriteString(row("Total", fmt.Sprintf("%.2f MB (%s)", s.TotalMB, humanize.IBytes(s.TotalBytes))))
	b.WriteString(row("Per session", fmt.Sprintf("avg %.2f MB  min %.2f  max %.2f", s.AvgMB, s.MinMB, s.MaxMB)))
	b.WriteString(row("Percentiles", fmt.Sprintf("p50 %.2f MB  p90 %.2f  p99 %.2f", s.P50MB, s.P90MB, s.P99MB)))
	b.WriteString(row("Requests", fmt.Sprintf("%s total, %d avg per session", humanize.Comma(int64(s.TotalRequests)), s.AvgRequests)))
	b.WriteString(row("Duration", fmt.Sprintf("%ds avg per session", s.AvgDurationSeconds)))
	b.WriteString("\n")

	b.WriteString(section("Breakdown"))
	total := s.Breakdown.Sum()
	for _, part := range []struct {
		name  string
		bytes uint64
	}{
		{"Documents", s.Breakdown.Document},
		{"Scripts", s.Breakdown.Script},
		{"Stylesheets", s.Breakdown.Stylesheet},
		{"Images", s.Breakdown.Image},
		{"Other", s.Breakdown.Other},
	} {
		b.WriteString(row(part.name, fmt.Sprintf("%-10s %5.1f%%", humanize.IBytes(part.bytes), share(part.bytes, total))))
	}
	b.WriteString("\n")

	b.WriteString(section("Projections"))
	b.WriteString(row("100 sessions", fmt.Sprintf("%.2f MB", s.Projections.Per100)))
	b.WriteString(row("1,000 sessions", fmt.Sprintf("%.2f MB", s.Projections.Per1000)))
	b.WriteString(row("10,000 sessions", fmt.Sprintf("%.2f MB", s.Projections.Per10000)))

	if len(r.RunCost) > 0 {
		b.WriteString("\n")
		b.WriteString(section("Cost (this run / per 1,000 sessions)"))
		for i, c := range r.RunCost {
			line := fmt.Sprintf("$%.2f (%s %.2f)", c.USD, r.Currency, c.Local)
			if i < len(r.Per1000Cost) {
				p := r.Per1000Cost[i]
				line += fmt.Sprintf("  /  $%.2f (%s %.2f)", p.USD, r.Currency, p.Local)
			}
			b.WriteString(row(fmt.Sprintf("%s @ $%.2f/GB", c.Tier, c.PricePerGB), line))
		}
	}

	return styles.Panel.Render(b.String())
}

func section(title string) string {
	return styles.Active.Render(title) + "\n"
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Subtle.Width(28).Render(label),
		styles.Text.Render(value),
	) + "\n"
}

func share(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
