// Package live is the in-run view: progress, counters and per-session
// traffic sparklines.
package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"sessionq/internal/runner"
	"sessionq/internal/tui/components"
	"sessionq/internal/tui/styles"
)

// ProgressMsg carries a runner progress update.
type ProgressMsg runner.Progress

// OutcomeMsg carries one finished session.
type OutcomeMsg runner.Outcome

const maxRecentErrors = 3

type Model struct {
	Progress runner.Progress
	Bar      progress.Model

	SizeLine     components.Sparkline
	RequestsLine components.Sparkline

	TotalBytes   uint64
	RecentErrors []string
	Cancelling   bool

	StartTime time.Time
	Width     int
	Height    int
}

func NewModel(total int) Model {
	size := components.NewSparkline(40, "Session size (KB)", styles.Active)
	size.Format = func(v uint64) string { return humanize.IBytes(v * 1024) }

	reqs := components.NewSparkline(40, "Requests per session", styles.Warn)
	reqs.Format = func(v uint64) string { return fmt.Sprintf("%d", v) }

	return Model{
		Progress:     runner.Progress{Total: total},
		Bar:          progress.New(progress.WithDefaultGradient()),
		SizeLine:     size,
		RequestsLine: reqs,
		StartTime:    time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		m.Progress = runner.Progress(msg)
		return m, m.Bar.SetPercent(m.Progress.Fraction())

	case OutcomeMsg:
		if msg.Usage != nil {
			m.TotalBytes += msg.Usage.TotalBytes
			m.SizeLine.Add((msg.Usage.TotalBytes + 1023) / 1024)
			m.RequestsLine.Add(uint64(msg.Usage.RequestCount))
		}
		if msg.Err != nil {
			m.RecentErrors = append(m.RecentErrors, fmt.Sprintf("#%d %v", msg.Index, msg.Err))
			if len(m.RecentErrors) > maxRecentErrors {
				m.RecentErrors = m.RecentErrors[len(m.RecentErrors)-maxRecentErrors:]
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Bar.Width = msg.Width - 4

		half := (msg.Width / 2) - 6
		if half < 10 {
			half = 10
		}
		m.SizeLine.Resize(half)
		m.RequestsLine.Resize(half)
		return m, nil

	case progress.FrameMsg:
		bar, cmd := m.Bar.Update(msg)
		m.Bar = bar.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	p := m.Progress
	failRate := 0.0
	if p.Completed > 0 {
		failRate = float64(p.Failed) / float64(p.Completed) * 100
	}

	var failStyle lipgloss.Style
	switch {
	case failRate > 20:
		failStyle = styles.Error
	case failRate > 5:
		failStyle = styles.Warn
	default:
		failStyle = styles.Active
	}

	avg := uint64(0)
	if p.Completed > 0 {
		avg = m.TotalBytes / uint64(p.Completed)
	}

	// Top Grid: Metrics
	col1 := fmt.Sprintf("DONE: %d/%d\nOK:   %d", p.Completed, p.Total, p.Succeeded)
	col2 := fmt.Sprintf("FAIL: %d\nRATE: %.1f%%", p.Failed, failRate)
	col3 := fmt.Sprintf("DATA: %s\nAVG:  %s", humanize.IBytes(m.TotalBytes), humanize.IBytes(avg))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(failStyle.Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	// Sparklines
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.SizeLine.View()),
		styles.Box.Render(m.RequestsLine.View()),
	))
	s.WriteString("\n\n")

	if len(m.RecentErrors) > 0 {
		s.WriteString(styles.Error.Render(strings.Join(m.RecentErrors, "\n")))
		s.WriteString("\n\n")
	}

	// Progress
	s.WriteString(m.Bar.View())
	s.WriteString("\n")
	elapsed := time.Since(m.StartTime).Round(time.Second)
	if m.Cancelling {
		s.WriteString(styles.Warn.Render(fmt.Sprintf("%s  cancelling, waiting for in-flight sessions...", elapsed)))
	} else {
		s.WriteString(styles.Subtle.Render(fmt.Sprintf("%s elapsed", elapsed)))
	}

	return s.String()
}
