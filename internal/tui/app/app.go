// Package app is the bubbletea program shown with --tui: the live view
// while sessions run, then the result view.
package app

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sessionq/internal/config"
	"sessionq/internal/report"
	"sessionq/internal/runner"
	"sessionq/internal/tui/live"
	"sessionq/internal/tui/result"
	"sessionq/internal/tui/styles"
)

// DoneMsg is sent once the run has ended and its report is built.
type DoneMsg struct {
	Report   report.Report
	Err      error
	Exported []string
}

// RunFunc performs the run, feeding the sinks, and returns its report.
type RunFunc func(ctx context.Context, onProgress runner.ProgressFunc, onOutcome runner.OutcomeFunc) (DoneMsg, error)

type ViewID int

const (
	ViewLive ViewID = iota
	ViewResult
)

type Model struct {
	RunID  string
	Target string
	cancel context.CancelFunc

	CurrentView ViewID
	LiveView    live.Model
	ResultView  result.Model
	Done        bool

	Width  int
	Height int
}

func NewModel(cfg config.Config, runID string, cancel context.CancelFunc) Model {
	target := ""
	if journey := cfg.Journey(); len(journey) > 0 {
		target = journey[0].URL
	}
	return Model{
		RunID:       runID,
		Target:      target,
		cancel:      cancel,
		CurrentView: ViewLive,
		LiveView:    live.NewModel(cfg.TotalAttempts),
	}
}

func (m Model) Init() tea.Cmd {
	return m.LiveView.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.Done {
				return m, tea.Quit
			}
			// the run winds down and still delivers DoneMsg
			if !m.LiveView.Cancelling && m.cancel != nil {
				m.cancel()
				m.LiveView.Cancelling = true
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		inner := tea.WindowSizeMsg{Width: msg.Width - 4, Height: msg.Height - 6}
		m.LiveView, _ = m.LiveView.Update(inner)
		m.ResultView, _ = m.ResultView.Update(inner)
		return m, nil

	case DoneMsg:
		m.Done = true
		m.ResultView = result.NewModel(msg.Report, msg.Err)
		m.ResultView.Exported = msg.Exported
		m.ResultView.Width = m.Width
		m.ResultView.Height = m.Height
		m.CurrentView = ViewResult
		return m, nil
	}

	var cmd tea.Cmd
	switch m.CurrentView {
	case ViewLive:
		m.LiveView, cmd = m.LiveView.Update(msg)
	case ViewResult:
		m.ResultView, cmd = m.ResultView.Update(msg)
	}
	return m, cmd
}

func (m Model) View() string {
	if m.Width == 0 {
		return "Loading..."
	}

	header := styles.Title.Render(fmt.Sprintf("sessionq %s", m.RunID)) + "  " + styles.Subtle.Render(m.Target)

	var content string
	switch m.CurrentView {
	case ViewLive:
		content = m.LiveView.View()
	case ViewResult:
		content = m.ResultView.View()
	}

	keys := []string{styles.RenderKey("q", "stop")}
	if m.Done {
		keys = []string{styles.RenderKey("q", "quit")}
	}
	footer := styles.FooterBase.Width(m.Width).Render(strings.Join(keys, "   "))

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

// Run shows the live view while run executes and returns its result once
// the user leaves the result view. Quitting during the run cancels it.
func Run(ctx context.Context, cfg config.Config, runID string, run RunFunc) (DoneMsg, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(cfg, runID, cancel), tea.WithAltScreen())

	resultCh := make(chan DoneMsg, 1)
	go func() {
		done, err := run(ctx,
			func(pr runner.Progress) { p.Send(live.ProgressMsg(pr)) },
			func(o runner.Outcome) { p.Send(live.OutcomeMsg(o)) },
		)
		done.Err = err
		resultCh <- done
		p.Send(done)
	}()

	if _, err := p.Run(); err != nil {
		return DoneMsg{}, fmt.Errorf("tui: %w", err)
	}
	done := <-resultCh
	return done, done.Err
}
