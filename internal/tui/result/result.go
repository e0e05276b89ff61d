// Package result is the end-of-run view.
package result

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"sessionq/internal/report"
	"sessionq/internal/tui/styles"
)

type Model struct {
	Report report.Report
	Err    error
	// Exported lists report files written after the run.
	Exported []string

	Width  int
	Height int
}

func NewModel(r report.Report, err error) Model {
	return Model{Report: r, Err: err}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
	}
	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	// 1. Report (overview, breakdown, projections, cost)
	s.WriteString(report.Render(m.Report))
	s.WriteString("\n")

	// 2. How the run ended
	if m.Err != nil {
		s.WriteString(styles.Error.Render("Run ended early: " + m.Err.Error()))
		s.WriteString("\n")
	}
	if len(m.Exported) > 0 {
		s.WriteString(styles.Success.Render("Saved " + strings.Join(m.Exported, ", ")))
		s.WriteString("\n")
	}

	// 3. Footer
	s.WriteString("\n")
	s.WriteString(styles.RenderKey("q", "quit"))
	return s.String()
}
