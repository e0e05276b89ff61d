// Package banner renders the help banner.
package banner

import (
	"github.com/charmbracelet/lipgloss"

	"sessionq/internal/tui/styles"
)

const ascii = `
                       _
  ___ ___ ___ ___ ___ |_|___ ___ ___
 |_ -| -_|_ -|_ -|_ -|| | . |   | . |
 |___|___|___|___|___||_|___|_|_|_  |
                                  |_|`

// GetString returns the banner followed by the version line.
func GetString(version string) string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	return "\n" + style.Render(ascii) + "\n" + styles.Subtle.Render("  session bandwidth profiler "+version) + "\n"
}
