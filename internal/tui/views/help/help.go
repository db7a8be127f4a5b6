// Package help renders the key reference overlay from markdown.
package help

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/biorelay/relay/internal/tui/theme"
)

const helpMarkdown = `# biorelay monitor

Live view of the frames the relay is broadcasting.

| Key | Action |
|-----|--------|
| ` + "`?`" + ` | toggle this help |
| ` + "`e`" + ` | relay events: failovers, evictions, link drops |
| ` + "`p`" + ` | pause traces |
| ` + "`r`" + ` | reset traces and counters |
| ` + "`j` / `k`" + ` | scroll the event log |
| ` + "`esc`" + ` | close overlay |
| ` + "`q`" + ` | quit |

## Source states

- **physical**: frames come from the serial device.
- **simulated**: the device failed or was never used; frames are synthetic.
  The relay never switches back on its own.
`

// Render returns the help text rendered for the given width. style is a
// glamour standard style name such as "dark" or "notty".
func Render(width int, style string) string {
	if width < 30 {
		width = 30
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width-6),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return strings.TrimRight(out, "\n")
}

// View renders the help overlay panel.
func View(width int, style string) string {
	return lipgloss.NewStyle().
		Width(width-4).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(Render(width-4, style))
}
