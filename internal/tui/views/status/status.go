package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/biorelay/relay/internal/tui/theme"
	"github.com/biorelay/relay/internal/ws"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Rate      float64
	Report    *ws.StatusReport
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// SourceState returns the relay's source state, or "" before the first poll.
func (m Model) SourceState() string {
	if m.Report == nil {
		return ""
	}
	return m.Report.Source.State
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + fmt.Sprintf("%.1f fps", m.Rate)

	if m.Report != nil {
		state := m.Report.Source.State
		content += sep + lipgloss.NewStyle().Foreground(theme.SourceColor(state)).Render("source: "+state)
		content += sep + fmt.Sprintf("%d subscribers", m.Report.Hub.Subscribers)
		if p := m.Report.Source.Physical; p != nil {
			content += sep + fmt.Sprintf("%d rejected", p.Rejected)
		}
		if fo := m.Report.Source.Failover; fo != nil {
			content += sep + theme.StyleDimmed.Render("failover "+fo.At.Format("15:04:05"))
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
