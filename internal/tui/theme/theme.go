// Package theme provides the Lip Gloss color palette and reusable styles
// for the relay TUI. It is a leaf package with no internal imports to avoid
// import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Signal type colors.
var (
	ColorEMG     = lipgloss.Color("#f59e0b")
	ColorECG     = lipgloss.Color("#dc2626")
	ColorPPG     = lipgloss.Color("#a855f7")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// Per-channel trace colors, cycled by channel index.
var channelColors = []lipgloss.Color{
	lipgloss.Color("#22c55e"),
	lipgloss.Color("#3b82f6"),
	lipgloss.Color("#f59e0b"),
	lipgloss.Color("#ec4899"),
	lipgloss.Color("#06b6d4"),
	lipgloss.Color("#a855f7"),
	lipgloss.Color("#84cc16"),
	lipgloss.Color("#f97316"),
	lipgloss.Color("#e5e7eb"),
}

// Event colors.
var (
	ColorWS     = lipgloss.Color("#2563eb")
	ColorSource = lipgloss.Color("#7c3aed")
	ColorError  = lipgloss.Color("#dc2626")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// SignalColor returns the color for a signal type name.
func SignalColor(signalType string) lipgloss.Color {
	switch signalType {
	case "EMG":
		return ColorEMG
	case "ECG":
		return ColorECG
	case "PPG":
		return ColorPPG
	default:
		return ColorDefault
	}
}

// ChannelColor returns the trace color for channel i.
func ChannelColor(i int) lipgloss.Color {
	if i < 0 {
		return ColorDefault
	}
	return channelColors[i%len(channelColors)]
}

// SourceColor returns the color for a source state.
func SourceColor(state string) lipgloss.Color {
	switch state {
	case "physical":
		return ColorHealthy
	case "simulated":
		return ColorWarning
	default:
		return ColorDimmed
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleDanger = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorDanger)
)
