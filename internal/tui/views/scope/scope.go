// Package scope renders the live channel view: one row per channel with the
// latest reading, a spring-smoothed gauge and a sparkline of recent values.
package scope

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/biorelay/relay/internal/frame"
	"github.com/biorelay/relay/internal/tui/theme"
)

const (
	// FPS is the gauge animation rate.
	FPS         = 30
	historySize = 120
	gaugeWidth  = 20
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Channel is the display state of one signal channel.
type Channel struct {
	History []int64
	Pos     float64 // animated gauge position
	Vel     float64
	Target  float64
}

// Latest returns the newest reading, or 0 if none.
func (c Channel) Latest() int64 {
	if len(c.History) == 0 {
		return 0
	}
	return c.History[len(c.History)-1]
}

// Model holds the scope state.
type Model struct {
	DeviceID uint64
	Type     string
	Channels []Channel
	Width    int
	Paused   bool

	spring harmonica.Spring

	total       uint64
	windowStart time.Time
	windowCount int
	rate        float64
	lastFrame   time.Time
	latency     time.Duration
}

// New creates an empty scope.
func New() Model {
	return Model{
		spring: harmonica.NewSpring(harmonica.FPS(FPS), 8.0, 0.6),
	}
}

// Push records a frame received at now. A change of device, type or channel
// count resets the traces.
func (m *Model) Push(msg frame.Message, now time.Time) {
	m.total++
	m.lastFrame = now
	m.latency = now.Sub(msg.Time())
	m.tickRate(now)

	if m.Paused {
		return
	}

	if msg.DeviceID != m.DeviceID || string(msg.Type) != m.Type || len(msg.Signals) != len(m.Channels) {
		m.DeviceID = msg.DeviceID
		m.Type = string(msg.Type)
		m.Channels = make([]Channel, len(msg.Signals))
		for i, v := range msg.Signals {
			m.Channels[i].Pos = float64(v)
		}
	}

	for i, v := range msg.Signals {
		ch := &m.Channels[i]
		ch.History = append(ch.History, v)
		if len(ch.History) > historySize {
			ch.History = ch.History[len(ch.History)-historySize:]
		}
		ch.Target = float64(v)
	}
}

func (m *Model) tickRate(now time.Time) {
	if m.windowStart.IsZero() {
		m.windowStart = now
	}
	m.windowCount++
	if elapsed := now.Sub(m.windowStart); elapsed >= time.Second {
		m.rate = float64(m.windowCount) / elapsed.Seconds()
		m.windowStart = now
		m.windowCount = 0
	}
}

// Animate advances every gauge one animation step toward its target.
func (m *Model) Animate() {
	for i := range m.Channels {
		ch := &m.Channels[i]
		ch.Pos, ch.Vel = m.spring.Update(ch.Pos, ch.Vel, ch.Target)
	}
}

// Reset clears traces and counters.
func (m *Model) Reset() {
	spring := m.spring
	width := m.Width
	*m = Model{spring: spring, Width: width}
}

// Rate is the measured frame rate over the last full second.
func (m Model) Rate() float64 { return m.rate }

// Latency is how long the newest frame took from parse on the relay to
// receipt here. It includes any clock skew between the two hosts.
func (m Model) Latency() time.Duration { return m.latency }

// Total is the number of frames seen since the last reset.
func (m Model) Total() uint64 { return m.total }

// View renders the scope.
func (m Model) View() string {
	if len(m.Channels) == 0 {
		return theme.StyleDimmed.Render("  Waiting for frames...")
	}

	header := theme.StyleHeader.Render(fmt.Sprintf("  device %d  ", m.DeviceID)) +
		lipgloss.NewStyle().Bold(true).Foreground(theme.SignalColor(m.Type)).Render(m.Type) +
		theme.StyleDimmed.Render(fmt.Sprintf("  %d channels  %d frames  lag %s",
			len(m.Channels), m.total, m.latency.Round(time.Millisecond)))
	if m.Paused {
		header += theme.StyleDimmed.Render("  [paused]")
	}

	sparkWidth := m.Width - gaugeWidth - 22
	if sparkWidth < 10 {
		sparkWidth = 10
	}
	if sparkWidth > historySize {
		sparkWidth = historySize
	}

	lo, hi := m.bounds()
	lines := []string{header, ""}
	for i, ch := range m.Channels {
		color := lipgloss.NewStyle().Foreground(theme.ChannelColor(i))
		label := fmt.Sprintf("  ch%-2d %6d ", i+1, ch.Latest())
		lines = append(lines,
			label+color.Render(Gauge(ch.Pos, lo, hi, gaugeWidth))+" "+color.Render(Sparkline(ch.History, sparkWidth, lo, hi)))
	}
	lines = append(lines, "", theme.StyleDimmed.Render(fmt.Sprintf("  range %d..%d", lo, hi)))

	return strings.Join(lines, "\n")
}

// bounds is the shared vertical scale across all channels.
func (m Model) bounds() (lo, hi int64) {
	first := true
	for _, ch := range m.Channels {
		for _, v := range ch.History {
			if first {
				lo, hi = v, v
				first = false
				continue
			}
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	return lo, hi
}

// Gauge draws a horizontal bar for pos within [lo, hi].
func Gauge(pos float64, lo, hi int64, width int) string {
	if width <= 0 {
		return ""
	}
	frac := 0.0
	if hi > lo {
		frac = (pos - float64(lo)) / float64(hi-lo)
	}
	frac = max(0, min(1, frac))
	filled := int(frac*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Sparkline draws the last width values scaled into [lo, hi].
func Sparkline(vals []int64, width int, lo, hi int64) string {
	if width <= 0 || len(vals) == 0 {
		return ""
	}
	if len(vals) > width {
		vals = vals[len(vals)-width:]
	}
	top := len(sparkBlocks) - 1
	var b strings.Builder
	for _, v := range vals {
		idx := 0
		if hi > lo {
			idx = int(float64(v-lo) / float64(hi-lo) * float64(top))
		}
		idx = max(0, min(top, idx))
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}
