// Package events keeps the relay timeline shown in the events overlay. Most
// entries are derived by comparing consecutive /api/status reports: a
// failover, subscribers evicted by the hub, rejected device lines, a relay
// restart. The WebSocket link and failed polls are recorded directly.
package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/biorelay/relay/internal/tui/theme"
	"github.com/biorelay/relay/internal/ws"
)

const capacity = 256

// Kind classifies a timeline entry.
type Kind int

const (
	KindLink Kind = iota
	KindFailover
	KindEviction
	KindSubscribers
	KindRejects
	KindRestart
	KindPollError
)

var kinds = []Kind{KindLink, KindFailover, KindEviction, KindSubscribers, KindRejects, KindRestart, KindPollError}

// Label is the fixed-width badge text for k.
func (k Kind) Label() string {
	switch k {
	case KindLink:
		return "LINK"
	case KindFailover:
		return "FAIL"
	case KindEviction:
		return "EVCT"
	case KindSubscribers:
		return "SUBS"
	case KindRejects:
		return "REJ"
	case KindRestart:
		return "RST"
	case KindPollError:
		return "POLL"
	}
	return "?"
}

// Alert reports whether k needs the operator's attention.
func (k Kind) Alert() bool {
	return k == KindFailover || k == KindEviction || k == KindPollError
}

func (k Kind) color() lipgloss.Color {
	switch k {
	case KindLink:
		return theme.ColorWS
	case KindFailover, KindRestart:
		return theme.ColorSource
	case KindEviction, KindRejects:
		return theme.ColorWarning
	case KindPollError:
		return theme.ColorError
	}
	return theme.ColorDimmed
}

// Event is one timeline entry. Repeat counts identical follow-ups folded
// into it.
type Event struct {
	At     time.Time
	Kind   Kind
	Text   string
	Repeat int
}

// Diff returns the events implied by the relay moving from prev to cur. prev
// is nil for the first report; only an existing failover is reported then.
func Diff(prev, cur *ws.StatusReport, at time.Time) []Event {
	if cur == nil {
		return nil
	}
	var out []Event
	add := func(k Kind, format string, args ...any) {
		out = append(out, Event{At: at, Kind: k, Text: fmt.Sprintf(format, args...)})
	}

	if prev == nil {
		if fo := cur.Source.Failover; fo != nil {
			add(KindFailover, "serving simulated frames since %s: %s", fo.At.Format("15:04:05"), fo.Cause)
		}
		return out
	}

	if cur.StartedAt.After(prev.StartedAt) {
		add(KindRestart, "relay restarted at %s", cur.StartedAt.Format("15:04:05"))
		if fo := cur.Source.Failover; fo != nil {
			add(KindFailover, "serving simulated frames since %s: %s", fo.At.Format("15:04:05"), fo.Cause)
		}
		return out
	}

	if prev.Source.Failover == nil && cur.Source.Failover != nil {
		add(KindFailover, "physical source failed: %s", cur.Source.Failover.Cause)
	}
	if cur.Hub.Evicted > prev.Hub.Evicted {
		add(KindEviction, "%d subscriber(s) evicted, %d in total", cur.Hub.Evicted-prev.Hub.Evicted, cur.Hub.Evicted)
	}
	if cur.Hub.Subscribers != prev.Hub.Subscribers {
		add(KindSubscribers, "subscribers %d -> %d", prev.Hub.Subscribers, cur.Hub.Subscribers)
	}
	if p, c := prev.Source.Physical, cur.Source.Physical; p != nil && c != nil && c.Rejected > p.Rejected {
		text := fmt.Sprintf("%d line(s) rejected", c.Rejected-p.Rejected)
		if c.LastRejected != "" {
			text += fmt.Sprintf(", last %q", c.LastRejected)
		}
		add(KindRejects, "%s", text)
	}
	return out
}

// Model is the timeline plus its scroll position.
type Model struct {
	events []Event
	counts map[Kind]int
	last   *ws.StatusReport

	// back is how many entries the view is scrolled up from the newest.
	back int
}

// New creates an empty timeline.
func New() Model {
	return Model{counts: make(map[Kind]int)}
}

// Observe folds a fresh status report into the timeline.
func (m *Model) Observe(rep *ws.StatusReport, at time.Time) {
	for _, e := range Diff(m.last, rep, at) {
		m.record(e)
	}
	m.last = rep
}

// Link records the WebSocket to the relay going up or down.
func (m *Model) Link(up bool, err error, at time.Time) {
	switch {
	case up:
		m.record(Event{At: at, Kind: KindLink, Text: "connected to relay"})
	case err != nil:
		m.record(Event{At: at, Kind: KindLink, Text: "lost relay: " + err.Error()})
	default:
		m.record(Event{At: at, Kind: KindLink, Text: "lost relay"})
	}
}

// PollFailed records a failed status poll. Consecutive identical failures
// collapse into one entry.
func (m *Model) PollFailed(err error, at time.Time) {
	m.record(Event{At: at, Kind: KindPollError, Text: err.Error()})
}

func (m *Model) record(e Event) {
	if m.counts == nil {
		m.counts = make(map[Kind]int)
	}
	m.counts[e.Kind]++

	if n := len(m.events); n > 0 && e.Kind == KindPollError {
		if tail := &m.events[n-1]; tail.Kind == e.Kind && tail.Text == e.Text {
			tail.Repeat++
			tail.At = e.At
			return
		}
	}

	m.events = append(m.events, e)
	if len(m.events) > capacity {
		m.events = m.events[len(m.events)-capacity:]
	}
	if m.back > 0 {
		m.back = min(m.back+1, len(m.events)-1)
	}
}

// Events returns the timeline, oldest first.
func (m Model) Events() []Event { return m.events }

// Count is how many events of kind k were seen, folded repeats included.
func (m Model) Count(k Kind) int { return m.counts[k] }

// ScrollUp moves toward older entries.
func (m *Model) ScrollUp(n int) {
	m.back = max(0, min(m.back+n, len(m.events)-1))
}

// ScrollDown moves toward the newest entry.
func (m *Model) ScrollDown(n int) {
	m.back = max(0, m.back-n)
}

// View renders the timeline as an overlay panel.
func (m Model) View(width, height int) string {
	inner := max(width-4, 30)
	rows := max(height-8, 3)

	title := theme.StyleHeader.Render(" RELAY EVENTS ")
	footer := theme.StyleDimmed.Render("j/k:scroll  esc:close")

	if len(m.events) == 0 {
		return panel(inner).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", theme.StyleDimmed.Render("  Nothing has happened yet."), "", footer))
	}

	end := len(m.events) - m.back
	start := max(0, end-rows)
	lines := make([]string, 0, end-start)
	for _, e := range m.events[start:end] {
		lines = append(lines, renderEvent(e, inner))
	}

	if m.back > 0 {
		footer = theme.StyleDimmed.Render(fmt.Sprintf("%d newer  ", m.back)) + footer
	}
	return panel(inner).Render(lipgloss.JoinVertical(lipgloss.Left,
		title, m.summary(), "", strings.Join(lines, "\n"), "", footer))
}

// summary shows a counter per kind that has occurred, alerts first.
func (m Model) summary() string {
	var alerts, rest []string
	for _, k := range kinds {
		n := m.counts[k]
		if n == 0 {
			continue
		}
		s := lipgloss.NewStyle().Foreground(k.color()).Render(fmt.Sprintf("%s %d", k.Label(), n))
		if k.Alert() {
			alerts = append(alerts, s)
		} else {
			rest = append(rest, s)
		}
	}
	return strings.Join(append(alerts, rest...), "  ")
}

func renderEvent(e Event, width int) string {
	badge := lipgloss.NewStyle().
		Width(6).
		Align(lipgloss.Center).
		Bold(e.Kind.Alert()).
		Foreground(theme.ColorBg).
		Background(e.Kind.color()).
		Render(e.Kind.Label())

	text := e.Text
	if e.Repeat > 0 {
		text += fmt.Sprintf(" (x%d)", e.Repeat+1)
	}
	if room := width - 22; room > 3 && len(text) > room {
		text = text[:room-3] + "..."
	}
	return theme.StyleDimmed.Render(e.At.Format("15:04:05")) + " " + badge + " " + text
}

func panel(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder)
}
