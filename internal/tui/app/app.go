package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/biorelay/relay/internal/tui/client"
	"github.com/biorelay/relay/internal/tui/theme"
	"github.com/biorelay/relay/internal/tui/views/events"
	"github.com/biorelay/relay/internal/tui/views/help"
	"github.com/biorelay/relay/internal/tui/views/scope"
	"github.com/biorelay/relay/internal/tui/views/status"
)

const statusPollInterval = 2 * time.Second

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayEvents
	OverlayHelp
)

type animTickMsg struct{}

type statusTickMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc

	keys      KeyMap
	width     int
	height    int
	overlay   Overlay
	helpStyle string

	statusBar status.Model
	scope     scope.Model
	events    events.Model

	connected bool
}

// New creates the root model. helpStyle is a glamour style name.
func New(ws *client.WSClient, http *client.HTTPClient, helpStyle string) Model {
	ctx, cancel := context.WithCancel(context.Background())
	if helpStyle == "" {
		helpStyle = "dark"
	}
	return Model{
		ws:        ws,
		http:      http,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		helpStyle: helpStyle,
		statusBar: status.New(),
		scope:     scope.New(),
		events:    events.New(),
	}
}

// Init starts the WebSocket connection, the status poller and the gauge
// animation.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.ws.Listen(m.ctx), m.http.PollStatus(), animTick())
}

func animTick() tea.Cmd {
	return tea.Tick(time.Second/scope.FPS, func(time.Time) tea.Msg { return animTickMsg{} })
}

func statusTick() tea.Cmd {
	return tea.Tick(statusPollInterval, func(time.Time) tea.Msg { return statusTickMsg{} })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.scope.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.events.Link(true, nil, time.Now())
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.events.Link(false, msg.Err, time.Now())
		return m, m.ws.Listen(m.ctx)

	case client.WSFrameMsg:
		m.scope.Push(msg.Message, msg.Received)
		m.statusBar.Rate = m.scope.Rate()
		return m, m.ws.ReadLoop(m.ctx)

	case client.StatusMsg:
		m.applyStatus(msg)
		return m, statusTick()

	case statusTickMsg:
		return m, m.http.PollStatus()

	case animTickMsg:
		m.scope.Animate()
		return m, animTick()
	}

	return m, nil
}

func (m *Model) applyStatus(msg client.StatusMsg) {
	now := time.Now()
	if msg.Err != nil {
		m.events.PollFailed(msg.Err, now)
		return
	}
	if msg.Report == nil {
		return
	}
	m.statusBar.Report = msg.Report
	m.events.Observe(msg.Report, now)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		if m.ws != nil {
			m.ws.Close()
		}
		return m, tea.Quit
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Help) && m.overlay == OverlayHelp:
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up) && m.overlay == OverlayEvents:
			m.events.ScrollUp(1)
		case key.Matches(msg, m.keys.Down) && m.overlay == OverlayEvents:
			m.events.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Events):
		m.overlay = OverlayEvents
	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
	case key.Matches(msg, m.keys.Pause):
		m.scope.Paused = !m.scope.Paused
	case key.Matches(msg, m.keys.Reset):
		m.scope.Reset()
		m.statusBar.Rate = 0
	}
	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	switch m.overlay {
	case OverlayEvents:
		body = m.events.View(m.width, m.height-4)
	case OverlayHelp:
		body = help.View(m.width, m.helpStyle)
	default:
		body = m.scope.View()
	}

	sections := []string{m.statusBar.View()}
	if !m.connected {
		sections = append(sections, m.disconnectBanner())
	}
	sections = append(sections,
		body,
		theme.StyleDimmed.Render("  p:pause  r:reset  e:events  ?:help  q:quit"),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) disconnectBanner() string {
	return lipgloss.NewStyle().
		Width(m.width-4).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorDanger).
		Render(theme.StyleDanger.Render("DISCONNECTED") + theme.StyleDimmed.Render("  Reconnecting to relay..."))
}
