package status

import (
	"strings"
	"testing"
	"time"

	"github.com/biorelay/relay/internal/source"
	"github.com/biorelay/relay/internal/ws"
)

func TestViewBeforeFirstPoll(t *testing.T) {
	m := New()
	m.Width = 120
	v := m.View()
	if !strings.Contains(v, "Connecting") {
		t.Error("disconnected bar should say Connecting")
	}
	if m.SourceState() != "" {
		t.Errorf("SourceState() = %q, want empty", m.SourceState())
	}
}

func TestViewWithReport(t *testing.T) {
	m := New()
	m.Width = 160
	m.Connected = true
	m.Rate = 49.8
	m.Report = &ws.StatusReport{
		Source: source.Status{
			State:    "simulated",
			Failover: &source.Failover{At: time.Date(2024, 1, 1, 12, 30, 0, 0, time.Local), Cause: "unplugged"},
		},
		Hub: ws.HubStats{Subscribers: 3},
	}

	v := m.View()
	for _, want := range []string{"Connected", "49.8 fps", "source: simulated", "3 subscribers", "failover 12:30:00"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}
