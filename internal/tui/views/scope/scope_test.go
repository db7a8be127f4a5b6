package scope

import (
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/biorelay/relay/internal/frame"
)

func emg(vals ...int64) frame.Message {
	return frame.Message{DeviceID: 203333, Type: frame.EMG, Signals: vals}
}

func TestPushTracksChannels(t *testing.T) {
	m := New()
	now := time.Now()
	m.Push(emg(100, 110, 90), now)
	m.Push(emg(120, 115, 95), now.Add(20*time.Millisecond))

	if len(m.Channels) != 3 {
		t.Fatalf("channels = %d, want 3", len(m.Channels))
	}
	if m.Channels[0].Latest() != 120 || m.Channels[2].Latest() != 95 {
		t.Errorf("latest = %d, %d", m.Channels[0].Latest(), m.Channels[2].Latest())
	}
	if len(m.Channels[1].History) != 2 {
		t.Errorf("history len = %d", len(m.Channels[1].History))
	}
	if m.Total() != 2 {
		t.Errorf("Total() = %d", m.Total())
	}
}

func TestPushResetsOnShapeChange(t *testing.T) {
	m := New()
	m.Push(emg(1, 2, 3), time.Now())
	m.Push(frame.Message{DeviceID: 42, Type: frame.PPG, Signals: []int64{650}}, time.Now())

	if m.Type != "PPG" || m.DeviceID != 42 || len(m.Channels) != 1 {
		t.Fatalf("scope = %+v", m)
	}
	if len(m.Channels[0].History) != 1 {
		t.Error("history should restart after a shape change")
	}
}

func TestPushMeasuresLatency(t *testing.T) {
	m := New()
	sent := time.Unix(1700000000, 250_000_000)
	msg := emg(1)
	msg.Timestamp = float64(sent.UnixNano()) / 1e9

	m.Push(msg, sent.Add(35*time.Millisecond))
	if d := m.Latency() - 35*time.Millisecond; d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("Latency() = %v, want about 35ms", m.Latency())
	}
	if !strings.Contains(m.View(), "lag 35ms") {
		t.Errorf("header does not show the lag:\n%s", m.View())
	}
}

func TestHistoryCapped(t *testing.T) {
	m := New()
	for i := 0; i < historySize+40; i++ {
		m.Push(emg(int64(i)), time.Now())
	}
	if n := len(m.Channels[0].History); n != historySize {
		t.Errorf("history len = %d, want %d", n, historySize)
	}
}

func TestRate(t *testing.T) {
	m := New()
	start := time.Unix(1000, 0)
	for i := 0; i <= 50; i++ {
		m.Push(emg(1), start.Add(time.Duration(i)*20*time.Millisecond))
	}
	if r := m.Rate(); math.Abs(r-51) > 1.5 {
		t.Errorf("Rate() = %.1f, want about 50", r)
	}
}

func TestAnimateConvergesOnTarget(t *testing.T) {
	m := New()
	m.Push(emg(50), time.Now())
	m.Push(emg(200), time.Now())

	for i := 0; i < FPS*5; i++ {
		m.Animate()
	}
	if got := m.Channels[0].Pos; math.Abs(got-200) > 1 {
		t.Errorf("gauge position = %.2f, want ~200", got)
	}
}

func TestPausedIgnoresTraces(t *testing.T) {
	m := New()
	m.Push(emg(1), time.Now())
	m.Paused = true
	m.Push(emg(2), time.Now())
	if m.Channels[0].Latest() != 1 {
		t.Error("paused scope should not record new values")
	}
	if m.Total() != 2 {
		t.Error("paused scope should still count frames")
	}
}

func TestReset(t *testing.T) {
	m := New()
	m.Width = 100
	m.Push(emg(1, 2), time.Now())
	m.Reset()
	if len(m.Channels) != 0 || m.Total() != 0 || m.Width != 100 {
		t.Errorf("after Reset: %+v", m)
	}
}

func TestGauge(t *testing.T) {
	tests := []struct {
		pos  float64
		want int
	}{
		{50, 0},
		{125, 5},
		{200, 10},
		{500, 10},
		{-10, 0},
	}
	for _, tt := range tests {
		g := Gauge(tt.pos, 50, 200, 10)
		if got := strings.Count(g, "█"); got != tt.want {
			t.Errorf("Gauge(%v) filled = %d, want %d", tt.pos, got, tt.want)
		}
		if utf8.RuneCountInString(g) != 10 {
			t.Errorf("Gauge(%v) width = %d", tt.pos, utf8.RuneCountInString(g))
		}
	}
}

func TestSparkline(t *testing.T) {
	got := Sparkline([]int64{0, 7, 14}, 10, 0, 14)
	if got != "▁▄█" {
		t.Errorf("Sparkline = %q", got)
	}
	if got := Sparkline([]int64{1, 2, 3, 4}, 2, 1, 4); utf8.RuneCountInString(got) != 2 {
		t.Errorf("Sparkline should keep only the last width values, got %q", got)
	}
	if got := Sparkline([]int64{5, 5}, 4, 5, 5); got != "▁▁" {
		t.Errorf("flat Sparkline = %q", got)
	}
}

func TestViewWaiting(t *testing.T) {
	if !strings.Contains(New().View(), "Waiting") {
		t.Error("empty scope should say Waiting")
	}
}

func TestViewChannels(t *testing.T) {
	m := New()
	m.Width = 100
	m.Push(emg(100, 110, 90), time.Now())
	v := m.View()
	for _, want := range []string{"203333", "EMG", "ch1", "ch3", "110"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
