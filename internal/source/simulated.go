package source

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/biorelay/relay/internal/frame"
)

// Simulator defaults: ~50 Hz, the device id the bench sensor reports.
const (
	DefaultSimDeviceID = 203333
	DefaultSimInterval = 20 * time.Millisecond

	// simStep is how far simulation time advances per frame, independent
	// of wall-clock pacing, so the waveform shape does not depend on load.
	simStep = 0.02

	simMin = 50
	simMax = 200
)

// SimulatedConfig configures the synthetic generator.
type SimulatedConfig struct {
	DeviceID uint64
	// Interval between frames. Zero or negative disables pacing.
	Interval time.Duration
	// Seed for the jitter RNG. Zero seeds from the clock.
	Seed int64
}

// Simulated synthesizes a three-channel EMG stream: a damped heartbeat-like
// wave, a slow respiratory wave and a faster muscle wave with jitter. Every
// channel is clamped to [50, 200]. It never fails.
type Simulated struct {
	deviceID uint64
	interval time.Duration
	rng      *rand.Rand
	t        float64
	next     time.Time
}

// NewSimulated creates a generator.
func NewSimulated(cfg SimulatedConfig) *Simulated {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulated{
		deviceID: cfg.DeviceID,
		interval: cfg.Interval,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Next waits for the next tick and returns a synthesized frame. The only
// error it returns is ctx's.
func (s *Simulated) Next(ctx context.Context) (frame.SensorFrame, error) {
	if err := s.pace(ctx); err != nil {
		return frame.SensorFrame{}, err
	}

	t := s.t
	s.t += simStep

	heartbeat := 100 + int64(40*math.Sin(t*6)*math.Exp(-math.Mod(t, 1.0)*5))
	respiratory := 110 + int64(20*math.Sin(t*1.5))
	muscle := 90 + int64(15*math.Sin(t*10)) + int64(s.rng.Intn(11)-5)

	return frame.SensorFrame{
		DeviceID:  s.deviceID,
		Type:      frame.EMG,
		Channels:  []int64{clamp(heartbeat), clamp(respiratory), clamp(muscle)},
		Timestamp: time.Now(),
	}, nil
}

// pace sleeps until the next scheduled emission. If the caller fell more
// than one interval behind, the schedule restarts from now instead of
// bursting to catch up.
func (s *Simulated) pace(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.interval <= 0 {
		return nil
	}

	now := time.Now()
	if s.next.IsZero() || now.Sub(s.next) > s.interval {
		s.next = now
	}
	if !sleepCtx(ctx, s.next.Sub(now)) {
		return ctx.Err()
	}
	s.next = s.next.Add(s.interval)
	return nil
}

func clamp(v int64) int64 {
	return max(simMin, min(simMax, v))
}
