package source

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/biorelay/relay/internal/frame"
	"golang.org/x/time/rate"
)

// DefaultIdlePause is how long Physical waits after a read timeout before
// reading again.
const DefaultIdlePause = 10 * time.Millisecond

// PhysicalStats counts what the physical source has seen. Rejected lines
// are expected noise on a serial link; they are counted, never surfaced.
type PhysicalStats struct {
	Lines        uint64 `json:"lines"`
	Frames       uint64 `json:"frames"`
	Rejected     uint64 `json:"rejected"`
	IdleReads    uint64 `json:"idleReads"`
	LastRejected string `json:"lastRejected,omitempty"`
	LastError    string `json:"lastError,omitempty"`
}

// Physical reads frames from a line transport through the codec.
type Physical struct {
	transport Transport
	codec     *frame.Codec
	idle      time.Duration
	rejectLog *rate.Limiter
	failure   error

	mu    sync.Mutex
	stats PhysicalStats
}

// NewPhysical wraps t. idle is the pause after an empty read; zero selects
// DefaultIdlePause.
func NewPhysical(t Transport, codec *frame.Codec, idle time.Duration) *Physical {
	if idle <= 0 {
		idle = DefaultIdlePause
	}
	return &Physical{
		transport: t,
		codec:     codec,
		idle:      idle,
		rejectLog: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Next returns the next valid frame. Invalid lines are skipped; a transport
// error fails the source permanently.
func (p *Physical) Next(ctx context.Context) (frame.SensorFrame, error) {
	if p.failure != nil {
		return frame.SensorFrame{}, p.failure
	}

	for {
		if err := ctx.Err(); err != nil {
			return frame.SensorFrame{}, err
		}

		line, err := p.transport.ReadLine()
		if err != nil {
			p.failure = &FailureError{Source: "physical", Err: err}
			p.recordError(err)
			return frame.SensorFrame{}, p.failure
		}

		if len(line) == 0 {
			p.recordIdle()
			if !sleepCtx(ctx, p.idle) {
				return frame.SensorFrame{}, ctx.Err()
			}
			continue
		}

		text := frame.DecodeLine(line)
		f, ok := p.codec.Parse(text)
		if !ok {
			p.recordReject(text)
			continue
		}
		p.recordFrame()
		return f, nil
	}
}

// Close releases the transport.
func (p *Physical) Close() error {
	return p.transport.Close()
}

// Stats returns a snapshot of the counters. Safe for concurrent use.
func (p *Physical) Stats() PhysicalStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Physical) recordIdle() {
	p.mu.Lock()
	p.stats.IdleReads++
	p.mu.Unlock()
}

func (p *Physical) recordFrame() {
	p.mu.Lock()
	p.stats.Lines++
	p.stats.Frames++
	p.mu.Unlock()
}

func (p *Physical) recordReject(text string) {
	trimmed := strings.TrimSpace(text)
	p.mu.Lock()
	p.stats.Lines++
	p.stats.Rejected++
	p.stats.LastRejected = trimmed
	p.mu.Unlock()

	if trimmed != "" && p.rejectLog.Allow() {
		log.Printf("physical: dropped line %q", trimmed)
	}
}

func (p *Physical) recordError(err error) {
	p.mu.Lock()
	p.stats.LastError = err.Error()
	p.mu.Unlock()
}

// sleepCtx waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
