// Package relay runs the production loop: pull a frame from the source
// supervisor, hand it to the hub, repeat.
package relay

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/biorelay/relay/internal/frame"
	"github.com/biorelay/relay/internal/ws"
)

// Producer yields frames until ctx is cancelled.
type Producer interface {
	Produce(ctx context.Context) (frame.SensorFrame, error)
}

// Publisher fans a frame out to subscribers.
type Publisher interface {
	Publish(f frame.SensorFrame) ws.PublishResult
}

// Pump connects a Producer to a Publisher.
type Pump struct {
	producer  Producer
	publisher Publisher

	// ReportEvery, when positive, logs throughput at that interval.
	ReportEvery time.Duration
}

func NewPump(p Producer, pub Publisher) *Pump {
	return &Pump{producer: p, publisher: pub}
}

// Run loops until ctx is cancelled, which is a normal stop and returns nil.
// Any other producer error ends the loop and is returned.
func (p *Pump) Run(ctx context.Context) error {
	var (
		frames    uint64
		handedOff uint64
		lastLog   = time.Now()
	)

	for {
		f, err := p.producer.Produce(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		}

		res := p.publisher.Publish(f)
		frames++
		handedOff += uint64(res.Delivered + res.Pending)

		if p.ReportEvery > 0 && time.Since(lastLog) >= p.ReportEvery {
			log.Printf("relay: %d frames produced, %d deliveries handed off", frames, handedOff)
			lastLog = time.Now()
		}
	}
}
