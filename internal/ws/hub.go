package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/biorelay/relay/internal/frame"
)

// ErrHubFull is returned by Join when the subscriber limit is reached.
var ErrHubFull = errors.New("subscriber limit reached")

// ErrLaneFull is the eviction cause for a subscriber whose delivery lane
// overflowed because it could not keep up.
var ErrLaneFull = errors.New("delivery lane full")

const (
	defaultLaneSize     = 32
	defaultDeliveryWait = 20 * time.Millisecond
)

// Subscriber is a live delivery target. Implementations must be pointer
// types (the hub compares them by identity). Send should hand the message
// off without blocking; when it does block it must honour ctx, and an
// expired ctx counts as a failed delivery.
//
// A Subscriber that also implements io.Closer is closed when evicted.
type Subscriber interface {
	ID() string
	Send(ctx context.Context, msg []byte) error
}

// HubConfig configures a Hub.
type HubConfig struct {
	// MaxSubscribers caps the live set. Zero means unlimited.
	MaxSubscribers int
	// SendTimeout bounds each per-subscriber Send. Zero means no bound.
	SendTimeout time.Duration
	// LaneSize is the number of frames queued per subscriber ahead of its
	// Send. A subscriber whose lane is full when a frame arrives is evicted.
	LaneSize int
	// DeliveryWait is how long Publish waits for idle subscribers to report
	// the outcome of the frame just handed to them. Subscribers still busy
	// with an earlier frame are never waited on. Negative disables waiting.
	DeliveryWait time.Duration
}

// HubStats is a diagnostic snapshot.
type HubStats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Evicted     uint64 `json:"evicted"`
}

// PublishResult reports the outcome of one Publish as seen when it returns.
// Pending counts frames handed to a subscriber's lane whose Send had not
// finished by then; they are accounted for in Stats once it does.
type PublishResult struct {
	Delivered int
	Pending   int
	Evicted   int
}

type delivery struct {
	msg    []byte
	result chan<- outcome
}

type outcome struct {
	err     error
	evicted bool
}

// member is the hub's view of one subscriber: a FIFO lane drained by a
// single goroutine, so frames reach each subscriber in production order no
// matter how slow any other subscriber is.
type member struct {
	sub  Subscriber
	lane chan delivery
	quit chan struct{}
	once sync.Once

	// busy is set while the lane holds or is sending a frame.
	busy atomic.Int32
}

func (m *member) stop() {
	m.once.Do(func() { close(m.quit) })
}

// Hub fans frames out to the current subscriber set. It exclusively owns
// the set; mutation goes through Join and Leave, and Publish iterates a
// snapshot so neither blocks the other for longer than a map copy.
type Hub struct {
	mu           sync.RWMutex
	members      map[string]*member
	max          int
	sendTimeout  time.Duration
	laneSize     int
	deliveryWait time.Duration

	// publishMu serializes Publish so every lane receives frames in
	// production order.
	publishMu sync.Mutex

	published atomic.Uint64
	delivered atomic.Uint64
	evicted   atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.LaneSize <= 0 {
		cfg.LaneSize = defaultLaneSize
	}
	if cfg.DeliveryWait == 0 {
		cfg.DeliveryWait = defaultDeliveryWait
	}
	return &Hub{
		members:      make(map[string]*member),
		max:          cfg.MaxSubscribers,
		sendTimeout:  cfg.SendTimeout,
		laneSize:     cfg.LaneSize,
		deliveryWait: cfg.DeliveryWait,
	}
}

// Join adds s to the live set. Re-joining with an id that is already present
// replaces the previous entry.
func (h *Hub) Join(s Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, exists := h.members[s.ID()]
	if !exists && h.max > 0 && len(h.members) >= h.max {
		return ErrHubFull
	}
	if exists {
		prev.stop()
	}

	m := &member{
		sub:  s,
		lane: make(chan delivery, h.laneSize),
		quit: make(chan struct{}),
	}
	h.members[s.ID()] = m
	go h.drain(m)
	return nil
}

// Leave removes s. It is a no-op if s is not in the set.
func (h *Hub) Leave(s Subscriber) {
	h.remove(s)
}

func (h *Hub) remove(s Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.members[s.ID()]
	if !ok || m.sub != s {
		return false
	}
	delete(h.members, s.ID())
	m.stop()
	return true
}

// Publish encodes f once and hands it to every subscriber's lane. It never
// waits on a subscriber that is still sending an earlier frame; idle
// subscribers get up to DeliveryWait to report, so a Send that fails outright
// is evicted before Publish returns. Overflowing lanes are evicted at once.
// With no subscribers Publish returns immediately without encoding.
func (h *Hub) Publish(f frame.SensorFrame) PublishResult {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	members := h.snapshot()
	if len(members) == 0 {
		return PublishResult{}
	}

	msg, err := frame.Encode(f)
	if err != nil {
		log.Printf("hub: encode error: %v", err)
		return PublishResult{}
	}
	h.published.Add(1)

	var (
		res     PublishResult
		results = make(chan outcome, len(members))
		waiting int
	)
	for _, m := range members {
		d := delivery{msg: msg}
		idle := m.busy.Load() == 0
		if idle && h.deliveryWait > 0 {
			d.result = results
		}

		m.busy.Add(1)
		select {
		case m.lane <- d:
			if d.result != nil {
				waiting++
			} else {
				res.Pending++
			}
		default:
			m.busy.Add(-1)
			if h.evict(m, ErrLaneFull) {
				res.Evicted++
			}
		}
	}

	if waiting > 0 {
		timer := time.NewTimer(h.deliveryWait)
		defer timer.Stop()
	collect:
		for ; waiting > 0; waiting-- {
			select {
			case o := <-results:
				switch {
				case o.err == nil:
					res.Delivered++
				case o.evicted:
					res.Evicted++
				}
			case <-timer.C:
				break collect
			}
		}
		res.Pending += waiting
	}
	return res
}

// drain feeds m's lane to its subscriber one frame at a time until the
// member is stopped or its Send fails.
func (h *Hub) drain(m *member) {
	for {
		select {
		case <-m.quit:
			return
		case d := <-m.lane:
			err := h.deliver(m.sub, d.msg)
			m.busy.Add(-1)

			var o outcome
			if err != nil {
				o = outcome{err: err, evicted: h.evict(m, err)}
			} else {
				h.delivered.Add(1)
			}
			if d.result != nil {
				d.result <- o
			}
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) deliver(s Subscriber, msg []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in send: %v", r)
		}
	}()

	ctx, cancel := h.sendContext()
	defer cancel()
	return s.Send(ctx, msg)
}

func (h *Hub) sendContext() (context.Context, context.CancelFunc) {
	if h.sendTimeout > 0 {
		return context.WithTimeout(context.Background(), h.sendTimeout)
	}
	return context.WithCancel(context.Background())
}

func (h *Hub) evict(m *member, cause error) bool {
	s := m.sub
	if !h.remove(s) {
		return false
	}
	h.evicted.Add(1)
	log.Printf("hub: evicting subscriber %s: %v", s.ID(), cause)
	if c, ok := s.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Printf("hub: closing subscriber %s: %v", s.ID(), err)
		}
	}
	return true
}

func (h *Hub) snapshot() []*member {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]*member, 0, len(h.members))
	for _, m := range h.members {
		members = append(members, m)
	}
	return members
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// Stats returns counters since the hub was created.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Subscribers: h.Count(),
		Published:   h.published.Load(),
		Delivered:   h.delivered.Load(),
		Evicted:     h.evicted.Load(),
	}
}
