package source

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/biorelay/relay/internal/frame"
)

// State is which source the supervisor is serving from.
type State int

const (
	StatePhysical State = iota
	StateSimulated
)

func (s State) String() string {
	switch s {
	case StatePhysical:
		return "physical"
	case StateSimulated:
		return "simulated"
	default:
		return "unknown"
	}
}

// Failover records the one physical → simulated transition.
type Failover struct {
	At    time.Time `json:"at"`
	Cause string    `json:"cause"`
}

// Status is a diagnostic snapshot of the supervisor.
type Status struct {
	State    string         `json:"state"`
	Failover *Failover      `json:"failover,omitempty"`
	Physical *PhysicalStats `json:"physical,omitempty"`
}

// SupervisorConfig wires a Supervisor.
type SupervisorConfig struct {
	// UsePhysical selects the initial state. When false the supervisor
	// starts, and stays, simulated.
	UsePhysical bool
	// Opener acquires the physical transport on first use.
	Opener    Opener
	Codec     *frame.Codec
	IdlePause time.Duration
	// Simulated is the fallback source.
	Simulated Source
}

// Supervisor owns the active source. It starts physical or simulated as
// configured; the first physical failure (including failing to open the
// transport) switches it to simulated for the rest of its life.
//
// Produce must be called from a single goroutine. Status and Close may be
// called from any goroutine.
type Supervisor struct {
	opener    Opener
	codec     *frame.Codec
	idle      time.Duration
	simulated Source

	mu           sync.Mutex
	state        State
	physical     *Physical
	lastPhysical *PhysicalStats
	failover     *Failover
	hook         func(Failover)
	closed       bool
}

// NewSupervisor creates a supervisor. The physical transport is not opened
// until the first Produce.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	state := StateSimulated
	if cfg.UsePhysical {
		state = StatePhysical
	}
	return &Supervisor{
		opener:    cfg.Opener,
		codec:     cfg.Codec,
		idle:      cfg.IdlePause,
		simulated: cfg.Simulated,
		state:     state,
	}
}

// SetFailoverHook registers fn to be called once, after the switch to the
// simulated source. Must be called before Produce.
func (s *Supervisor) SetFailoverHook(fn func(Failover)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

// Produce returns the next frame from the active source. A physical failure
// is absorbed: the supervisor fails over and serves the frame from the
// simulated source in the same call. The only error returned is ctx's.
func (s *Supervisor) Produce(ctx context.Context) (frame.SensorFrame, error) {
	if s.State() == StatePhysical {
		f, err := s.producePhysical(ctx)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, ErrSourceFailed) {
			return frame.SensorFrame{}, err
		}
		s.failOver(err)
	}
	return s.simulated.Next(ctx)
}

func (s *Supervisor) producePhysical(ctx context.Context) (frame.SensorFrame, error) {
	phys, err := s.acquire()
	if err != nil {
		return frame.SensorFrame{}, err
	}
	return phys.Next(ctx)
}

func (s *Supervisor) acquire() (*Physical, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.physical != nil {
		return s.physical, nil
	}
	if s.closed {
		return nil, &FailureError{Source: "physical", Err: errors.New("supervisor closed")}
	}
	if s.opener == nil {
		return nil, &FailureError{Source: "physical", Err: errors.New("no transport configured")}
	}

	t, err := s.opener()
	if err != nil {
		return nil, &FailureError{Source: "physical", Err: err}
	}
	s.physical = NewPhysical(t, s.codec, s.idle)
	log.Printf("source: physical transport opened")
	return s.physical, nil
}

func (s *Supervisor) failOver(cause error) {
	s.mu.Lock()
	if s.state == StateSimulated {
		s.mu.Unlock()
		return
	}
	fo := Failover{At: time.Now(), Cause: cause.Error()}
	s.state = StateSimulated
	s.failover = &fo
	phys := s.physical
	s.physical = nil
	if phys != nil {
		st := phys.Stats()
		s.lastPhysical = &st
	}
	hook := s.hook
	s.mu.Unlock()

	if phys != nil {
		if err := phys.Close(); err != nil {
			log.Printf("source: closing physical transport: %v", err)
		}
	}
	log.Printf("source: %v; switching to simulated source", cause)

	if hook != nil {
		hook(fo)
	}
}

// State reports the active state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns a diagnostic snapshot.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: s.state.String()}
	if s.failover != nil {
		fo := *s.failover
		st.Failover = &fo
	}
	if s.physical != nil {
		ps := s.physical.Stats()
		st.Physical = &ps
	} else if s.lastPhysical != nil {
		ps := *s.lastPhysical
		st.Physical = &ps
	}
	return st
}

// Close releases the physical transport if one is open. It is idempotent
// and safe to defer on every exit path.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	phys := s.physical
	s.physical = nil
	s.mu.Unlock()

	if phys == nil {
		return nil
	}
	log.Printf("source: releasing physical transport")
	return phys.Close()
}
