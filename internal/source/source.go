// Package source produces the relay's frame stream. A Source is a pull
// sequence of frames; Physical reads them from a line transport, Simulated
// synthesizes them, and Supervisor owns the one-way failover between the two.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/biorelay/relay/internal/frame"
)

// Source yields frames one at a time. Next blocks until a frame is
// available, the source fails, or ctx is done. Sources are not restartable:
// once Next reports a failure every later call reports it too.
//
// Implementations are used from a single goroutine (the production loop)
// and need not be safe for concurrent use.
type Source interface {
	Next(ctx context.Context) (frame.SensorFrame, error)
}

// Transport is a line-oriented byte stream, e.g. a serial device.
//
// ReadLine returns one line without its terminator. A nil or empty line with
// a nil error means the read timed out with no complete line; that is normal
// and the caller retries. A non-nil error means the transport is unusable.
type Transport interface {
	ReadLine() ([]byte, error)
	Close() error
}

// Opener acquires a Transport. It is called lazily by the Supervisor.
type Opener func() (Transport, error)

// ErrSourceFailed matches every FailureError via errors.Is.
var ErrSourceFailed = errors.New("source failed")

// FailureError reports that a source can no longer produce frames.
type FailureError struct {
	Source string
	Err    error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%s source failed: %v", e.Source, e.Err)
}

func (e *FailureError) Unwrap() error { return e.Err }

func (e *FailureError) Is(target error) bool { return target == ErrSourceFailed }
