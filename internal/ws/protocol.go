package ws

import (
	"time"

	"github.com/biorelay/relay/internal/procstat"
	"github.com/biorelay/relay/internal/source"
)

// StatusReport is the body of GET /api/status.
type StatusReport struct {
	Source    source.Status    `json:"source"`
	Hub       HubStats         `json:"hub"`
	Process   *procstat.Sample `json:"process,omitempty"`
	StartedAt time.Time        `json:"startedAt"`
}

// StatusFunc builds a StatusReport on demand.
type StatusFunc func() StatusReport
