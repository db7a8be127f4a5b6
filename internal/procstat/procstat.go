// Package procstat samples resource usage of the relay process for the
// status endpoint.
package procstat

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Sample is a point-in-time view of the process.
type Sample struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpuPercent"`
	RSSBytes   uint64  `json:"rssBytes"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
	UptimeSec  float64 `json:"uptimeSec"`
}

// Sampler reads stats for one process.
type Sampler struct {
	proc    *process.Process
	started time.Time
}

// New returns a sampler for the current process.
func New() (*Sampler, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("inspecting own process: %w", err)
	}
	started := time.Now()
	if ms, err := p.CreateTime(); err == nil {
		started = time.UnixMilli(ms)
	}
	return &Sampler{proc: p, started: started}, nil
}

// Sample collects the current figures. Individual probes that fail are left
// at zero rather than failing the whole sample.
func (s *Sampler) Sample() Sample {
	out := Sample{
		PID:        s.proc.Pid,
		Goroutines: runtime.NumGoroutine(),
		UptimeSec:  time.Since(s.started).Seconds(),
	}
	if cpu, err := s.proc.CPUPercent(); err == nil {
		out.CPUPercent = cpu
	}
	if mem, err := s.proc.MemoryInfo(); err == nil && mem != nil {
		out.RSSBytes = mem.RSS
	}
	if n, err := s.proc.NumThreads(); err == nil {
		out.Threads = n
	}
	return out
}
