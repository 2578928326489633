package stats

import (
	"log"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot is one observational sample, broadcast read-only by the monitor
// hub and never part of the wire protocol (§6 "Persisted state: none").
type Snapshot struct {
	UnixSec    int64   `msgpack:"unix_sec"`
	FPS        int64   `msgpack:"fps"`
	RingDepth  int     `msgpack:"ring_depth"`
	FIFODepth  int     `msgpack:"fifo_depth"`
	CPUPercent float64 `msgpack:"cpu_percent"`
	RSSBytes   uint64  `msgpack:"rss_bytes"`
}

// DepthFunc reports the current depth of a queue for inclusion in a
// Snapshot; both the ring and the FIFO expose an observational Len().
type DepthFunc func() int

// Sampler ticks once a second, drains the FPS Counter, and enriches the
// reading with process CPU/RSS figures (grounded in the teacher's SNMP
// ticker-logger idiom, generalized from a CSV sink to a log line plus a
// Snapshot feed for the monitor hub).
type Sampler struct {
	FPS       *Counter
	RingDepth DepthFunc
	FIFODepth DepthFunc

	proc *process.Process

	latest chan Snapshot // capacity 1, always holds the most recent sample
	stop   chan struct{}
}

// NewSampler creates a Sampler. Depth functions may be nil if the caller
// has no corresponding queue to report on (e.g. the client side has no
// ring).
func NewSampler(fps *Counter, ringDepth, fifoDepth DepthFunc) *Sampler {
	proc, err := process.NewProcess(int32(currentPID()))
	if err != nil {
		log.Printf("stats: process handle unavailable, CPU/RSS fields will read 0: %v", err)
	}
	return &Sampler{
		FPS:       fps,
		RingDepth: ringDepth,
		FIFODepth: fifoDepth,
		proc:      proc,
		latest:    make(chan Snapshot, 1),
		stop:      make(chan struct{}),
	}
}

// Run samples once a second until Stop is called. Intended to run on its
// own goroutine, tied to the streaming service/request's lifetime.
func (s *Sampler) Run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			snap := s.sample()
			select {
			case <-s.latest:
			default:
			}
			s.latest <- snap
		case <-s.stop:
			return
		}
	}
}

// Stop ends the sampling loop.
func (s *Sampler) Stop() { close(s.stop) }

// Latest returns the most recent Snapshot, or the zero value if none has
// been taken yet.
func (s *Sampler) Latest() Snapshot {
	select {
	case snap := <-s.latest:
		s.latest <- snap
		return snap
	default:
		return Snapshot{}
	}
}

func (s *Sampler) sample() Snapshot {
	snap := Snapshot{UnixSec: nowUnix(), FPS: s.FPS.SnapshotReset()}
	if s.RingDepth != nil {
		snap.RingDepth = s.RingDepth()
	}
	if s.FIFODepth != nil {
		snap.FIFODepth = s.FIFODepth()
	}
	if s.proc != nil {
		if pct, err := s.proc.CPUPercent(); err == nil {
			snap.CPUPercent = pct
		}
		if mi, err := s.proc.MemoryInfo(); err == nil && mi != nil {
			snap.RSSBytes = mi.RSS
		}
	}
	if _, err := cpu.Percent(0, false); err != nil {
		log.Printf("stats: host cpu sample failed: %v", err)
	}
	log.Printf("stats: fps=%d ring=%d fifo=%d cpu=%.1f%% rss=%dB",
		snap.FPS, snap.RingDepth, snap.FIFODepth, snap.CPUPercent, snap.RSSBytes)
	return snap
}
