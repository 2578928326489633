// Package stats implements the FPS counter (§4.9) and the periodic,
// host-metrics-enriched stats log used to observe the capture/encode and
// network/player pipelines without participating in the wire protocol.
package stats

import "sync/atomic"

// Counter is a lock-free tally incremented from the capture and send
// paths and drained once per tick by a Sampler, mirroring the teacher's
// g_fps_count global reset on each report.
type Counter struct {
	n int64
}

// Add increments the counter by delta (delta is usually 1; kept general
// for batched increments).
func (c *Counter) Add(delta int64) { atomic.AddInt64(&c.n, delta) }

// SnapshotReset atomically reads and zeroes the counter, returning the
// value accumulated since the previous call.
func (c *Counter) SnapshotReset() int64 { return atomic.SwapInt64(&c.n, 0) }
