// Package queue implements the bounded, blocking cross-thread queues that
// backpressure the capture/encode and network/player pipelines: a
// single-producer/single-consumer ring of swapped byte buffers, and a
// generic bounded FIFO.
package queue

import (
	"sync"

	"github.com/deskstream/deskstream/internal/buffer"
)

// Ring is a fixed-capacity slot queue of *buffer.Buffer. Push and Pop swap
// their argument with a slot instead of copying, so only a single producer
// may call Push and a single consumer may call Pop at a time. Capacity N
// holds at most N buffers in flight; internally N+1 slots are kept so that
// front == rear unambiguously means empty.
type Ring struct {
	mu    sync.Mutex
	rd    *sync.Cond
	wr    *sync.Cond
	slots []*buffer.Buffer
	front int
	rear  int
}

// NewRing creates a ring of capacity cap, pre-populating each slot with a
// buffer reserving reserve bytes (matching the fixed YUV frame size for a
// session, §3 "YUV frame").
func NewRing(cap, reserve int) *Ring {
	r := &Ring{slots: make([]*buffer.Buffer, cap+1)}
	for i := range r.slots {
		r.slots[i] = buffer.New(reserve)
	}
	r.rd = sync.NewCond(&r.mu)
	r.wr = sync.NewCond(&r.mu)
	return r
}

func (r *Ring) full() bool  { return (r.rear+1)%len(r.slots) == r.front }
func (r *Ring) empty() bool { return r.front == r.rear }

// WriteSlot returns the current rear slot for a single producer to fill
// in place. Call Commit afterwards to publish it.
func (r *Ring) WriteSlot() *buffer.Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.full() {
		r.wr.Wait()
	}
	return r.slots[r.rear]
}

// Commit advances the rear index past the slot most recently returned by
// WriteSlot, making it visible to Pop.
func (r *Ring) Commit() {
	r.mu.Lock()
	r.rear = (r.rear + 1) % len(r.slots)
	r.mu.Unlock()
	r.rd.Signal()
}

// Push swaps buf into the rear slot and commits it in one step; used by
// callers (e.g. the end-of-stream sentinel) that don't need the in-place
// WriteSlot/Commit split.
func (r *Ring) Push(buf *buffer.Buffer) {
	r.mu.Lock()
	for r.full() {
		r.wr.Wait()
	}
	r.slots[r.rear].Swap(buf)
	r.rear = (r.rear + 1) % len(r.slots)
	r.mu.Unlock()
	r.rd.Signal()
}

// Pop swaps the front slot into out and advances front, blocking while the
// ring is empty.
func (r *Ring) Pop(out *buffer.Buffer) {
	r.mu.Lock()
	for r.empty() {
		r.rd.Wait()
	}
	r.slots[r.front].Swap(out)
	r.front = (r.front + 1) % len(r.slots)
	r.mu.Unlock()
	r.wr.Signal()
}

// Len reports the number of buffers currently queued. Observational only —
// used by stats sampling, never by producer/consumer logic.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.rear - r.front
	if n < 0 {
		n += len(r.slots)
	}
	return n
}
