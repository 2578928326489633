// Package handler implements the ordered id -> callback chain dispatched on
// received messages and connection errors (§4.5). Registration and dispatch
// must happen on the same goroutine (the connection's I/O loop) — the
// registry itself is not synchronized.
package handler

import "sort"

// MsgFunc handles one received line. Returning true claims the message and
// stops the chain; false passes it to the next handler.
type MsgFunc func(msg string) bool

// ErrFunc handles a connection error the same way.
type ErrFunc func(err error) bool

// Msgs is an ordered map of id -> MsgFunc, dispatched ascending by id.
type Msgs struct {
	entries map[int]MsgFunc
}

// NewMsgs creates an empty message handler chain.
func NewMsgs() *Msgs { return &Msgs{entries: make(map[int]MsgFunc)} }

// Add registers fn at id, replacing any handler already at that id.
func (m *Msgs) Add(id int, fn MsgFunc) { m.entries[id] = fn }

// Remove deregisters the handler at id, if any.
func (m *Msgs) Remove(id int) { delete(m.entries, id) }

// Dispatch runs handlers in ascending id order until one returns true.
func (m *Msgs) Dispatch(msg string) {
	for _, id := range sortedIDs(m.entries) {
		fn, ok := m.entries[id]
		if !ok {
			continue // removed by an earlier handler in this dispatch
		}
		if fn(msg) {
			return
		}
	}
}

// Errs is the error-handler counterpart of Msgs.
type Errs struct {
	entries map[int]ErrFunc
}

// NewErrs creates an empty error handler chain.
func NewErrs() *Errs { return &Errs{entries: make(map[int]ErrFunc)} }

// Add registers fn at id, replacing any handler already at that id.
func (e *Errs) Add(id int, fn ErrFunc) { e.entries[id] = fn }

// Remove deregisters the handler at id, if any.
func (e *Errs) Remove(id int) { delete(e.entries, id) }

// Dispatch runs handlers in ascending id order until one returns true.
func (e *Errs) Dispatch(err error) {
	for _, id := range sortedIDs(e.entries) {
		fn, ok := e.entries[id]
		if !ok {
			continue // removed by an earlier handler in this dispatch
		}
		if fn(err) {
			return
		}
	}
}

func sortedIDs[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
