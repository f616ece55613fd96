package feed

import "sync"

// Ring keeps the most recent events in memory for the HTTP feed endpoint.
type Ring struct {
	mu  sync.RWMutex
	buf []Event
	cap int
}

// NewRing creates a ring holding up to capacity events.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ring{cap: capacity}
}

// Emit implements Sink.
func (r *Ring) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, e)
	if len(r.buf) > r.cap {
		r.buf = r.buf[len(r.buf)-r.cap:]
	}
}

// Recent returns up to n of the newest events in chronological order.
func (r *Ring) Recent(n int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || len(r.buf) == 0 {
		return nil
	}
	if n > len(r.buf) {
		n = len(r.buf)
	}
	out := make([]Event, n)
	copy(out, r.buf[len(r.buf)-n:])
	return out
}
