// Package events buffers scan progress events for polling clients.
package events

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Type names a progress event.
type Type string

const (
	RunStarted   Type = "run_started"
	Progress     Type = "progress"
	RunCompleted Type = "run_completed"
	RunStopped   Type = "run_stopped"
	RunError     Type = "run_error"
)

// Terminal reports whether t ends a run.
func (t Type) Terminal() bool {
	return t == RunCompleted || t == RunStopped || t == RunError
}

// Event is one progress notification published by the scan coordinator.
type Event struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Type      Type      `json:"type"`
	RunID     string    `json:"run_id"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Found     int       `json:"found"`
	Failed    int       `json:"failed,omitempty"`
	Current   string    `json:"current,omitempty"`
	// Percent is -1 while the library total is unknown.
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// Hub stores recent events and wakes waiters when new events arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
}

// NewHub constructs a bounded in-memory event buffer.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 256
	}
	h := &Hub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish assigns a sequence number to evt and appends it.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		h.buffer = append(h.buffer[:0], h.buffer[1:]...)
	}
	h.buffer = append(h.buffer, evt)
	h.cond.Broadcast()
}

// Fetch returns up to limit events with sequence greater than since, along
// with the latest sequence number. When wait is true Fetch blocks until an
// event is available or ctx ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	if wait {
		stop := context.AfterFunc(ctx, func() {
			h.mu.Lock()
			h.cond.Broadcast()
			h.mu.Unlock()
		})
		defer stop()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		events := h.afterLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, h.nextSeq, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, h.nextSeq, err
		}
		h.cond.Wait()
	}
}

// Tail returns the most recent limit events without blocking.
func (h *Hub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > len(h.buffer) {
		limit = len(h.buffer)
	}
	out := make([]Event, limit)
	copy(out, h.buffer[len(h.buffer)-limit:])
	return out, h.nextSeq
}

// Latest returns the most recent event, if any.
func (h *Hub) Latest() (Event, bool) {
	events, _ := h.Tail(1)
	if len(events) == 0 {
		return Event{}, false
	}
	return events[0], true
}

func (h *Hub) afterLocked(since uint64, limit int) []Event {
	idx := sort.Search(len(h.buffer), func(i int) bool {
		return h.buffer[i].Sequence > since
	})
	if idx >= len(h.buffer) {
		return nil
	}
	end := min(idx+limit, len(h.buffer))
	out := make([]Event, end-idx)
	copy(out, h.buffer[idx:end])
	return out
}
