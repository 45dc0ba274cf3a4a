package main

import "sync"

const defaultHistoryCapacity = 20

// history keeps the most recent attack events, oldest first. It replaces the
// redis-backed counters of the scoring service with a bounded in-memory list.
type history struct {
	mu       sync.Mutex
	events   []AttackEvent
	capacity int
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}

	return &history{
		events:   make([]AttackEvent, 0, capacity),
		capacity: capacity,
	}
}

// Append adds e at the end and drops the oldest events beyond capacity.
// It returns the number of events evicted.
func (h *history) Append(e AttackEvent) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, e)

	evicted := len(h.events) - h.capacity
	if evicted <= 0 {
		return 0
	}

	// shift in place so the backing array does not grow forever
	n := copy(h.events, h.events[evicted:])
	h.events = h.events[:n]

	return evicted
}

func (h *history) List() []AttackEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]AttackEvent, len(h.events))
	copy(out, h.events)

	return out
}

func (h *history) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = h.events[:0]
}

func (h *history) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.events)
}
