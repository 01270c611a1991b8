package interview

import (
	"context"
	"sync"
)

// Handoff is the unbounded FIFO that carries finalized utterances from a
// session's transcription worker to its integrator. It has exactly one
// producer and one consumer.
//
// Submit never blocks, so a slow integrator cannot stall the recognizer.
type Handoff struct {
	mu     sync.Mutex
	items  []string
	notify chan struct{}
	closed bool
}

// NewHandoff returns an empty, open queue.
func NewHandoff() *Handoff {
	return &Handoff{notify: make(chan struct{}, 1)}
}

// Submit enqueues text and wakes the consumer. It returns false if the queue
// has been closed, in which case text is discarded.
func (h *Handoff) Submit(text string) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.items = append(h.items, text)
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until an utterance is available or ctx is done.
func (h *Handoff) Next(ctx context.Context) (string, error) {
	for {
		h.mu.Lock()
		if len(h.items) > 0 {
			text := h.items[0]
			h.items[0] = ""
			h.items = h.items[1:]
			h.mu.Unlock()
			return text, nil
		}
		h.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-h.notify:
		}
	}
}

// Len returns the number of queued utterances.
func (h *Handoff) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// Drain discards every queued utterance and returns how many were dropped.
func (h *Handoff) Drain() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.items)
	h.items = nil
	return n
}

// Close rejects all further submissions. Already queued items stay until
// drained.
func (h *Handoff) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}
