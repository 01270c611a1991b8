package interview

import "sync"

// DefaultFrameBufferCapacity is the number of video frames a session retains
// when no capacity is configured.
const DefaultFrameBufferCapacity = 500

// Frame is a single video frame received from the video endpoint.
type Frame struct {
	// Timestamp is the client-reported capture time in seconds.
	Timestamp float64

	// Payload holds the encoded image bytes (typically JPEG).
	Payload []byte
}

// FrameBuffer is a bounded, session-scoped store of video frames.
//
// Frames are evicted from the oldest end when the buffer is full and taken
// from the newest end by [FrameBuffer.TakeLatest]. An answer is therefore
// always paired with the freshest frame available; older frames that are
// never taken age out through the capacity bound.
//
// FrameBuffer is safe for concurrent use.
type FrameBuffer struct {
	mu    sync.Mutex
	ring  []Frame
	head  int // index of the oldest entry
	count int
}

// NewFrameBuffer returns an empty buffer holding at most capacity frames.
// A non-positive capacity selects [DefaultFrameBufferCapacity].
func NewFrameBuffer(capacity int) *FrameBuffer {
	if capacity <= 0 {
		capacity = DefaultFrameBufferCapacity
	}
	return &FrameBuffer{ring: make([]Frame, capacity)}
}

// Push appends a frame. When the buffer is full the oldest frame is dropped
// first and evicted reports true.
func (b *FrameBuffer) Push(timestamp float64, payload []byte) (evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == len(b.ring) {
		b.ring[b.head] = Frame{}
		b.head = (b.head + 1) % len(b.ring)
		b.count--
		evicted = true
	}
	tail := (b.head + b.count) % len(b.ring)
	b.ring[tail] = Frame{Timestamp: timestamp, Payload: payload}
	b.count++
	return evicted
}

// TakeLatest removes and returns the most recently pushed frame. The second
// result is false when the buffer is empty.
func (b *FrameBuffer) TakeLatest() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return Frame{}, false
	}
	tail := (b.head + b.count - 1) % len(b.ring)
	f := b.ring[tail]
	b.ring[tail] = Frame{}
	b.count--
	return f, true
}

// Clear drops every buffered frame.
func (b *FrameBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.ring)
	b.head = 0
	b.count = 0
}

// Len returns the number of buffered frames.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the fixed capacity.
func (b *FrameBuffer) Cap() int { return len(b.ring) }

// Timestamps returns the buffered timestamps from oldest to newest.
func (b *FrameBuffer) Timestamps() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]float64, 0, b.count)
	for i := range b.count {
		out = append(out, b.ring[(b.head+i)%len(b.ring)].Timestamp)
	}
	return out
}
