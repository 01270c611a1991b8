package interview_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/intervue/internal/interview"
)

func TestFrameBuffer_EvictsOldestAndTakesLatest(t *testing.T) {
	t.Parallel()

	b := interview.NewFrameBuffer(2)
	if b.Push(0.0, []byte("a")) {
		t.Fatal("Push(0.0) reported eviction on empty buffer")
	}
	b.Push(1.0, []byte("b"))
	if !b.Push(2.0, []byte("c")) {
		t.Fatal("Push(2.0) did not report eviction on full buffer")
	}

	if got, want := b.Timestamps(), []float64{1.0, 2.0}; !slices.Equal(got, want) {
		t.Fatalf("Timestamps() = %v, want %v", got, want)
	}

	f, ok := b.TakeLatest()
	if !ok {
		t.Fatal("TakeLatest() returned empty")
	}
	if f.Timestamp != 2.0 || string(f.Payload) != "c" {
		t.Errorf("TakeLatest() = {%v %q}, want {2 \"c\"}", f.Timestamp, f.Payload)
	}
	if got, want := b.Timestamps(), []float64{1.0}; !slices.Equal(got, want) {
		t.Errorf("Timestamps() after take = %v, want %v", got, want)
	}
}

func TestFrameBuffer_NeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	b := interview.NewFrameBuffer(0)
	if b.Cap() != interview.DefaultFrameBufferCapacity {
		t.Fatalf("Cap() = %d, want %d", b.Cap(), interview.DefaultFrameBufferCapacity)
	}

	const pushes = 1234
	evictions := 0
	for i := range pushes {
		if b.Push(float64(i), nil) {
			evictions++
		}
		if b.Len() > b.Cap() {
			t.Fatalf("Len() = %d after %d pushes, exceeds capacity %d", b.Len(), i+1, b.Cap())
		}
	}
	if evictions != pushes-b.Cap() {
		t.Errorf("evictions = %d, want %d", evictions, pushes-b.Cap())
	}

	ts := b.Timestamps()
	if ts[0] != float64(pushes-b.Cap()) {
		t.Errorf("oldest retained = %v, want %v", ts[0], pushes-b.Cap())
	}
	if ts[len(ts)-1] != float64(pushes-1) {
		t.Errorf("newest retained = %v, want %v", ts[len(ts)-1], pushes-1)
	}
}

// Pairing deliberately uses the freshest frame. Repeated takes walk
// backwards through the buffer rather than forwards.
func TestFrameBuffer_TakeLatestIsLIFO(t *testing.T) {
	t.Parallel()

	b := interview.NewFrameBuffer(5)
	for i := range 4 {
		b.Push(float64(i), nil)
	}

	var got []float64
	for {
		f, ok := b.TakeLatest()
		if !ok {
			break
		}
		got = append(got, f.Timestamp)
	}
	if want := []float64{3, 2, 1, 0}; !slices.Equal(got, want) {
		t.Errorf("take order = %v, want %v", got, want)
	}
}

func TestFrameBuffer_TakeLatestRemovesOnlyThatEntry(t *testing.T) {
	t.Parallel()

	b := interview.NewFrameBuffer(3)
	// Wrap the ring so head is not at index zero.
	for i := range 5 {
		b.Push(float64(i), nil)
	}
	if _, ok := b.TakeLatest(); !ok {
		t.Fatal("TakeLatest() returned empty")
	}
	b.Push(9, nil)
	if got, want := b.Timestamps(), []float64{2, 3, 9}; !slices.Equal(got, want) {
		t.Errorf("Timestamps() = %v, want %v", got, want)
	}
}

func TestFrameBuffer_EmptyAndClear(t *testing.T) {
	t.Parallel()

	b := interview.NewFrameBuffer(3)
	if _, ok := b.TakeLatest(); ok {
		t.Fatal("TakeLatest() on empty buffer returned a frame")
	}
	b.Push(1, []byte("x"))
	b.Push(2, []byte("y"))
	b.Clear()
	if b.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", b.Len())
	}
	if _, ok := b.TakeLatest(); ok {
		t.Error("TakeLatest() after Clear returned a frame")
	}
	b.Push(3, nil)
	if got := b.Timestamps(); !slices.Equal(got, []float64{3}) {
		t.Errorf("Timestamps() after reuse = %v, want [3]", got)
	}
}
