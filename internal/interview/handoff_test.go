package interview_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/intervue/internal/interview"
)

func TestHandoff_FIFO(t *testing.T) {
	t.Parallel()

	h := interview.NewHandoff()
	for _, s := range []string{"one", "two", "three"} {
		if !h.Submit(s) {
			t.Fatalf("Submit(%q) = false, want true", s)
		}
	}

	ctx := context.Background()
	for _, want := range []string{"one", "two", "three"} {
		got, err := h.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if got != want {
			t.Errorf("Next() = %q, want %q", got, want)
		}
	}
}

func TestHandoff_NextWakesOnSubmit(t *testing.T) {
	t.Parallel()

	h := interview.NewHandoff()
	got := make(chan string, 1)
	go func() {
		s, _ := h.Next(context.Background())
		got <- s
	}()

	time.Sleep(10 * time.Millisecond)
	h.Submit("hello")

	select {
	case s := <-got:
		if s != "hello" {
			t.Errorf("Next() = %q, want %q", s, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next() did not wake after Submit")
	}
}

func TestHandoff_NextHonoursCancellation(t *testing.T) {
	t.Parallel()

	h := interview.NewHandoff()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
}

func TestHandoff_CloseAndDrain(t *testing.T) {
	t.Parallel()

	h := interview.NewHandoff()
	h.Submit("a")
	h.Submit("b")
	h.Close()

	if h.Submit("c") {
		t.Error("Submit() after Close = true, want false")
	}
	if n := h.Drain(); n != 2 {
		t.Errorf("Drain() = %d, want 2", n)
	}
	if h.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", h.Len())
	}
}
