package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// DefaultWorkerStopTimeout bounds how long [Worker.Stop] waits for the
// recognition goroutine to exit.
const DefaultWorkerStopTimeout = 2 * time.Second

// Worker drives a blocking [Recognizer] on a dedicated goroutine and hands
// every finalized utterance to a [Handoff].
//
// The goroutine is locked to its OS thread for its whole life because
// recognizers may block inside cgo for seconds at a time.
type Worker struct {
	sessionID   string
	rec         Recognizer
	out         *Handoff
	stopTimeout time.Duration
	observer    Observer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// mu guards stopped and the delivery step, so that no utterance can be
	// submitted once Stop has observed the lock.
	mu      sync.Mutex
	stopped bool

	startOnce sync.Once
	stopOnce  sync.Once
	stopErr   error
}

// NewWorker returns a worker that is not yet running. Call [Worker.Start].
func NewWorker(sessionID string, rec Recognizer, out *Handoff, stopTimeout time.Duration, obs Observer) *Worker {
	if stopTimeout <= 0 {
		stopTimeout = DefaultWorkerStopTimeout
	}
	if obs == nil {
		obs = NopObserver{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		sessionID:   sessionID,
		rec:         rec,
		out:         out,
		stopTimeout: stopTimeout,
		observer:    obs,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Start launches the recognition goroutine. Subsequent calls are no-ops.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		go w.loop()
	})
}

// Feed forwards a chunk of audio to the recognizer without blocking.
func (w *Worker) Feed(chunk []byte) error {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return ErrWorkerStopped
	}
	if err := w.rec.Feed(chunk); err != nil {
		return fmt.Errorf("interview: feed audio: %w", err)
	}
	return nil
}

// Stop signals the recognition loop, stops the recognizer, and waits up to
// the configured timeout for both the recognizer's Stop and the goroutine to
// return. A stall is logged and returned as [ErrWorkerStallTimeout]; the
// goroutine is left behind.
//
// Stop is idempotent.
func (w *Worker) Stop() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()

		w.cancel()

		// Recognizer Stop may flush a final inference through cgo, so it
		// shares the deadline with the loop instead of running inline.
		recStopped := make(chan struct{})
		go func() {
			defer close(recStopped)
			if err := w.rec.Stop(); err != nil {
				slog.Warn("recognizer stop failed", "session_id", w.sessionID, "err", err)
			}
		}()

		// Never started: done is closed here and only Stop is joined.
		w.startOnce.Do(func() { close(w.done) })

		deadline := time.NewTimer(w.stopTimeout)
		defer deadline.Stop()
		for _, ch := range []<-chan struct{}{w.done, recStopped} {
			select {
			case <-ch:
			case <-deadline.C:
				w.stopErr = fmt.Errorf("%w: after %s", ErrWorkerStallTimeout, w.stopTimeout)
				slog.Error("transcription worker leaked",
					"session_id", w.sessionID,
					"timeout", w.stopTimeout,
					"err", w.stopErr,
				)
				w.observer.WorkerLeaked(w.sessionID)
				return
			}
		}
	})
	return w.stopErr
}

// Done is closed when the recognition goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("transcription worker panicked", "session_id", w.sessionID, "panic", r)
		}
	}()

	for {
		text, err := w.rec.NextUtterance(w.ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, ErrRecognizerClosed):
				slog.Debug("transcription worker exiting", "session_id", w.sessionID)
			default:
				slog.Error("transcription worker failed", "session_id", w.sessionID, "err", err)
			}
			return
		}
		if !w.deliver(text) {
			return
		}
	}
}

// deliver submits text unless Stop has already begun. It reports whether the
// loop should keep running.
func (w *Worker) deliver(text string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		slog.Debug("dropping utterance after stop", "session_id", w.sessionID)
		w.observer.UtteranceDropped(w.sessionID)
		return false
	}
	if !w.out.Submit(text) {
		w.observer.UtteranceDropped(w.sessionID)
		return false
	}
	w.observer.UtteranceDelivered(w.sessionID)
	return true
}
