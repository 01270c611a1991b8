package interview

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a [Session].
type State int32

const (
	// StateActive accepts feeds and endpoint attachments.
	StateActive State = iota

	// StateClosing is entered when cleanup begins. Feeds fail with
	// [ErrNotFound].
	StateClosing

	// StateClosed is terminal; the session has been removed from its
	// registry.
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Kind names the media kind of an endpoint.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// SessionConfig holds the per-session tunables.
type SessionConfig struct {
	FrameBufferCapacity int
	WorkerStopTimeout   time.Duration

	// EvaluationTimeout bounds each evaluator and questioner call. Zero
	// means no timeout beyond the session's own lifetime.
	EvaluationTimeout time.Duration
}

// Session is the per-interview aggregate. It owns a frame buffer, the
// utterance handoff queue, a transcription worker, and a single integrator
// goroutine.
type Session struct {
	id        string
	createdAt time.Time
	state     atomic.Int32

	// lifecycle serializes attach, detach and cleanup. Feeds never take it.
	lifecycle sync.Mutex

	epMu  sync.RWMutex
	audio Endpoint
	video Endpoint

	frames   *FrameBuffer
	handoff  *Handoff
	worker   *Worker
	record   *Record
	observer Observer

	cancelIntegrator context.CancelFunc
	integratorDone   chan struct{}
}

func newSession(id string, rec Recognizer, cfg SessionConfig, deps integratorDeps, obs Observer) *Session {
	s := &Session{
		id:             id,
		createdAt:      time.Now(),
		frames:         NewFrameBuffer(cfg.FrameBufferCapacity),
		handoff:        NewHandoff(),
		record:         &Record{},
		observer:       obs,
		integratorDone: make(chan struct{}),
	}
	s.worker = NewWorker(id, rec, s.handoff, cfg.WorkerStopTimeout, obs)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelIntegrator = cancel
	in := &integrator{
		session:     s,
		deps:        deps,
		evalTimeout: cfg.EvaluationTimeout,
	}
	s.worker.Start()
	go func() {
		defer close(s.integratorDone)
		in.run(ctx)
	}()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// FeedAudio forwards a chunk of audio to the transcription worker without
// blocking.
func (s *Session) FeedAudio(chunk []byte) error {
	if s.State() != StateActive {
		return fmt.Errorf("%w: %s", ErrNotFound, s.id)
	}
	return s.worker.Feed(chunk)
}

// FeedFrame buffers a video frame without blocking.
func (s *Session) FeedFrame(payload []byte, timestamp float64) error {
	if s.State() != StateActive {
		return fmt.Errorf("%w: %s", ErrNotFound, s.id)
	}
	evicted := s.frames.Push(timestamp, payload)
	s.observer.FrameReceived(s.id, evicted)
	return nil
}

// SetCurrentQuestion sets the question subsequent answers are evaluated
// against. The integrator picks it up on its next cycle.
func (s *Session) SetCurrentQuestion(q string) { s.record.SetCurrentQuestion(q) }

// AskQuestion sets q as the current question and records it as asked.
func (s *Session) AskQuestion(q string) { s.record.AskQuestion(q) }

// SetPersona sets the interviewer persona used for follow-up questions.
func (s *Session) SetPersona(p string) { s.record.SetPersona(p) }

// Snapshot returns a copy of the interview record.
func (s *Session) Snapshot() RecordSnapshot { return s.record.Snapshot() }

// Summary returns the record's counters.
func (s *Session) Summary() Summary { return s.record.Summary() }

// Frames exposes the session's frame buffer.
func (s *Session) Frames() *FrameBuffer { return s.frames }

// Attached reports which endpoints are currently attached.
func (s *Session) Attached() (audio, video bool) {
	s.epMu.RLock()
	defer s.epMu.RUnlock()
	return s.audio != nil, s.video != nil
}

// outbound returns the endpoint follow-up questions are pushed to. The video
// endpoint carries text to the client, so it is preferred.
func (s *Session) outbound() Endpoint {
	s.epMu.RLock()
	defer s.epMu.RUnlock()
	if s.video != nil {
		return s.video
	}
	return s.audio
}

// attach installs ep as the endpoint of the given kind and returns the
// endpoint it replaced, or nil. It must be called with s.lifecycle held.
func (s *Session) attach(kind Kind, ep Endpoint) (Endpoint, error) {
	if s.State() != StateActive {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.id)
	}
	s.epMu.Lock()
	defer s.epMu.Unlock()
	var old Endpoint
	switch kind {
	case KindAudio:
		old, s.audio = s.audio, ep
	case KindVideo:
		old, s.video = s.video, ep
	}
	return old, nil
}

// detach clears the endpoint of the given kind if it is still ep. It reports
// whether ep was the attached endpoint and whether none remains afterwards.
// A superseded endpoint detaching is a no-op. It must be called with
// s.lifecycle held.
func (s *Session) detach(kind Kind, ep Endpoint) (current, empty bool) {
	s.epMu.Lock()
	defer s.epMu.Unlock()
	switch kind {
	case KindAudio:
		if current = s.audio == ep; current {
			s.audio = nil
		}
	case KindVideo:
		if current = s.video == ep; current {
			s.video = nil
		}
	}
	return current, s.audio == nil && s.video == nil
}

// shutdown tears the session down. It must be called with s.lifecycle held
// and reports false if the session was already closing or closed.
func (s *Session) shutdown(ctx context.Context) bool {
	if !s.state.CompareAndSwap(int32(StateActive), int32(StateClosing)) {
		return false
	}

	s.cancelIntegrator()
	select {
	case <-s.integratorDone:
	case <-ctx.Done():
		// The integrator's collaborator calls already see a cancelled
		// context. Closed must never be observed while it can still write
		// to the record, so keep waiting.
		slog.Warn("integrator still running past cleanup deadline", "session_id", s.id, "err", ctx.Err())
		<-s.integratorDone
	}

	if err := s.worker.Stop(); err != nil {
		slog.Warn("transcription worker stop", "session_id", s.id, "err", err)
		go func(id string, done <-chan struct{}) {
			<-done
			slog.Info("leaked transcription worker exited", "session_id", id)
		}(s.id, s.worker.Done())
	}

	s.frames.Clear()
	s.handoff.Close()
	if n := s.handoff.Drain(); n > 0 {
		slog.Debug("discarded queued utterances", "session_id", s.id, "count", n)
	}

	s.epMu.Lock()
	s.audio, s.video = nil, nil
	s.epMu.Unlock()
	return true
}

func (s *Session) markClosed() { s.state.Store(int32(StateClosed)) }
