// Package interview implements the live, per-session pipeline of an
// interview: audio is transcribed into utterances on a dedicated worker,
// video frames are buffered, and an integrator pairs the two and drives
// evaluation and follow-up questions.
//
// A [Registry] owns every live [Session]. It is safe for concurrent use from
// HTTP handlers and transport receive loops.
package interview

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Option configures a [Registry].
type Option func(*Registry)

// WithEvaluator sets the evaluator used by every session's integrator.
func WithEvaluator(e Evaluator) Option {
	return func(r *Registry) { r.deps.evaluator = e }
}

// WithQuestioner sets the follow-up question generator.
func WithQuestioner(q Questioner) Option {
	return func(r *Registry) { r.deps.questioner = q }
}

// WithObserver sets the observer notified of pipeline events.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithSessionConfig sets the tunables applied to new sessions.
func WithSessionConfig(cfg SessionConfig) Option {
	return func(r *Registry) { r.cfg = cfg }
}

// WithFollowUpPolicy sets the initial follow-up policy.
func WithFollowUpPolicy(p FollowUpPolicy) Option {
	return func(r *Registry) { r.policy.Store(&p) }
}

// Registry is the process-wide table of live sessions.
type Registry struct {
	newRecognizer RecognizerFactory
	cfg           SessionConfig
	deps          integratorDeps
	observer      Observer
	policy        atomic.Pointer[FollowUpPolicy]

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. newRecognizer is called once per
// created session.
func NewRegistry(newRecognizer RecognizerFactory, opts ...Option) *Registry {
	r := &Registry{
		newRecognizer: newRecognizer,
		observer:      NopObserver{},
		sessions:      make(map[string]*Session),
	}
	p := DefaultFollowUpPolicy()
	r.policy.Store(&p)
	for _, o := range opts {
		o(r)
	}
	r.deps.observer = r.observer
	r.deps.policy = r.FollowUpPolicy
	return r
}

// FollowUpPolicy returns the policy currently applied by integrators.
func (r *Registry) FollowUpPolicy() FollowUpPolicy { return *r.policy.Load() }

// SetFollowUpPolicy replaces the follow-up policy. Running integrators use
// it from their next cycle on.
func (r *Registry) SetFollowUpPolicy(p FollowUpPolicy) { r.policy.Store(&p) }

// Create registers a new session with the given id and starts its worker
// and integrator. It returns [ErrAlreadyExists] if the id is taken.
func (r *Registry) Create(ctx context.Context, id string) (*Session, error) {
	if _, err := r.Get(id); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}

	// The recognizer may dial out, so it is opened without holding r.mu and
	// the id is checked again afterwards.
	rec, err := r.newRecognizer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("interview: open recognizer for %s: %w", id, err)
	}

	r.mu.Lock()
	if _, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		if err := rec.Stop(); err != nil {
			slog.Warn("recognizer stop failed", "session_id", id, "err", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	s := newSession(id, rec, r.cfg, r.deps, r.observer)
	r.sessions[id] = s
	r.mu.Unlock()

	slog.Info("session created", "session_id", id)
	r.observer.SessionCreated(id)
	return s, nil
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// IDs returns the ids of all registered sessions, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// AttachAudio attaches the audio endpoint of session id. An endpoint already
// attached for audio is replaced and, if it implements [io.Closer], closed.
func (r *Registry) AttachAudio(id string, ep Endpoint) error {
	return r.attach(id, KindAudio, ep)
}

// AttachVideo attaches the video endpoint of session id. An endpoint already
// attached for video is replaced and, if it implements [io.Closer], closed.
func (r *Registry) AttachVideo(id string, ep Endpoint) error {
	return r.attach(id, KindVideo, ep)
}

func (r *Registry) attach(id string, kind Kind, ep Endpoint) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	s.lifecycle.Lock()
	old, err := s.attach(kind, ep)
	s.lifecycle.Unlock()
	if err != nil {
		return err
	}
	slog.Info("endpoint attached", "session_id", id, "kind", kind, "replaced", old != nil)

	if c, ok := old.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Debug("closing replaced endpoint", "session_id", id, "kind", kind, "err", err)
		}
	}
	return nil
}

// DetachAudio detaches audio endpoint ep of session id. It is a no-op for
// unknown ids and for an endpoint that has since been replaced. When no
// endpoint remains, the session is cleaned up.
func (r *Registry) DetachAudio(ctx context.Context, id string, ep Endpoint) {
	r.detach(ctx, id, KindAudio, ep)
}

// DetachVideo detaches video endpoint ep of session id. It is a no-op for
// unknown ids and for an endpoint that has since been replaced. When no
// endpoint remains, the session is cleaned up.
func (r *Registry) DetachVideo(ctx context.Context, id string, ep Endpoint) {
	r.detach(ctx, id, KindVideo, ep)
}

func (r *Registry) detach(ctx context.Context, id string, kind Kind, ep Endpoint) {
	s, err := r.Get(id)
	if err != nil {
		return
	}
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	current, empty := s.detach(kind, ep)
	if !current {
		slog.Debug("stale endpoint detached", "session_id", id, "kind", kind)
		return
	}
	slog.Info("endpoint detached", "session_id", id, "kind", kind)
	if empty {
		r.cleanupLocked(ctx, s)
	}
}

// FeedAudio forwards an audio chunk to session id without blocking.
func (r *Registry) FeedAudio(id string, chunk []byte) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	return s.FeedAudio(chunk)
}

// FeedFrame buffers a video frame for session id without blocking.
func (r *Registry) FeedFrame(id string, payload []byte, timestamp float64) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	return s.FeedFrame(payload, timestamp)
}

// Cleanup cancels and awaits the integrator, stops the worker, clears the
// frame buffer, drains the utterance queue, and removes the session. It is
// idempotent: unknown or already cleaned-up ids return nil.
func (r *Registry) Cleanup(ctx context.Context, id string) error {
	s, err := r.Get(id)
	if err != nil {
		return nil
	}
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	r.cleanupLocked(ctx, s)
	return nil
}

// cleanupLocked must be called with s.lifecycle held.
func (r *Registry) cleanupLocked(ctx context.Context, s *Session) {
	if !s.shutdown(ctx) {
		return
	}

	r.mu.Lock()
	if cur, ok := r.sessions[s.id]; ok && cur == s {
		delete(r.sessions, s.id)
	}
	r.mu.Unlock()

	s.markClosed()
	slog.Info("session cleaned up", "session_id", s.id)
	r.observer.SessionClosed(s.id)
}

// Shutdown cleans up every registered session concurrently.
func (r *Registry) Shutdown(ctx context.Context) error {
	var g errgroup.Group
	for _, id := range r.IDs() {
		g.Go(func() error { return r.Cleanup(ctx, id) })
	}
	return g.Wait()
}
