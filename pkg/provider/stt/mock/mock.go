// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that sessions are opened with the expected
// StreamConfig, and Session to feed controlled transcripts and inspect the
// audio that reached the recognizer.
//
// Example:
//
//	sess := mock.NewSession(4)
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.StartStream(ctx, cfg)
//	sess.EmitFinal("I led the migration to Go.")
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/intervue/pkg/provider/stt"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	Ctx context.Context
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is returned by StartStream. If nil, every call returns a new
	// Session with a buffer of 16.
	Session *Session

	// StartStreamErr, if non-nil, is returned by StartStream.
	StartStreamErr error

	calls    []StartStreamCall
	sessions []*Session
}

// StartStream records the call and returns Session or a fresh one.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	s := p.Session
	if s == nil {
		s = NewSession(16)
	}
	p.sessions = append(p.sessions, s)
	return s, nil
}

// Calls returns a copy of every recorded StartStream call.
func (p *Provider) Calls() []StartStreamCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// Sessions returns every session handed out, in order.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.sessions)
}

// Session is a mock implementation of stt.SessionHandle. It owns its
// channels and closes them on Close.
type Session struct {
	mu sync.Mutex

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	partials chan stt.Transcript
	finals   chan stt.Transcript
	closed   bool

	chunks     [][]byte
	closeCalls int
}

// NewSession returns a session whose channels buffer n transcripts.
func NewSession(n int) *Session {
	return &Session{
		partials: make(chan stt.Transcript, n),
		finals:   make(chan stt.Transcript, n),
	}
}

// EmitPartial publishes an interim transcript. It is a no-op after Close.
func (s *Session) EmitPartial(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.partials <- stt.Transcript{Text: text}
	}
}

// EmitFinal publishes a final transcript. It is a no-op after Close.
func (s *Session) EmitFinal(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.finals <- stt.Transcript{Text: text, IsFinal: true}
	}
}

// SendAudio records a copy of chunk and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stt.ErrSessionClosed
	}
	s.chunks = append(s.chunks, slices.Clone(chunk))
	return s.SendAudioErr
}

// Partials implements stt.SessionHandle.
func (s *Session) Partials() <-chan stt.Transcript { return s.partials }

// Finals implements stt.SessionHandle.
func (s *Session) Finals() <-chan stt.Transcript { return s.finals }

// Close closes both channels once and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if !s.closed {
		s.closed = true
		close(s.partials)
		close(s.finals)
	}
	return s.CloseErr
}

// Chunks returns copies of every chunk passed to SendAudio.
func (s *Session) Chunks() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.chunks)
}

// CloseCalls returns how many times Close was called.
func (s *Session) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*Session)(nil)
)
