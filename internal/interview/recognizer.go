package interview

import (
	"context"
	"strings"

	"github.com/MrWong99/intervue/pkg/provider/stt"
)

// Recognizer is the blocking speech-to-text capability consumed by a
// [Worker]. Implementations must be safe for Feed to be called concurrently
// with NextUtterance.
type Recognizer interface {
	// Feed hands a chunk of raw audio to the recognizer. It must not block.
	Feed(chunk []byte) error

	// NextUtterance blocks until a finalized sentence is available, ctx is
	// done, or the recognizer is stopped. After Stop it returns
	// [ErrRecognizerClosed].
	NextUtterance(ctx context.Context) (string, error)

	// Stop releases the recognizer and unblocks NextUtterance.
	Stop() error
}

// RecognizerFactory opens a recognizer for a newly created session.
type RecognizerFactory func(ctx context.Context, sessionID string) (Recognizer, error)

// streamRecognizer adapts a streaming [stt.SessionHandle] to [Recognizer].
// Finals are the utterance boundary; partials are ignored.
type streamRecognizer struct {
	handle  stt.SessionHandle
	correct func(string) string
}

// StreamOption configures a stream-backed [Recognizer].
type StreamOption func(*streamRecognizer)

// WithCorrection rewrites every final transcript with fn before it is
// returned as an utterance. Utterances that become blank are skipped.
func WithCorrection(fn func(text string) string) StreamOption {
	return func(r *streamRecognizer) { r.correct = fn }
}

// NewStreamRecognizer wraps handle so that its final transcripts are
// returned one by one from NextUtterance.
func NewStreamRecognizer(handle stt.SessionHandle, opts ...StreamOption) Recognizer {
	r := &streamRecognizer{handle: handle}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ProviderRecognizerFactory returns a [RecognizerFactory] that opens one
// stream per session on p.
func ProviderRecognizerFactory(p stt.Provider, cfg stt.StreamConfig, opts ...StreamOption) RecognizerFactory {
	return func(ctx context.Context, _ string) (Recognizer, error) {
		handle, err := p.StartStream(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewStreamRecognizer(handle, opts...), nil
	}
}

func (r *streamRecognizer) Feed(chunk []byte) error {
	return r.handle.SendAudio(chunk)
}

func (r *streamRecognizer) NextUtterance(ctx context.Context) (string, error) {
	finals := r.handle.Finals()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case t, ok := <-finals:
			if !ok {
				return "", ErrRecognizerClosed
			}
			text := strings.TrimSpace(t.Text)
			if r.correct != nil && text != "" {
				text = strings.TrimSpace(r.correct(text))
			}
			if text == "" {
				continue
			}
			return text, nil
		}
	}
}

func (r *streamRecognizer) Stop() error {
	return r.handle.Close()
}
