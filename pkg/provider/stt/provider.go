// Package stt defines the streaming speech-to-text abstraction consumed by
// the interview pipeline.
//
// A [Provider] opens one [SessionHandle] per interview session. Audio is
// pushed with SendAudio; recognized text comes back on two channels:
// Partials carries interim hypotheses and Finals carries finalized
// sentences. The interview transcription worker treats each final as one
// utterance.
//
// Implementations must be safe for concurrent use. SendAudio is called from
// transport goroutines and must never block: when the provider cannot keep
// up it returns [ErrAudioOverflow] and drops the chunk.
package stt

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAudioOverflow is returned by SendAudio when the session's input
	// buffer is full.
	ErrAudioOverflow = errors.New("stt: audio buffer full")

	// ErrSessionClosed is returned by SendAudio after Close.
	ErrSessionClosed = errors.New("stt: session closed")
)

// StreamConfig configures a single recognition stream. Zero values select
// provider defaults.
type StreamConfig struct {
	// SampleRate of the incoming PCM16 audio in Hz.
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int

	// Language is a BCP-47 code such as "zh" or "en".
	Language string

	// SilenceMs is the trailing silence that ends an utterance, for
	// providers that endpoint locally.
	SilenceMs int

	// Keywords are domain terms the recognizer should favour.
	Keywords []KeywordBoost
}

// SessionHandle is a live recognition stream.
type SessionHandle interface {
	// SendAudio queues a chunk of raw PCM16 little-endian audio. It must not
	// block.
	SendAudio(chunk []byte) error

	// Partials emits interim transcripts. It is closed when the session
	// ends.
	Partials() <-chan Transcript

	// Finals emits finalized transcripts. It is closed when the session
	// ends.
	Finals() <-chan Transcript

	// Close ends the stream and closes both channels. It is idempotent.
	Close() error
}

// Provider opens recognition streams.
type Provider interface {
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

// Transcript is recognized text for a span of the audio stream.
type Transcript struct {
	Text string

	// IsFinal marks a finished sentence. Partials are superseded by the
	// next partial or final.
	IsFinal bool

	// Confidence is in [0, 1], or zero when unreported.
	Confidence float64

	Words []Word

	// Timestamp is the start offset from the beginning of the stream.
	Timestamp time.Duration
	Duration  time.Duration
}

// End is the offset where the transcript's audio ends.
func (t Transcript) End() time.Duration { return t.Timestamp + t.Duration }

// Word is one recognized token with its timing.
type Word struct {
	Text       string
	Start, End time.Duration
	Confidence float64
}

// KeywordBoost is a domain term with an optional provider-specific weight.
// A zero Boost leaves weighting to the provider.
type KeywordBoost struct {
	Keyword string
	Boost   float64
}
