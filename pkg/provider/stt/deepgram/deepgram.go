// Package deepgram streams interview audio to the Deepgram live
// transcription API over a websocket.
//
// Deepgram finalizes speech in short segments. The session joins the
// segments of one utterance and emits a single final when Deepgram reports
// speech_final or an UtteranceEnd event, so every final handed to the
// interview pipeline is one complete utterance.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/intervue/pkg/provider/stt"
)

const (
	deepgramEndpoint   = "wss://api.deepgram.com/v1/listen"
	defaultModel       = "nova-3"
	defaultLanguage    = "zh"
	defaultSampleRate  = 16000
	defaultUtteranceMs = 1500
	defaultKeepAlive   = 5 * time.Second
)

var _ stt.Provider = (*Provider)(nil)

type Option func(*Provider)

// WithModel selects the Deepgram model, e.g. "nova-3" or "base".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default BCP-47 language used when the stream
// config leaves it empty.
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithEndpoint overrides the streaming endpoint for self-hosted
// deployments and tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// WithUtteranceEnd sets the word gap, in milliseconds, after which Deepgram
// sends an UtteranceEnd event. Zero disables the event; utterances then end
// only on speech_final.
func WithUtteranceEnd(ms int) Option {
	return func(p *Provider) { p.utteranceMs = ms }
}

// WithKeepAlive sets how often a KeepAlive message is sent while no audio
// flows. Deepgram closes idle streams after about ten seconds, and
// candidates often pause longer than that while thinking.
func WithKeepAlive(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.keepAlive = d
		}
	}
}

type Provider struct {
	apiKey      string
	endpoint    string
	model       string
	language    string
	sampleRate  int
	utteranceMs int
	keepAlive   time.Duration
}

func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: api key must not be empty")
	}
	p := &Provider{
		apiKey:      apiKey,
		endpoint:    deepgramEndpoint,
		model:       defaultModel,
		language:    defaultLanguage,
		sampleRate:  defaultSampleRate,
		utteranceMs: defaultUtteranceMs,
		keepAlive:   defaultKeepAlive,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream dials Deepgram. The stream outlives ctx; Close ends it.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}
	hdr := http.Header{}
	hdr.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}
	return newSession(context.WithoutCancel(ctx), conn, p.keepAlive), nil
}

func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	rate := cfg.SampleRate
	if rate == 0 {
		rate = p.sampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(rate))
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}
	if cfg.SilenceMs > 0 {
		q.Set("endpointing", strconv.Itoa(cfg.SilenceMs))
	}
	if p.utteranceMs > 0 {
		q.Set("utterance_end_ms", strconv.Itoa(p.utteranceMs))
	}
	for _, kw := range cfg.Keywords {
		if kw.Boost == 0 {
			q.Add("keywords", kw.Keyword)
			continue
		}
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Keyword, kw.Boost))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
