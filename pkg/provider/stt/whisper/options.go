package whisper

import (
	"net/http"
	"time"

	"github.com/MrWong99/intervue/pkg/provider/stt"
)

const (
	defaultLanguage       = "zh"
	defaultSampleRate     = 16000
	defaultSilenceMs      = 700
	defaultMaxUtteranceMs = 10_000
)

// settings is shared by [Provider] and [NativeProvider]. Fields a backend
// has no use for are ignored.
type settings struct {
	language       string
	sampleRate     int
	silenceMs      int
	maxUtteranceMs int

	modelName  string       // HTTP only
	httpClient *http.Client // HTTP only
	threads    uint         // native only
}

func newSettings(opts []Option) settings {
	s := settings{
		language:       defaultLanguage,
		sampleRate:     defaultSampleRate,
		silenceMs:      defaultSilenceMs,
		maxUtteranceMs: defaultMaxUtteranceMs,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Option configures either provider.
type Option func(*settings)

// WithLanguage sets the default language. Defaults to "zh".
func WithLanguage(lang string) Option {
	return func(s *settings) { s.language = lang }
}

// WithSampleRate sets the default input sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(s *settings) { s.sampleRate = rate }
}

// WithSilenceThresholdMs sets the trailing silence that ends an utterance.
// Defaults to 700 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(s *settings) { s.silenceMs = ms }
}

// WithMaxUtteranceMs caps how much audio is buffered before an utterance is
// cut and transcribed without waiting for silence. Defaults to 10 s.
func WithMaxUtteranceMs(ms int) Option {
	return func(s *settings) { s.maxUtteranceMs = ms }
}

// WithModel names the model the whisper-server should load for a request.
func WithModel(model string) Option {
	return func(s *settings) { s.modelName = model }
}

// WithHTTPClient replaces the client used to reach whisper-server.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithThreads sets CPU threads per in-process inference. Zero keeps the
// whisper.cpp default.
func WithThreads(n uint) Option {
	return func(s *settings) { s.threads = n }
}

// resolve fills zero fields of cfg from s.
func (s settings) resolve(cfg stt.StreamConfig) stt.StreamConfig {
	if cfg.Language == "" {
		cfg.Language = s.language
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = s.sampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.SilenceMs <= 0 {
		cfg.SilenceMs = s.silenceMs
	}
	return cfg
}

func (s settings) segmenter(cfg stt.StreamConfig) *segmenter {
	return newSegmenter(cfg.SampleRate, cfg.Channels, cfg.SilenceMs, s.maxUtteranceMs)
}
