// Package config provides the configuration schema, loader, watcher and
// provider registry of the intervue server.
package config

import (
	"time"

	"github.com/MrWong99/intervue/internal/interview"
	"github.com/MrWong99/intervue/pkg/provider/stt"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the log handler.
type LogFormat string

const (
	LogFormatJSON   LogFormat = "json"
	LogFormatText   LogFormat = "text"
	LogFormatPretty LogFormat = "pretty"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	switch f {
	case LogFormatJSON, LogFormatText, LogFormatPretty:
		return true
	}
	return false
}

// StorageDriver selects the bookkeeping store backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"
	StoragePostgres StorageDriver = "postgres"
	StorageSQLite   StorageDriver = "sqlite"
)

// IsValid reports whether d is a recognised storage driver.
func (d StorageDriver) IsValid() bool {
	switch d {
	case StorageMemory, StoragePostgres, StorageSQLite:
		return true
	}
	return false
}

// Defaults applied by [Config.ApplyDefaults].
const (
	DefaultListenAddr          = ":8000"
	DefaultShutdownTimeout     = 15 * time.Second
	DefaultFrameBufferCapacity = 500
	DefaultLanguage            = "zh"
	DefaultSampleRate          = 16000
	DefaultSilenceMs           = 700
	DefaultEvaluationTimeout   = 30 * time.Second
	DefaultTemperature         = 0.7
	DefaultMaxTokens           = 4000
	DefaultMaxRetries          = 3
	DefaultLLMTimeout          = 30 * time.Second
	DefaultSubjectPrefix       = "intervue"
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Interview InterviewConfig `yaml:"interview"`
	LLM       LLMConfig       `yaml:"llm"`
	Prompts   PromptsConfig   `yaml:"prompts"`
	Storage   StorageConfig   `yaml:"storage"`
	Events    EventsConfig    `yaml:"events"`
	Transport TransportConfig `yaml:"transport"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8000").
	ListenAddr string `yaml:"listen_addr"`

	LogLevel  LogLevel  `yaml:"log_level"`
	LogFormat LogFormat `yaml:"log_format"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// stage. Each field selects a named provider registered in the [Registry].
// The fallback entries are optional.
type ProvidersConfig struct {
	LLM         ProviderEntry `yaml:"llm"`
	LLMFallback ProviderEntry `yaml:"llm_fallback"`
	STT         ProviderEntry `yaml:"stt"`
	STTFallback ProviderEntry `yaml:"stt_fallback"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o", "nova-2").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the fields above.
	Options map[string]any `yaml:"options"`
}

// InterviewConfig tunes the live session pipeline.
type InterviewConfig struct {
	FrameBufferCapacity int           `yaml:"frame_buffer_capacity"`
	WorkerStopTimeout   time.Duration `yaml:"worker_stop_timeout"`

	// Language, SampleRate and SilenceMs configure the recognizer stream.
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
	SilenceMs  int    `yaml:"silence_ms"`

	// Vocabulary lists domain terms (technologies, product names) that the
	// recognizer is biased towards and that misheard answers are corrected to.
	Vocabulary []string `yaml:"vocabulary"`

	EvaluationTimeout time.Duration  `yaml:"evaluation_timeout"`
	FollowUp          FollowUpConfig `yaml:"follow_up"`
}

// FollowUpConfig mirrors [interview.FollowUpPolicy]. It is hot-reloadable.
type FollowUpConfig struct {
	// MinAnswerRunes defaults to 15. A negative value disables the length
	// rule.
	MinAnswerRunes int      `yaml:"min_answer_runes"`
	HedgeMarkers   []string `yaml:"hedge_markers"`
}

// LLMConfig holds generation parameters shared by every assessment call.
type LLMConfig struct {
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	MaxRetries  int           `yaml:"max_retries"`
	Timeout     time.Duration `yaml:"timeout"`
}

// PromptsConfig points at an optional prompt template override file. It is
// hot-reloadable.
type PromptsConfig struct {
	File string `yaml:"file"`
}

// StorageConfig selects the bookkeeping store.
type StorageConfig struct {
	Driver      StorageDriver `yaml:"driver"`
	PostgresDSN string        `yaml:"postgres_dsn"`
	SQLitePath  string        `yaml:"sqlite_path"`
}

// EventsConfig configures event publishing. An empty NATSURL disables it.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// TransportConfig configures the WebSocket origin checks.
type TransportConfig struct {
	OriginPatterns     []string `yaml:"origin_patterns"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = LogFormatText
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	iv := &c.Interview
	if iv.FrameBufferCapacity == 0 {
		iv.FrameBufferCapacity = DefaultFrameBufferCapacity
	}
	if iv.WorkerStopTimeout == 0 {
		iv.WorkerStopTimeout = interview.DefaultWorkerStopTimeout
	}
	if iv.Language == "" {
		iv.Language = DefaultLanguage
	}
	if iv.SampleRate == 0 {
		iv.SampleRate = DefaultSampleRate
	}
	if iv.SilenceMs == 0 {
		iv.SilenceMs = DefaultSilenceMs
	}
	if iv.EvaluationTimeout == 0 {
		iv.EvaluationTimeout = DefaultEvaluationTimeout
	}
	if iv.FollowUp.MinAnswerRunes == 0 {
		iv.FollowUp.MinAnswerRunes = interview.DefaultMinAnswerRunes
	}
	if iv.FollowUp.HedgeMarkers == nil {
		iv.FollowUp.HedgeMarkers = append([]string(nil), interview.DefaultHedgeMarkers...)
	}

	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = DefaultTemperature
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = DefaultMaxTokens
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = DefaultMaxRetries
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = DefaultLLMTimeout
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageMemory
	}
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = DefaultSubjectPrefix
	}
}

// FollowUpPolicy returns the configured follow-up policy.
func (c *Config) FollowUpPolicy() interview.FollowUpPolicy {
	return interview.FollowUpPolicy{
		MinAnswerRunes: c.Interview.FollowUp.MinAnswerRunes,
		HedgeMarkers:   append([]string(nil), c.Interview.FollowUp.HedgeMarkers...),
	}
}

// StreamConfig returns the recognizer stream settings for one session.
func (c *Config) StreamConfig() stt.StreamConfig {
	iv := c.Interview
	cfg := stt.StreamConfig{
		SampleRate: iv.SampleRate,
		Channels:   1,
		Language:   iv.Language,
		SilenceMs:  iv.SilenceMs,
	}
	for _, term := range iv.Vocabulary {
		cfg.Keywords = append(cfg.Keywords, stt.KeywordBoost{Keyword: term})
	}
	return cfg
}

// SessionConfig returns the per-session pipeline settings.
func (c *Config) SessionConfig() interview.SessionConfig {
	return interview.SessionConfig{
		FrameBufferCapacity: c.Interview.FrameBufferCapacity,
		WorkerStopTimeout:   c.Interview.WorkerStopTimeout,
		EvaluationTimeout:   c.Interview.EvaluationTimeout,
	}
}
