package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram", "whisper", "whisper-native"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// problems collects validation failures.
type problems []error

func (p *problems) check(bad bool, format string, args ...any) {
	if bad {
		*p = append(*p, fmt.Errorf(format, args...))
	}
}

// Validate reports every incoherent value in cfg as one joined error.
// Unknown provider names only log a warning.
func Validate(cfg *Config) error {
	var errs problems

	srv := cfg.Server
	errs.check(srv.LogLevel != "" && !srv.LogLevel.IsValid(),
		"server.log_level %q is invalid; valid values: debug, info, warn, error", srv.LogLevel)
	errs.check(srv.LogFormat != "" && !srv.LogFormat.IsValid(),
		"server.log_format %q is invalid; valid values: json, text, pretty", srv.LogFormat)
	errs.check(srv.ShutdownTimeout < 0, "server.shutdown_timeout %s must not be negative", srv.ShutdownTimeout)
	errs.check(srv.TLS != nil && (srv.TLS.CertFile == "" || srv.TLS.KeyFile == ""),
		"server.tls requires both cert_file and key_file")

	pr := cfg.Providers
	for kind, names := range map[string][]string{
		"llm": {pr.LLM.Name, pr.LLMFallback.Name},
		"stt": {pr.STT.Name, pr.STTFallback.Name},
	} {
		for _, n := range names {
			validateProviderName(kind, n)
		}
	}
	errs.check(pr.STT.Name == "", "providers.stt is required; sessions cannot transcribe audio without it")
	errs.check(pr.LLMFallback.Name != "" && pr.LLM.Name == "", "providers.llm_fallback is set but providers.llm is not")
	errs.check(pr.STTFallback.Name != "" && pr.STT.Name == "", "providers.stt_fallback is set but providers.stt is not")
	if pr.LLM.Name == "" {
		slog.Warn("no LLM provider configured; answers will be recorded but not evaluated")
	}

	iv := cfg.Interview
	errs.check(iv.FrameBufferCapacity < 0, "interview.frame_buffer_capacity %d must be positive", iv.FrameBufferCapacity)
	errs.check(iv.WorkerStopTimeout < 0, "interview.worker_stop_timeout %s must not be negative", iv.WorkerStopTimeout)
	errs.check(iv.EvaluationTimeout < 0, "interview.evaluation_timeout %s must not be negative", iv.EvaluationTimeout)
	errs.check(iv.SampleRate < 0, "interview.sample_rate %d must be positive", iv.SampleRate)
	errs.check(iv.SilenceMs < 0, "interview.silence_ms %d must not be negative", iv.SilenceMs)
	for i, term := range iv.Vocabulary {
		errs.check(strings.TrimSpace(term) == "", "interview.vocabulary[%d] must not be blank", i)
	}

	l := cfg.LLM
	errs.check(l.Temperature < 0 || l.Temperature > 2, "llm.temperature %.2f is out of range [0, 2]", l.Temperature)
	errs.check(l.MaxTokens < 0, "llm.max_tokens %d must be positive", l.MaxTokens)
	errs.check(l.MaxRetries < 0, "llm.max_retries %d must not be negative", l.MaxRetries)
	errs.check(l.Timeout < 0, "llm.timeout %s must not be negative", l.Timeout)

	st := cfg.Storage
	errs.check(st.Driver != "" && !st.Driver.IsValid(),
		"storage.driver %q is invalid; valid values: memory, postgres, sqlite", st.Driver)
	errs.check(st.Driver == StoragePostgres && st.PostgresDSN == "",
		"storage.postgres_dsn is required when storage.driver is postgres")
	errs.check(st.Driver == StorageSQLite && st.SQLitePath == "",
		"storage.sqlite_path is required when storage.driver is sqlite")

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
