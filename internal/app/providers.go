package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/intervue/internal/config"
	"github.com/MrWong99/intervue/internal/observe"
	"github.com/MrWong99/intervue/internal/resilience"
	"github.com/MrWong99/intervue/pkg/provider/llm"
	"github.com/MrWong99/intervue/pkg/provider/stt"
)

// Providers holds one interface value per provider slot. LLM is nil when no
// LLM is configured; answers are then recorded but not assessed.
type Providers struct {
	LLM llm.Provider
	STT stt.Provider
}

// BuildProviders instantiates the configured providers through reg. Each
// slot is wrapped in a circuit-breaking fallback group so that the optional
// fallback entry takes over when the primary keeps failing. Breaker
// transitions are recorded on m.
func BuildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*Providers, error) {
	fbCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
				m.RecordBreakerTransition(context.Background(), name, from.String(), to.String())
			},
		},
	}

	ps := &Providers{}

	if entry := cfg.Providers.LLM; entry.Name != "" {
		primary, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("app: create llm provider %q: %w", entry.Name, err)
		}
		fb := resilience.NewLLMFallback(primary, "llm/"+entry.Name, fbCfg)
		slog.Info("provider created", "kind", "llm", "name", entry.Name)

		if alt := cfg.Providers.LLMFallback; alt.Name != "" {
			p, err := reg.CreateLLM(alt)
			if err != nil {
				return nil, fmt.Errorf("app: create llm fallback %q: %w", alt.Name, err)
			}
			fb.AddFallback("llm/"+alt.Name, p)
			slog.Info("provider created", "kind", "llm_fallback", "name", alt.Name)
		}
		ps.LLM = fb
	}

	if entry := cfg.Providers.STT; entry.Name != "" {
		primary, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("app: create stt provider %q: %w", entry.Name, err)
		}
		fb := resilience.NewSTTFallback(primary, "stt/"+entry.Name, fbCfg)
		slog.Info("provider created", "kind", "stt", "name", entry.Name)

		if alt := cfg.Providers.STTFallback; alt.Name != "" {
			p, err := reg.CreateSTT(alt)
			if err != nil {
				return nil, fmt.Errorf("app: create stt fallback %q: %w", alt.Name, err)
			}
			fb.AddFallback("stt/"+alt.Name, p)
			slog.Info("provider created", "kind", "stt_fallback", "name", alt.Name)
		}
		ps.STT = fb
	}

	return ps, nil
}
