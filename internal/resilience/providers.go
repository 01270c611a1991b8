package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/intervue/pkg/provider/llm"
	"github.com/MrWong99/intervue/pkg/provider/stt"
)

// LLMFallback is an [llm.Provider] that fails over across backends. The
// assessors use it so one rate-limited backend does not stall evaluations
// for every live session.
//
// A reply with no content counts as a failure of that backend, since the
// assessors cannot use it.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback appends a backend tried after all earlier ones. All
// fallbacks must be added before the first call.
func (f *LLMFallback) AddFallback(name string, p llm.Provider) { f.group.AddFallback(name, p) }

func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		resp, err := p.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil || strings.TrimSpace(resp.Content) == "" {
			return nil, llm.ErrEmptyResponse
		}
		return resp, nil
	})
}

// Capabilities returns limits every backend can honour: the smallest
// context window and output cap, and JSON mode only if all support it. A
// request sized for it stays valid after failover.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities {
	var out llm.ModelCapabilities
	for i, p := range f.group.Values() {
		c := p.Capabilities()
		if i == 0 {
			out = c
			continue
		}
		out.ContextWindow = minPositive(out.ContextWindow, c.ContextWindow)
		out.MaxOutputTokens = minPositive(out.MaxOutputTokens, c.MaxOutputTokens)
		out.SupportsJSONMode = out.SupportsJSONMode && c.SupportsJSONMode
	}
	return out
}

// minPositive treats zero as unknown.
func minPositive(a, b int) int {
	switch {
	case a <= 0:
		return b
	case b <= 0:
		return a
	}
	return min(a, b)
}

func (f *LLMFallback) Status() []EntryStatus { return f.group.Status() }

// Healthy reports whether any backend currently accepts calls.
func (f *LLMFallback) Healthy() bool { return f.group.Healthy() }

// STTFallback is an [stt.Provider] that fails over when opening a stream.
// An open stream stays on its backend until the session ends.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

var errNilStream = errors.New("provider returned no stream")

func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback appends a backend tried after all earlier ones.
func (f *STTFallback) AddFallback(name string, p stt.Provider) { f.group.AddFallback(name, p) }

func (f *STTFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	h, err := ExecuteWithResult(f.group, func(p stt.Provider) (stt.SessionHandle, error) {
		h, err := p.StartStream(ctx, cfg)
		if err == nil && h == nil {
			return nil, errNilStream
		}
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("stt: start stream: %w", err)
	}
	return h, nil
}

func (f *STTFallback) Status() []EntryStatus { return f.group.Status() }

// Healthy reports whether any backend currently accepts streams.
func (f *STTFallback) Healthy() bool { return f.group.Healthy() }
