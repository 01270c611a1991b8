package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/intervue/pkg/provider/llm"
	"github.com/MrWong99/intervue/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned when a config names a provider that
// has no registered factory.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider of type T from its config entry.
type Factory[T any] func(ProviderEntry) (T, error)

// factories is a name-keyed set of constructors for one provider kind.
type factories[T any] struct {
	kind   string
	mu     sync.RWMutex
	byName map[string]Factory[T]
}

func newFactories[T any](kind string) *factories[T] {
	return &factories[T]{kind: kind, byName: make(map[string]Factory[T])}
}

func (f *factories[T]) register(name string, fn Factory[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byName[name] = fn
}

func (f *factories[T]) names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.byName))
	for name := range f.byName {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (f *factories[T]) create(entry ProviderEntry) (T, error) {
	f.mu.RLock()
	fn, ok := f.byName[entry.Name]
	f.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q (known: %s)",
			ErrProviderNotRegistered, f.kind, entry.Name, strings.Join(f.names(), ", "))
	}
	return fn(entry)
}

// Registry resolves the provider names used in the config file to
// constructors. Registering a name twice replaces the earlier factory. It is
// safe for concurrent use.
type Registry struct {
	llm *factories[llm.Provider]
	stt *factories[stt.Provider]
}

func NewRegistry() *Registry {
	return &Registry{
		llm: newFactories[llm.Provider]("llm"),
		stt: newFactories[stt.Provider]("stt"),
	}
}

func (r *Registry) RegisterLLM(name string, fn Factory[llm.Provider]) { r.llm.register(name, fn) }

func (r *Registry) RegisterSTT(name string, fn Factory[stt.Provider]) { r.stt.register(name, fn) }

// LLMNames returns the registered LLM provider names in sorted order.
func (r *Registry) LLMNames() []string { return r.llm.names() }

// STTNames returns the registered STT provider names in sorted order.
func (r *Registry) STTNames() []string { return r.stt.names() }

// CreateLLM builds the LLM provider named by entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) { return r.llm.create(entry) }

// CreateSTT builds the STT provider named by entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) { return r.stt.create(entry) }
