package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no member of a [FallbackGroup] served the
// call. The last member's error stays in the chain.
var ErrAllFailed = errors.New("resilience: all providers failed")

// FallbackConfig is the breaker template applied to every member. Its Name
// is replaced by the member name.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// EntryStatus is one member's breaker state as reported on /readyz.
type EntryStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

type member[T any] struct {
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds interchangeable backends in priority order, each
// behind its own circuit breaker.
//
// Members are added during wiring. Calls are safe for concurrent use once
// the group is shared.
type FallbackGroup[T any] struct {
	members []member[T]
	tmpl    CircuitBreakerConfig
}

func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{tmpl: cfg.CircuitBreaker}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends v, tried after every earlier member.
func (fg *FallbackGroup[T]) AddFallback(name string, v T) {
	cb := fg.tmpl
	cb.Name = name
	fg.members = append(fg.members, member[T]{value: v, breaker: NewCircuitBreaker(cb)})
}

// Values returns the members in priority order.
func (fg *FallbackGroup[T]) Values() []T {
	out := make([]T, 0, len(fg.members))
	for _, m := range fg.members {
		out = append(out, m.value)
	}
	return out
}

func (fg *FallbackGroup[T]) Status() []EntryStatus {
	out := make([]EntryStatus, 0, len(fg.members))
	for _, m := range fg.members {
		out = append(out, EntryStatus{Name: m.breaker.Name(), State: m.breaker.State().String()})
	}
	return out
}

// Healthy reports whether any member's breaker would admit a call.
func (fg *FallbackGroup[T]) Healthy() bool {
	for _, m := range fg.members {
		if m.breaker.State() != StateOpen {
			return true
		}
	}
	return false
}

// Execute runs fn on members in order until one succeeds.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult runs fn on the members of fg in order and returns the
// first success. Members with an open breaker are skipped. A cancelled call
// ends the walk with the cancellation error.
func ExecuteWithResult[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var zero R
	var lastErr error
	for _, m := range fg.members {
		var out R
		err := m.breaker.Execute(func() (err error) {
			out, err = fn(m.value)
			return err
		})
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, context.Canceled):
			return zero, err
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("provider skipped, circuit open", "provider", m.breaker.Name())
		default:
			slog.Warn("provider failed, trying next", "provider", m.breaker.Name(), "err", err)
		}
		lastErr = err
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
