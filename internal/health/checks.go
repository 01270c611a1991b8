package health

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/intervue/internal/resilience"
)

// Pinger is implemented by dependencies that can be pinged for reachability,
// such as a store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping returns a checker that fails when p cannot be reached.
func Ping(name string, p Pinger) Checker {
	return Checker{Name: name, Check: func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s ping: %w", name, err)
		}
		return nil
	}}
}

// Degradable is implemented by wrappers that swallow background failures and
// remember that they happened.
type Degradable interface {
	Degraded() bool
}

// NotDegraded returns a checker that fails once d reports a degraded state.
func NotDegraded(name string, d Degradable) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if d.Degraded() {
			return errors.New("degraded: recent writes failed")
		}
		return nil
	}}
}

// BackendGroup is implemented by provider fallback groups.
type BackendGroup interface {
	Healthy() bool
	Status() []resilience.EntryStatus
}

// Backends returns a checker that fails when no backend of g accepts calls.
// The error lists each backend's breaker state.
func Backends(name string, g BackendGroup) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if g.Healthy() {
			return nil
		}
		states := make([]string, 0, len(g.Status()))
		for _, st := range g.Status() {
			states = append(states, st.Name+"="+st.State)
		}
		return fmt.Errorf("every %s backend is open (%s)", name, strings.Join(states, ", "))
	}}
}
