package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newGroup(maxFailures int) *FallbackGroup[string] {
	fg := NewFallbackGroup("primary", "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: maxFailures, ResetTimeout: time.Hour},
	})
	fg.AddFallback("secondary", "secondary")
	return fg
}

func TestFallbackGroup_Execute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		failing  map[string]bool
		wantCall string
		wantErr  bool
	}{
		{"primary succeeds", nil, "primary", false},
		{"fallback after primary failure", map[string]bool{"primary": true}, "secondary", false},
		{"all fail", map[string]bool{"primary": true, "secondary": true}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fg := newGroup(3)
			var called string
			err := fg.Execute(func(v string) error {
				if tt.failing[v] {
					return errTest
				}
				called = v
				return nil
			})
			if tt.wantErr {
				if !errors.Is(err, ErrAllFailed) || !errors.Is(err, errTest) {
					t.Fatalf("Execute() error = %v, want ErrAllFailed wrapping errTest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			if called != tt.wantCall {
				t.Errorf("called = %q, want %q", called, tt.wantCall)
			}
		})
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	fg := newGroup(2)
	for range 2 {
		_ = fg.Execute(func(v string) error {
			if v == "primary" {
				return errTest
			}
			return nil
		})
	}

	calls := map[string]int{}
	if err := fg.Execute(func(v string) error { calls[v]++; return nil }); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if calls["primary"] != 0 || calls["secondary"] != 1 {
		t.Errorf("calls = %v, want secondary only", calls)
	}

	status := fg.Status()
	if len(status) != 2 || status[0].State != "open" || status[1].State != "closed" {
		t.Errorf("Status() = %+v", status)
	}
	if !fg.Healthy() {
		t.Error("Healthy() = false with a closed fallback")
	}
}

func TestFallbackGroup_HealthyFalseWhenAllOpen(t *testing.T) {
	t.Parallel()

	fg := newGroup(1)
	_ = fg.Execute(func(string) error { return errTest })
	if fg.Healthy() {
		t.Error("Healthy() = true with every breaker open")
	}
	if got := fg.Values(); len(got) != 2 || got[0] != "primary" || got[1] != "secondary" {
		t.Errorf("Values() = %v, want [primary secondary]", got)
	}
}

func TestFallbackGroup_CancellationStopsFailover(t *testing.T) {
	t.Parallel()

	fg := newGroup(1)
	calls := 0
	err := fg.Execute(func(string) error {
		calls++
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrAllFailed) {
		t.Fatalf("Execute() error = %v, want bare context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
	if fg.Status()[0].State != "closed" {
		t.Error("cancellation opened the primary breaker")
	}
}

func TestExecuteWithResult(t *testing.T) {
	t.Parallel()

	fg := newGroup(3)
	got, err := ExecuteWithResult(fg, func(v string) (int, error) {
		if v == "primary" {
			return 0, errTest
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult() error: %v", err)
	}
	if got != 42 {
		t.Errorf("result = %d, want 42", got)
	}

	got, err = ExecuteWithResult(fg, func(string) (int, error) { return 7, errTest })
	if !errors.Is(err, ErrAllFailed) || got != 0 {
		t.Errorf("all-fail = %d, %v; want 0, ErrAllFailed", got, err)
	}
}
