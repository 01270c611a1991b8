package health

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/intervue/internal/resilience"
)

type fakeDep struct {
	pingErr  error
	degraded bool
	healthy  bool
}

func (f fakeDep) Ping(context.Context) error { return f.pingErr }
func (f fakeDep) Degraded() bool             { return f.degraded }
func (f fakeDep) Healthy() bool              { return f.healthy }

func (f fakeDep) Status() []resilience.EntryStatus {
	state := "open"
	if f.healthy {
		state = "closed"
	}
	return []resilience.EntryStatus{{Name: "whisper", State: state}, {Name: "deepgram", State: state}}
}

func TestCheckers(t *testing.T) {
	t.Parallel()

	errDown := errors.New("connection refused")
	tests := []struct {
		name    string
		checker Checker
		wantErr string
	}{
		{"ping ok", Ping("store", fakeDep{}), ""},
		{"ping fails", Ping("store", fakeDep{pingErr: errDown}), "store ping: connection refused"},
		{"not degraded", NotDegraded("store_writes", fakeDep{}), ""},
		{"degraded", NotDegraded("store_writes", fakeDep{degraded: true}), "degraded"},
		{"backends healthy", Backends("llm", fakeDep{healthy: true}), ""},
		{"backends open", Backends("stt", fakeDep{}), "every stt backend is open (whisper=open, deepgram=open)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.checker.Check(context.Background())
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Check() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Check() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPing_WrapsCause(t *testing.T) {
	t.Parallel()

	errDown := errors.New("down")
	err := Ping("store", fakeDep{pingErr: errDown}).Check(context.Background())
	if !errors.Is(err, errDown) {
		t.Errorf("Check() error = %v, want wrapping %v", err, errDown)
	}
}
