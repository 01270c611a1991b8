package config_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/intervue/internal/config"
)

func mustLoad(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader() error: %v", err)
	}
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	a := mustLoad(t, sampleYAML)
	b := mustLoad(t, sampleYAML)
	if d := config.Diff(a, b); !d.Empty() {
		t.Errorf("Diff() = %+v, want empty", d)
	}
}

func TestDiff_HotReloadable(t *testing.T) {
	t.Parallel()

	old := mustLoad(t, sampleYAML)
	tests := []struct {
		name  string
		edit  func(c *config.Config)
		check func(t *testing.T, d config.ConfigDiff)
	}{
		{
			name: "log level",
			edit: func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
					t.Errorf("diff = %+v", d)
				}
			},
		},
		{
			name: "hedge markers",
			edit: func(c *config.Config) { c.Interview.FollowUp.HedgeMarkers = []string{"maybe"} },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.FollowUpChanged || !slices.Equal(d.NewFollowUp.HedgeMarkers, []string{"maybe"}) {
					t.Errorf("diff = %+v", d)
				}
			},
		},
		{
			name: "min answer runes",
			edit: func(c *config.Config) { c.Interview.FollowUp.MinAnswerRunes = 5 },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.FollowUpChanged || d.NewFollowUp.MinAnswerRunes != 5 {
					t.Errorf("diff = %+v", d)
				}
			},
		},
		{
			name: "prompts file",
			edit: func(c *config.Config) { c.Prompts.File = "/tmp/p.yaml" },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.PromptsChanged || d.NewPromptsFile != "/tmp/p.yaml" {
					t.Errorf("diff = %+v", d)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			next := mustLoad(t, sampleYAML)
			tt.edit(next)
			d := config.Diff(old, next)
			tt.check(t, d)
			if len(d.RestartRequired) != 0 {
				t.Errorf("RestartRequired = %v, want none", d.RestartRequired)
			}
		})
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	old := mustLoad(t, sampleYAML)
	next := mustLoad(t, sampleYAML)
	next.Server.ListenAddr = ":1234"
	next.Providers.STT.Model = "nova-3"
	next.Interview.FrameBufferCapacity = 10
	next.Storage.Driver = config.StorageMemory
	next.Transport.InsecureSkipVerify = true

	d := config.Diff(old, next)
	want := []string{"server", "providers", "interview", "storage", "transport"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
	}
	if d.LogLevelChanged || d.FollowUpChanged || d.PromptsChanged {
		t.Errorf("hot-reloadable fields flagged: %+v", d)
	}
}
