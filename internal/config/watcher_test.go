package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/intervue/internal/config"
)

const (
	watcherBase = `
server:
  log_level: info
providers:
  stt:
    name: deepgram
interview:
  follow_up:
    min_answer_runes: 10
`
	watcherUpdated = `
server:
  log_level: debug
providers:
  stt:
    name: deepgram
interview:
  follow_up:
    min_answer_runes: 25
`
	watcherInvalid = `
server:
  log_level: bananas
`
)

type change struct {
	old, new *config.Config
	diff     config.ConfigDiff
}

// startWatcher writes body to a temp config file and watches it. Changes
// are delivered on the returned channel.
func startWatcher(t *testing.T, body string) (string, *config.Watcher, <-chan change) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intervue.yaml")
	writeFile(t, path, body)

	ch := make(chan change, 8)
	w, err := config.NewWatcher(path, func(old, new *config.Config, d config.ConfigDiff) {
		ch <- change{old, new, d}
	}, config.WithDebounce(30*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error: %v", err)
	}
	t.Cleanup(w.Stop)
	return path, w, ch
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func expectChange(t *testing.T, ch <-chan change) change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("no reload within 3s")
		return change{}
	}
}

func expectNoChange(t *testing.T, ch <-chan change) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected reload: %+v", c.diff)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	_, w, _ := startWatcher(t, watcherBase)

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() = nil after initial load")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Interview.FollowUp.MinAnswerRunes != 10 {
		t.Errorf("min_answer_runes = %d, want 10", cfg.Interview.FollowUp.MinAnswerRunes)
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	t.Parallel()
	path, w, ch := startWatcher(t, watcherBase)

	writeFile(t, path, watcherUpdated)
	c := expectChange(t, ch)

	if c.old.Server.LogLevel != config.LogInfo || c.new.Server.LogLevel != config.LogDebug {
		t.Errorf("log level %q -> %q, want info -> debug", c.old.Server.LogLevel, c.new.Server.LogLevel)
	}
	if !c.diff.LogLevelChanged || !c.diff.FollowUpChanged || c.diff.NewFollowUp.MinAnswerRunes != 25 {
		t.Errorf("diff = %+v, want log level and follow-up changes", c.diff)
	}
	if got := w.Current(); got != c.new {
		t.Error("Current() does not return the reloaded config")
	}
}

func TestWatcher_ReloadsOnRenameOver(t *testing.T) {
	t.Parallel()
	path, _, ch := startWatcher(t, watcherBase)

	tmp := path + ".swp"
	writeFile(t, tmp, watcherUpdated)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	c := expectChange(t, ch)
	if c.new.Interview.FollowUp.MinAnswerRunes != 25 {
		t.Errorf("min_answer_runes = %d, want 25", c.new.Interview.FollowUp.MinAnswerRunes)
	}
}

func TestWatcher_InvalidEditKeepsConfig(t *testing.T) {
	t.Parallel()
	path, w, ch := startWatcher(t, watcherBase)
	before := w.Current()

	writeFile(t, path, watcherInvalid)
	expectNoChange(t, ch)

	if w.Current() != before {
		t.Error("Current() changed after an invalid edit")
	}

	// A later valid edit is still picked up.
	writeFile(t, path, watcherUpdated)
	if c := expectChange(t, ch); c.old != before {
		t.Error("reload after invalid edit should diff against the last valid config")
	}
}

func TestWatcher_IgnoresTouchAndSiblings(t *testing.T) {
	t.Parallel()
	path, _, ch := startWatcher(t, watcherBase)

	now := time.Now().Add(time.Second)
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatalf("touch: %v", err)
	}
	writeFile(t, filepath.Join(filepath.Dir(path), "other.yaml"), watcherUpdated)
	// Same bytes rewritten.
	writeFile(t, path, watcherBase)

	expectNoChange(t, ch)
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("NewWatcher() error = nil for a missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, watcherInvalid)
	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("NewWatcher() error = nil for an invalid file")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	_, w, _ := startWatcher(t, watcherBase)
	w.Stop()
	w.Stop()
}
