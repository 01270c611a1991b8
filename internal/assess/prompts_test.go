package assess_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/intervue/internal/assess"
	"github.com/MrWong99/intervue/internal/interview"
)

func newPrompts(t *testing.T) *assess.PromptManager {
	t.Helper()
	pm, err := assess.NewPromptManager("")
	if err != nil {
		t.Fatalf("NewPromptManager() error: %v", err)
	}
	return pm
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
}

func TestPromptManager_Defaults(t *testing.T) {
	t.Parallel()

	pm := newPrompts(t)
	var ids []string
	for _, tmpl := range pm.List() {
		ids = append(ids, tmpl.ID)
	}
	want := []string{assess.PromptEvaluateAnswer, assess.PromptFinalReport, assess.PromptFollowUp}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Errorf("List() ids = %v, want %v", ids, want)
	}
	if tmpl, ok := pm.Get(assess.PromptFollowUp); !ok || tmpl.Name == "" {
		t.Errorf("Get(follow_up) = %+v, %v", tmpl, ok)
	}
}

func TestPromptManager_FormatEvaluate(t *testing.T) {
	t.Parallel()

	pm := newPrompts(t)
	got, err := pm.Format(assess.PromptEvaluateAnswer, map[string]any{
		"Question":       "介绍一下你的项目",
		"Answer":         "我可能负责过缓存层",
		"Text":           interview.TextSignals{Runes: 9, Words: 1, HedgeMarkers: []string{"可能"}},
		"Audio":          interview.PlaceholderAudioSignals(),
		"HasFrame":       true,
		"FrameTimestamp": 12.5,
	})
	if err != nil {
		t.Fatalf("Format() error: %v", err)
	}
	for _, want := range []string{"介绍一下你的项目", "我可能负责过缓存层", "含犹豫词：可能", "12.50", "（估计值）"} {
		if !strings.Contains(got, want) {
			t.Errorf("Format() output missing %q:\n%s", want, got)
		}
	}
}

func TestPromptManager_FormatErrors(t *testing.T) {
	t.Parallel()

	pm := newPrompts(t)
	if _, err := pm.Format("nope", nil); !errors.Is(err, assess.ErrUnknownPrompt) {
		t.Errorf("Format(unknown) error = %v, want ErrUnknownPrompt", err)
	}
	if _, err := pm.Format(assess.PromptFollowUp, map[string]any{"Answer": "x"}); err == nil {
		t.Error("Format() with missing variables returned nil error")
	}
}

func TestPromptManager_OverrideAndReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	writeFile(t, path, `
templates:
  - id: follow_up
    name: custom
    content: "追问：{{.Answer}}"
`)
	pm, err := assess.NewPromptManager(path)
	if err != nil {
		t.Fatalf("NewPromptManager() error: %v", err)
	}
	got, err := pm.Format(assess.PromptFollowUp, map[string]any{"Answer": "不知道"})
	if err != nil || got != "追问：不知道" {
		t.Fatalf("Format() = %q, %v; want override", got, err)
	}
	if _, ok := pm.Get(assess.PromptEvaluateAnswer); !ok {
		t.Error("default evaluate_answer lost after override")
	}

	writeFile(t, path, `
templates:
  - id: follow_up
    content: "再说说：{{.Answer}}"
`)
	if err := pm.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	got, _ = pm.Format(assess.PromptFollowUp, map[string]any{"Answer": "不知道"})
	if got != "再说说：不知道" {
		t.Errorf("Format() after Reload = %q", got)
	}

	// A broken file keeps the previous templates.
	writeFile(t, path, "templates:\n  - id: follow_up\n    colour: red\n")
	if err := pm.Reload(); err == nil {
		t.Fatal("Reload() with unknown field returned nil error")
	}
	got, _ = pm.Format(assess.PromptFollowUp, map[string]any{"Answer": "不知道"})
	if got != "再说说：不知道" {
		t.Errorf("Format() after failed Reload = %q", got)
	}

	writeFile(t, path, "templates:\n  - id: follow_up\n    content: \"{{.Answer\"\n")
	if err := pm.Reload(); err == nil {
		t.Error("Reload() with unparsable template returned nil error")
	}
}

func TestPromptManager_SetPath(t *testing.T) {
	t.Parallel()

	pm := newPrompts(t)
	if err := pm.SetPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("SetPath(missing) returned nil error")
	}
	if _, err := assess.NewPromptManager(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("NewPromptManager(missing) returned nil error")
	}
}
