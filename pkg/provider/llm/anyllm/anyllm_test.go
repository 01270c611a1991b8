package anyllm

import (
	"slices"
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/intervue/pkg/provider/llm"
)

func TestConvertMessage(t *testing.T) {
	t.Parallel()

	got := convertMessage(llm.Message{Role: llm.RoleAssistant, Content: "请介绍一下你自己", Name: "interviewer"})
	if got.Role != "assistant" {
		t.Errorf("Role = %q, want assistant", got.Role)
	}
	if got.ContentString() != "请介绍一下你自己" {
		t.Errorf("Content = %q", got.ContentString())
	}
	if got.Name != "interviewer" {
		t.Errorf("Name = %q, want interviewer", got.Name)
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "claude-3-5-sonnet-latest"}

	t.Run("plain", func(t *testing.T) {
		t.Parallel()
		params := p.params(llm.CompletionRequest{
			Messages: []llm.Message{llm.UserMessage("hi")},
		})
		if len(params.Messages) != 1 {
			t.Fatalf("got %d messages, want 1", len(params.Messages))
		}
		if params.Temperature != nil || params.MaxTokens != nil {
			t.Error("zero Temperature/MaxTokens must stay unset")
		}
		if params.Model != "claude-3-5-sonnet-latest" {
			t.Errorf("Model = %q", params.Model)
		}
	})

	t.Run("json with system prompt", func(t *testing.T) {
		t.Parallel()
		params := p.params(llm.CompletionRequest{
			SystemPrompt: "You grade answers.",
			Messages:     []llm.Message{llm.UserMessage("grade")},
			Temperature:  0.7,
			MaxTokens:    4000,
			JSON:         true,
		})
		if len(params.Messages) != 2 {
			t.Fatalf("got %d messages, want system + user", len(params.Messages))
		}
		sys := params.Messages[0]
		if sys.Role != anyllmlib.RoleSystem {
			t.Errorf("first role = %q, want system", sys.Role)
		}
		if !strings.HasPrefix(sys.ContentString(), "You grade answers.") || !strings.HasSuffix(sys.ContentString(), jsonInstruction) {
			t.Errorf("system prompt = %q", sys.ContentString())
		}
		if params.Temperature == nil || *params.Temperature != 0.7 {
			t.Errorf("Temperature = %v, want 0.7", params.Temperature)
		}
		if params.MaxTokens == nil || *params.MaxTokens != 4000 {
			t.Errorf("MaxTokens = %v, want 4000", params.MaxTokens)
		}
	})

	t.Run("json without system prompt", func(t *testing.T) {
		t.Parallel()
		params := p.params(llm.CompletionRequest{
			Messages: []llm.Message{llm.UserMessage("grade")},
			JSON:     true,
		})
		if got := params.Messages[0].ContentString(); got != jsonInstruction {
			t.Errorf("system prompt = %q, want %q", got, jsonInstruction)
		}
	})
}

func TestCapabilities_PromptJSON(t *testing.T) {
	t.Parallel()

	for _, model := range []string{"gpt-4o", "claude-3-5-sonnet-latest", "qwen2.5:14b"} {
		p := &Provider{model: model}
		got := p.Capabilities()
		if got.SupportsJSONMode {
			t.Errorf("%s: SupportsJSONMode = true, JSON is requested through the prompt", model)
		}
		want := llm.LookupCapabilities(model)
		if got.ContextWindow != want.ContextWindow || got.MaxOutputTokens != want.MaxOutputTokens {
			t.Errorf("%s: Capabilities() = %+v, want limits of %+v", model, got, want)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("New() with empty provider name returned nil error")
	}
	if _, err := New("openai", ""); err == nil {
		t.Error("New() with empty model returned nil error")
	}
	if _, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy")); err == nil {
		t.Error("New() with unsupported provider returned nil error")
	}
}

func TestNew_OpenAI_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New("openai", "gpt-4o"); err == nil {
		t.Fatal("New() without API key returned nil error")
	}
}

func TestNew_Backends(t *testing.T) {
	t.Parallel()

	backends := Backends()
	if !slices.IsSorted(backends) || !slices.Contains(backends, "anthropic") || !slices.Contains(backends, "ollama") {
		t.Fatalf("Backends() = %v", backends)
	}

	tests := []struct {
		backend string
		opts    []anyllmlib.Option
	}{
		{"anthropic", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-ant-test")}},
		{"DeepSeek", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-test")}},
		{"ollama", nil},
		{"llamacpp", nil},
		{"llamafile", nil},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			t.Parallel()
			p, err := New(tt.backend, "qwen2.5", tt.opts...)
			if err != nil {
				t.Fatalf("New(%s) error: %v", tt.backend, err)
			}
			if p.name != strings.ToLower(tt.backend) {
				t.Errorf("name = %q", p.name)
			}
		})
	}
}
