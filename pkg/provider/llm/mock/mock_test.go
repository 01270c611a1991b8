package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/intervue/pkg/provider/llm"
)

func TestProvider_Replies(t *testing.T) {
	t.Parallel()

	p := &Provider{
		Replies:          []string{"one", "two"},
		CompleteResponse: &llm.CompletionResponse{Content: "fallback"},
	}
	var got []string
	for range 3 {
		resp, err := p.Complete(context.Background(), llm.CompletionRequest{Messages: []llm.Message{llm.UserMessage("q")}})
		if err != nil {
			t.Fatalf("Complete() error: %v", err)
		}
		got = append(got, resp.Content)
	}
	if got[0] != "one" || got[1] != "two" || got[2] != "fallback" {
		t.Errorf("contents = %v, want [one two fallback]", got)
	}
	if n := len(p.CompleteCalls()); n != 3 {
		t.Errorf("CompleteCalls() = %d, want 3", n)
	}

	p.Reset()
	if _, ok := p.LastRequest(); ok {
		t.Error("LastRequest() after Reset reported a request")
	}
	resp, _ := p.Complete(context.Background(), llm.CompletionRequest{})
	if resp.Content != "one" {
		t.Errorf("Content after Reset = %q, want one", resp.Content)
	}
}

func TestProvider_FuncAndErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := &Provider{CompleteErr: boom}
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{}); !errors.Is(err, boom) {
		t.Errorf("Complete() error = %v, want %v", err, boom)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&Provider{}).Complete(ctx, llm.CompletionRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Complete(cancelled) error = %v, want context.Canceled", err)
	}

	p = &Provider{Replies: []string{"ignored"}, CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: req.SystemPrompt}, nil
	}}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{SystemPrompt: "echo"})
	if err != nil || resp.Content != "echo" {
		t.Errorf("Complete() = %+v, %v; want echo", resp, err)
	}
	if req, ok := p.LastRequest(); !ok || req.SystemPrompt != "echo" {
		t.Errorf("LastRequest() = %+v, %v", req, ok)
	}
}
