// Package mock provides a scriptable llm.Provider for tests.
//
//	p := &mock.Provider{Replies: []string{`{"scores":{"depth":4}}`, `{"question":"为什么?"}`}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/intervue/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider answers Complete from, in order of precedence: CompleteFunc,
// the next unused entry of Replies, then CompleteResponse and CompleteErr.
// The zero value returns (nil, nil).
type Provider struct {
	// CompleteFunc, if set, handles every call.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// Replies are returned as response content one per call.
	Replies []string

	CompleteResponse *llm.CompletionResponse
	CompleteErr      error

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities llm.ModelCapabilities

	mu    sync.Mutex
	next  int
	calls []CompleteCall
}

var _ llm.Provider = (*Provider)(nil)

func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, CompleteCall{Ctx: ctx, Req: req})
	fn := p.CompleteFunc
	var scripted *llm.CompletionResponse
	if fn == nil && p.next < len(p.Replies) {
		scripted = &llm.CompletionResponse{Content: p.Replies[p.next], Model: "mock"}
		p.next++
	}
	resp, err := p.CompleteResponse, p.CompleteErr
	p.mu.Unlock()

	switch {
	case fn != nil:
		return fn(ctx, req)
	case scripted != nil:
		return scripted, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return resp, err
}

func (p *Provider) Capabilities() llm.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelCapabilities
}

// CompleteCalls returns a copy of every recorded Complete invocation.
func (p *Provider) CompleteCalls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// LastRequest returns the most recent request, or false when there was none.
func (p *Provider) LastRequest() (llm.CompletionRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return llm.CompletionRequest{}, false
	}
	return p.calls[len(p.calls)-1].Req, true
}

// Reset forgets recorded calls and rewinds Replies.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
	p.next = 0
}
