// Package llm defines the Provider interface for Large Language Model backends.
//
// The interview assessors only need single-shot completions: grade an
// answer, draft a follow-up question, write the final report. A Provider
// wraps one hosted or local model and must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the backend answers without any choice.
var ErrEmptyResponse = errors.New("llm: empty response")

// Role identifies the author of a [Message].
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn of an LLM conversation.
type Message struct {
	Role    Role
	Content string

	// Name is an optional participant name.
	Name string
}

// UserMessage returns a user turn carrying text.
func UserMessage(text string) Message { return Message{Role: RoleUser, Content: text} }

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	Messages []Message

	// SystemPrompt, if set, is sent ahead of Messages.
	SystemPrompt string

	// Temperature in [0, 2]. Zero keeps the provider default.
	Temperature float64

	// MaxTokens caps the completion. Zero keeps the provider default.
	MaxTokens int

	// JSON asks the backend to emit a single JSON object. Backends without a
	// native JSON mode get an instruction in the system prompt instead.
	JSON bool
}

// Usage holds token accounting reported by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	Content string

	// Model is the model that served the request, as reported by the backend.
	Model string

	Usage Usage

	// Truncated is set when generation stopped at the token limit. JSON
	// content is then most likely incomplete.
	Truncated bool
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// It returns promptly with ctx.Err() when ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static limits of the configured model.
	Capabilities() ModelCapabilities
}
