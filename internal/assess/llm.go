package assess

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/intervue/internal/observe"
	"github.com/MrWong99/intervue/pkg/provider/llm"
)

// Defaults for [Options].
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4000
	DefaultTimeout     = 30 * time.Second
)

// Options tune every LLM call made by an assessor.
type Options struct {
	Temperature float64
	MaxTokens   int

	// Timeout bounds a single call. It applies on top of any deadline the
	// caller's context already carries.
	Timeout time.Duration

	// Metrics, if set, receives latency and error counts per call.
	Metrics *observe.Metrics
}

func (o Options) withDefaults() Options {
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// caller is the LLM plumbing shared by the assessors.
type caller struct {
	provider llm.Provider
	prompts  *PromptManager
	opts     Options
}

func newCaller(p llm.Provider, prompts *PromptManager, opts Options) caller {
	return caller{provider: p, prompts: prompts, opts: opts.withDefaults()}
}

// complete renders prompt id with vars, sends it as a single user message
// and decodes the JSON reply into out.
func (c caller) complete(ctx context.Context, op, id string, vars map[string]any, out any) error {
	prompt, err := c.prompts.Format(id, vars)
	if err != nil {
		return err
	}
	raw, err := c.call(ctx, op, prompt)
	if err != nil {
		return err
	}
	return ParseJSON(raw, out)
}

func (c caller) call(ctx context.Context, op, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	ctx, span := observe.StartSpan(ctx, "assess."+op)
	defer span.End()

	maxTokens := c.opts.MaxTokens
	if limit := c.provider.Capabilities().MaxOutputTokens; limit > 0 && maxTokens > limit {
		maxTokens = limit
	}

	start := time.Now()
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{llm.UserMessage(prompt)},
		Temperature: c.opts.Temperature,
		MaxTokens:   maxTokens,
		JSON:        true,
	})
	elapsed := time.Since(start)
	c.opts.Metrics.RecordLLMCall(ctx, op, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("assess: %s: %w", op, err)
	}
	if resp == nil {
		return "", fmt.Errorf("assess: %s: %w", op, llm.ErrEmptyResponse)
	}
	span.SetAttributes(
		attribute.String("llm.model", resp.Model),
		attribute.Int("llm.total_tokens", resp.Usage.TotalTokens),
		attribute.Bool("llm.truncated", resp.Truncated),
	)
	if resp.Truncated {
		observe.Logger(ctx).Warn("llm reply hit the token limit", "op", op, "max_tokens", maxTokens)
	}
	observe.Logger(ctx).Debug("llm call finished", "op", op, "model", resp.Model,
		"tokens", resp.Usage.TotalTokens, "latency", elapsed)
	return resp.Content, nil
}
