package assess

import (
	"context"
	"errors"
	"strings"

	"github.com/MrWong99/intervue/internal/interview"
	"github.com/MrWong99/intervue/internal/observe"
	"github.com/MrWong99/intervue/pkg/provider/llm"
)

// LLMQuestioner generates follow-up questions with a language model.
type LLMQuestioner struct {
	c caller
}

var _ interview.Questioner = (*LLMQuestioner)(nil)

// NewLLMQuestioner returns a questioner using the follow_up prompt.
func NewLLMQuestioner(p llm.Provider, prompts *PromptManager, opts Options) *LLMQuestioner {
	return &LLMQuestioner{c: newCaller(p, prompts, opts)}
}

// FollowUp implements interview.Questioner. A reply that is not JSON is
// used verbatim as the question.
func (q *LLMQuestioner) FollowUp(ctx context.Context, in interview.FollowUpInput) (string, error) {
	prompt, err := q.c.prompts.Format(PromptFollowUp, map[string]any{
		"Persona":  in.Persona,
		"Question": in.Question,
		"Answer":   in.Answer,
		"Reason":   in.Reason,
		"History":  in.History,
	})
	if err != nil {
		return "", err
	}
	raw, err := q.c.call(observe.WithSession(ctx, in.SessionID), "follow_up", prompt)
	if err != nil {
		return "", err
	}

	var reply struct {
		Question string `json:"question"`
	}
	err = ParseJSON(raw, &reply)
	switch {
	case err == nil:
		return strings.TrimSpace(reply.Question), nil
	case errors.Is(err, ErrMalformedOutput):
		return strings.TrimSpace(stripFence(raw)), nil
	default:
		return "", err
	}
}
