package assess

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/intervue/internal/interview"
	"github.com/MrWong99/intervue/internal/observe"
	"github.com/MrWong99/intervue/pkg/provider/llm"
)

// LLMEvaluator scores answers with a language model.
type LLMEvaluator struct {
	c caller
}

var _ interview.Evaluator = (*LLMEvaluator)(nil)

// NewLLMEvaluator returns an evaluator using the evaluate_answer prompt.
func NewLLMEvaluator(p llm.Provider, prompts *PromptManager, opts Options) *LLMEvaluator {
	return &LLMEvaluator{c: newCaller(p, prompts, opts)}
}

type evaluationReply struct {
	Scores  map[string]float64 `json:"scores"`
	Comment string             `json:"comment"`
}

// Evaluate implements interview.Evaluator. Scores are clamped to 0..10; a
// reply without any score is malformed.
func (e *LLMEvaluator) Evaluate(ctx context.Context, in interview.EvaluationInput) (interview.Evaluation, error) {
	vars := map[string]any{
		"Question":       in.Question,
		"Answer":         in.Answer,
		"Text":           in.Text,
		"Audio":          in.Audio,
		"HasFrame":       in.Frame != nil,
		"FrameTimestamp": 0.0,
	}
	if in.Frame != nil {
		vars["FrameTimestamp"] = in.Frame.Timestamp
	}

	var reply evaluationReply
	ctx = observe.WithSession(ctx, in.SessionID)
	if err := e.c.complete(ctx, "evaluate", PromptEvaluateAnswer, vars, &reply); err != nil {
		return interview.Evaluation{}, err
	}
	if len(reply.Scores) == 0 {
		return interview.Evaluation{}, fmt.Errorf("%w: no scores", ErrMalformedOutput)
	}

	scores := make(map[string]float64, len(reply.Scores))
	for k, v := range reply.Scores {
		scores[strings.ToLower(strings.TrimSpace(k))] = clamp(v, 0, 10)
	}
	ev := interview.Evaluation{
		Question:    in.Question,
		Answer:      in.Answer,
		Scores:      scores,
		Comment:     strings.TrimSpace(reply.Comment),
		EvaluatedAt: time.Now(),
	}
	if in.Frame != nil {
		ts := in.Frame.Timestamp
		ev.FrameTimestamp = &ts
	}
	return ev, nil
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
