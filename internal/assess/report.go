package assess

import (
	"context"
	"strings"
	"time"

	"github.com/MrWong99/intervue/internal/interview"
	"github.com/MrWong99/intervue/pkg/provider/llm"
)

// Report is the final assessment of a whole interview.
type Report struct {
	OverallScore   float64   `json:"overall_score"`
	Summary        string    `json:"summary"`
	Strengths      []string  `json:"strengths"`
	Weaknesses     []string  `json:"weaknesses"`
	Recommendation string    `json:"recommendation"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Reporter writes final reports from a session record.
type Reporter struct {
	c caller
}

// NewReporter returns a reporter using the final_report prompt.
func NewReporter(p llm.Provider, prompts *PromptManager, opts Options) *Reporter {
	return &Reporter{c: newCaller(p, prompts, opts)}
}

// FinalReport summarizes snap for the given candidate and position. The
// overall score is clamped to 0..100.
func (r *Reporter) FinalReport(ctx context.Context, snap interview.RecordSnapshot, candidate, position string) (Report, error) {
	vars := map[string]any{
		"Candidate":   candidate,
		"Position":    position,
		"Questions":   snap.Questions,
		"Answers":     snap.Transcript(),
		"Evaluations": snap.Evaluations,
	}
	var rep Report
	if err := r.c.complete(ctx, "final_report", PromptFinalReport, vars, &rep); err != nil {
		return Report{}, err
	}
	rep.OverallScore = clamp(rep.OverallScore, 0, 100)
	rep.Summary = strings.TrimSpace(rep.Summary)
	rep.Recommendation = strings.ToLower(strings.TrimSpace(rep.Recommendation))
	rep.GeneratedAt = time.Now()
	return rep, nil
}
