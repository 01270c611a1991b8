package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/intervue/internal/assess"
	"github.com/MrWong99/intervue/internal/events"
	"github.com/MrWong99/intervue/internal/interview"
	"github.com/MrWong99/intervue/internal/observe"
	"github.com/MrWong99/intervue/internal/store"
)

// Placeholders stored in a result that was read before anything was
// recorded for its session.
const (
	PlaceholderTranscript = "暂无转录内容"
	PlaceholderFeedback   = "面试进行中或暂无分析结果"
)

// ErrNoReporter is returned by [Service.FinalReport] when no reporter is
// configured.
var ErrNoReporter = errors.New("api: final reports are not configured")

// Reporter generates the final assessment of a session.
type Reporter interface {
	FinalReport(ctx context.Context, snap interview.RecordSnapshot, candidate, position string) (assess.Report, error)
}

// ServiceOption configures a [Service].
type ServiceOption func(*Service)

// WithPublisher sets the publisher for bookkeeping events.
func WithPublisher(p events.Publisher) ServiceOption {
	return func(s *Service) {
		if p != nil {
			s.pub = p
		}
	}
}

// WithReporter sets the final report generator.
func WithReporter(r Reporter) ServiceOption {
	return func(s *Service) { s.reporter = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// Service ties the persisted bookkeeping of sessions to the live registry.
type Service struct {
	store    store.Store
	reg      *interview.Registry
	pub      events.Publisher
	reporter Reporter
	now      func() time.Time
}

// NewService returns a service over st and reg.
func NewService(st store.Store, reg *interview.Registry, opts ...ServiceOption) *Service {
	s := &Service{store: st, reg: reg, pub: events.Nop{}, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// StatusChange describes a completed status update.
type StatusChange struct {
	SessionID string       `json:"session_id"`
	OldStatus store.Status `json:"old_status"`
	NewStatus store.Status `json:"new_status"`
	EndTime   *time.Time   `json:"end_time"`
}

// Statistics extends the store aggregates with the number of live sessions.
type Statistics struct {
	store.Stats
	ActiveSessions int `json:"active_sessions"`
}

// Start persists a new session in the waiting state and registers its live
// pipeline.
func (s *Service) Start(ctx context.Context, userID string, metadata map[string]any) (store.Session, error) {
	sess := store.Normalize(store.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    store.StatusWaiting,
		StartTime: s.now(),
		Metadata:  metadata,
	})
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return store.Session{}, fmt.Errorf("api: persist session: %w", err)
	}

	// The recognizer stream outlives the request.
	if _, err := s.reg.Create(context.WithoutCancel(ctx), sess.ID); err != nil {
		if derr := s.store.DeleteSession(ctx, sess.ID); derr != nil {
			slog.Warn("failed to roll back session", "session_id", sess.ID, "err", derr)
		}
		if errors.Is(err, interview.ErrAlreadyExists) {
			return store.Session{}, err
		}
		return store.Session{}, fmt.Errorf("%w: %v", interview.ErrCollaboratorFailure, err)
	}

	slog.Info("interview session started", "session_id", sess.ID, "user_id", userID)
	return sess, nil
}

// Session returns the persisted session id.
func (s *Service) Session(ctx context.Context, id string) (store.Session, error) {
	return s.store.GetSession(ctx, id)
}

// UpdateStatus moves session id to status.
func (s *Service) UpdateStatus(ctx context.Context, id string, status store.Status) (StatusChange, error) {
	if !status.Valid() {
		return StatusChange{}, fmt.Errorf("%w: unknown status %q", store.ErrInvalid, status)
	}
	old, err := s.store.UpdateStatus(ctx, id, status, s.now())
	if err != nil {
		return StatusChange{}, err
	}
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return StatusChange{}, err
	}

	slog.Info("session status updated", "session_id", id, "from", old, "to", status)
	s.pub.Publish(ctx, events.New(events.TypeSessionStatusChanged, id, map[string]any{
		"old_status": string(old),
		"new_status": string(status),
	}))
	return StatusChange{SessionID: id, OldStatus: old, NewStatus: status, EndTime: sess.EndTime}, nil
}

// List returns a page of sessions, newest first, and the total count.
func (s *Service) List(ctx context.Context, skip, limit int) ([]store.Session, int, error) {
	return s.store.ListSessions(ctx, skip, limit)
}

// Delete stops the live pipeline of session id and removes it together with
// its result.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.GetSession(ctx, id); err != nil {
		return err
	}
	// Teardown outlives a dropped client.
	if err := s.reg.Cleanup(context.WithoutCancel(ctx), id); err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	slog.Info("interview session deleted", "session_id", id)
	return nil
}

// Result returns the result of session id. A placeholder result is created
// on first read. While the session is live its transcript is taken from the
// in-memory record.
func (s *Service) Result(ctx context.Context, id string) (store.Result, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return store.Result{}, err
	}

	res, err := s.store.GetResult(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		res = store.NormalizeResult(store.Result{
			SessionID:  id,
			UserID:     sess.UserID,
			Transcript: []string{PlaceholderTranscript},
			Feedback:   PlaceholderFeedback,
			CreatedAt:  s.now(),
		})
		if err := s.store.UpsertResult(ctx, res); err != nil {
			return store.Result{}, err
		}
	case err != nil:
		return store.Result{}, err
	}

	if live, err := s.reg.Get(id); err == nil {
		if transcript := live.Snapshot().Transcript(); len(transcript) > 0 {
			res.Transcript = transcript
		}
	}
	return res, nil
}

// PatchResult applies p to the result of session id.
func (s *Service) PatchResult(ctx context.Context, id string, p store.ResultPatch) (store.Result, error) {
	if err := p.Validate(); err != nil {
		return store.Result{}, err
	}
	res, err := s.store.ApplyResultPatch(ctx, id, p)
	if err != nil {
		return store.Result{}, err
	}
	slog.Info("interview result updated", "session_id", id)
	return res, nil
}

// Statistics returns aggregate counts.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return Statistics{}, err
	}
	return Statistics{Stats: st, ActiveSessions: s.reg.Len()}, nil
}

// AskQuestion makes q the current question of live session id and records
// it as asked.
func (s *Service) AskQuestion(id, q string) error {
	q = strings.TrimSpace(q)
	if q == "" {
		return fmt.Errorf("%w: empty question", store.ErrInvalid)
	}
	live, err := s.reg.Get(id)
	if err != nil {
		return err
	}
	live.AskQuestion(q)
	slog.Info("current question set", "session_id", id)
	return nil
}

// SetPersona sets the interviewer persona of live session id.
func (s *Service) SetPersona(id, persona string) error {
	live, err := s.reg.Get(id)
	if err != nil {
		return err
	}
	live.SetPersona(strings.TrimSpace(persona))
	return nil
}

// Summary returns the record counters of live session id.
func (s *Service) Summary(id string) (interview.Summary, error) {
	live, err := s.reg.Get(id)
	if err != nil {
		return interview.Summary{}, err
	}
	return live.Summary(), nil
}

// FinalReport assesses the full record of live session id and stores the
// overall score and summary on its result.
func (s *Service) FinalReport(ctx context.Context, id, candidate, position string) (assess.Report, error) {
	if s.reporter == nil {
		return assess.Report{}, ErrNoReporter
	}
	live, err := s.reg.Get(id)
	if err != nil {
		return assess.Report{}, err
	}

	rep, err := s.reporter.FinalReport(observe.WithSession(ctx, id), live.Snapshot(), candidate, position)
	if err != nil {
		return assess.Report{}, fmt.Errorf("%w: final report: %v", interview.ErrCollaboratorFailure, err)
	}

	score := rep.OverallScore
	feedback := rep.Summary
	if _, err := s.store.ApplyResultPatch(ctx, id, store.ResultPatch{
		OverallScore: &score,
		Feedback:     &feedback,
	}); err != nil {
		return assess.Report{}, err
	}

	s.pub.Publish(ctx, events.New(events.TypeReportGenerated, id, map[string]any{
		"overall_score":  rep.OverallScore,
		"recommendation": rep.Recommendation,
	}))
	slog.Info("final report generated", "session_id", id, "overall_score", rep.OverallScore)
	return rep, nil
}
