package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// integratorDeps are the collaborators shared by every integrator of a
// registry.
type integratorDeps struct {
	evaluator  Evaluator
	questioner Questioner
	policy     func() FollowUpPolicy
	observer   Observer
}

// integrator consumes utterances for one session, pairs them with the most
// recent video frame, and drives evaluation and follow-up questions.
type integrator struct {
	session     *Session
	deps        integratorDeps
	evalTimeout time.Duration
}

func (in *integrator) run(ctx context.Context) {
	s := in.session
	slog.Debug("integrator started", "session_id", s.id)
	defer slog.Debug("integrator stopped", "session_id", s.id)

	for {
		text, err := s.handoff.Next(ctx)
		if err != nil {
			return
		}
		in.cycle(ctx, text)
		if ctx.Err() != nil {
			return
		}
	}
}

// cycle handles a single utterance. Collaborator failures end the cycle
// early but never the loop.
func (in *integrator) cycle(ctx context.Context, text string) {
	s := in.session

	var frame *Frame
	ts := time.Since(s.createdAt).Seconds()
	if f, ok := s.frames.TakeLatest(); ok {
		frame = &f
		ts = f.Timestamp
	}

	answer := Answer{Text: text, Frame: frame, Timestamp: ts, RecordedAt: time.Now()}
	s.record.appendAnswer(answer)
	in.deps.observer.AnswerRecorded(s.id, answer)

	policy := in.deps.policy()
	question := s.record.CurrentQuestion()

	if question != "" && in.deps.evaluator != nil {
		in.evaluate(ctx, question, answer, policy)
	}

	reason := policy.Reason(text)
	if reason == "" || in.deps.questioner == nil {
		return
	}
	in.followUp(ctx, question, text, reason)
}

func (in *integrator) evaluate(ctx context.Context, question string, answer Answer, policy FollowUpPolicy) {
	s := in.session
	cctx, cancel := in.callContext(ctx)
	defer cancel()

	eval, err := in.deps.evaluator.Evaluate(cctx, EvaluationInput{
		SessionID: s.id,
		Question:  question,
		Answer:    answer.Text,
		Frame:     answer.Frame,
		Audio:     PlaceholderAudioSignals(),
		Text:      policy.TextSignalsFor(answer.Text),
	})
	if err != nil {
		in.fail("evaluator", err)
		return
	}
	if eval.Question == "" {
		eval.Question = question
	}
	if eval.Answer == "" {
		eval.Answer = answer.Text
	}
	if eval.FrameTimestamp == nil && answer.Frame != nil {
		ts := answer.Frame.Timestamp
		eval.FrameTimestamp = &ts
	}
	if eval.EvaluatedAt.IsZero() {
		eval.EvaluatedAt = time.Now()
	}
	s.record.appendEvaluation(eval)
	in.deps.observer.EvaluationRecorded(s.id, eval)
}

func (in *integrator) followUp(ctx context.Context, question, answer, reason string) {
	s := in.session
	cctx, cancel := in.callContext(ctx)
	defer cancel()

	snap := s.record.Snapshot()
	next, err := in.deps.questioner.FollowUp(cctx, FollowUpInput{
		SessionID: s.id,
		Persona:   snap.Persona,
		Question:  question,
		Answer:    answer,
		Reason:    reason,
		History:   snap.Questions,
	})
	if err != nil {
		in.fail("questioner", err)
		return
	}
	if next == "" {
		in.fail("questioner", errors.New("empty follow-up question"))
		return
	}

	s.record.AskQuestion(next)
	in.deps.observer.FollowUpAsked(s.id, next)
	slog.Info("follow-up asked", "session_id", s.id, "reason", reason)

	ep := s.outbound()
	if ep == nil {
		slog.Debug("no endpoint attached for follow-up", "session_id", s.id)
		return
	}
	if err := ep.Send(ctx, next); err != nil {
		slog.Warn("failed to push follow-up", "session_id", s.id, "err", err)
	}
}

func (in *integrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if in.evalTimeout > 0 {
		return context.WithTimeout(ctx, in.evalTimeout)
	}
	return context.WithCancel(ctx)
}

func (in *integrator) fail(collaborator string, err error) {
	s := in.session
	wrapped := fmt.Errorf("%w: %s: %w", ErrCollaboratorFailure, collaborator, err)
	if errors.Is(err, context.Canceled) {
		slog.Debug("collaborator call cancelled", "session_id", s.id, "collaborator", collaborator)
		return
	}
	slog.Error("collaborator failed", "session_id", s.id, "collaborator", collaborator, "err", wrapped)
	in.deps.observer.CollaboratorFailed(s.id, collaborator, wrapped)
}
