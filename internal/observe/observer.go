package observe

import (
	"context"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/intervue/internal/interview"
)

// SessionObserver turns session pipeline notifications into metrics and
// debug logs.
type SessionObserver struct {
	m *Metrics
}

var _ interview.Observer = (*SessionObserver)(nil)

// NewSessionObserver returns an observer recording into m. A nil m only logs.
func NewSessionObserver(m *Metrics) *SessionObserver {
	return &SessionObserver{m: m}
}

func (o *SessionObserver) add(c metric.Int64Counter, kv ...string) {
	if o.m == nil {
		return
	}
	attrs := make([]metric.AddOption, 0, 1)
	if len(kv) == 2 {
		attrs = append(attrs, metric.WithAttributes(Attr(kv[0], kv[1])))
	}
	c.Add(context.Background(), 1, attrs...)
}

func (o *SessionObserver) SessionCreated(id string) {
	if o.m != nil {
		o.m.ActiveSessions.Add(context.Background(), 1)
	}
	slog.Debug("session created", "session_id", id)
}

func (o *SessionObserver) SessionClosed(id string) {
	if o.m != nil {
		o.m.ActiveSessions.Add(context.Background(), -1)
	}
	slog.Debug("session closed", "session_id", id)
}

func (o *SessionObserver) UtteranceDelivered(string) {
	if o.m != nil {
		o.add(o.m.Utterances, "outcome", "delivered")
	}
}

func (o *SessionObserver) UtteranceDropped(id string) {
	if o.m != nil {
		o.add(o.m.Utterances, "outcome", "dropped")
	}
	slog.Warn("utterance dropped", "session_id", id)
}

func (o *SessionObserver) FrameReceived(_ string, evicted bool) {
	if o.m != nil {
		o.add(o.m.Frames, "evicted", strconv.FormatBool(evicted))
	}
}

func (o *SessionObserver) AnswerRecorded(id string, a interview.Answer) {
	if o.m != nil {
		o.add(o.m.Answers, "with_frame", strconv.FormatBool(a.HasFrame()))
	}
	slog.Debug("answer recorded", "session_id", id, "with_frame", a.HasFrame())
}

func (o *SessionObserver) EvaluationRecorded(id string, _ interview.Evaluation) {
	if o.m != nil {
		o.add(o.m.Evaluations)
	}
}

func (o *SessionObserver) FollowUpAsked(id, question string) {
	if o.m != nil {
		o.add(o.m.FollowUps)
	}
	slog.Debug("follow-up asked", "session_id", id, "question", question)
}

func (o *SessionObserver) CollaboratorFailed(id, collaborator string, err error) {
	if o.m != nil {
		o.add(o.m.CollaboratorErrors, "collaborator", collaborator)
	}
	slog.Warn("collaborator failed", "session_id", id, "collaborator", collaborator, "err", err)
}

func (o *SessionObserver) WorkerLeaked(id string) {
	if o.m != nil {
		o.add(o.m.WorkerLeaks)
	}
	slog.Error("transcription worker did not stop in time", "session_id", id)
}
