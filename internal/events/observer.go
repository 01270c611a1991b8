package events

import (
	"context"

	"github.com/MrWong99/intervue/internal/interview"
)

// Observer publishes session pipeline notifications as events.
type Observer struct {
	interview.NopObserver
	pub Publisher
}

var _ interview.Observer = (*Observer)(nil)

// NewObserver returns an observer publishing through pub.
func NewObserver(pub Publisher) *Observer {
	return &Observer{pub: pub}
}

func (o *Observer) publish(eventType, sessionID string, md map[string]any) {
	o.pub.Publish(context.Background(), New(eventType, sessionID, md))
}

func (o *Observer) SessionCreated(id string) {
	o.publish(TypeSessionCreated, id, nil)
}

func (o *Observer) SessionClosed(id string) {
	o.publish(TypeSessionClosed, id, nil)
}

func (o *Observer) AnswerRecorded(id string, a interview.Answer) {
	o.publish(TypeAnswerRecorded, id, map[string]any{
		"text":      a.Text,
		"timestamp": a.Timestamp,
		"has_frame": a.HasFrame(),
	})
}

func (o *Observer) EvaluationRecorded(id string, e interview.Evaluation) {
	o.publish(TypeEvaluationRecorded, id, map[string]any{
		"question": e.Question,
		"scores":   e.Scores,
		"comment":  e.Comment,
	})
}

func (o *Observer) FollowUpAsked(id, question string) {
	o.publish(TypeFollowUpAsked, id, map[string]any{"question": question})
}
