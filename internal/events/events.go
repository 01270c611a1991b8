// Package events publishes interview lifecycle events for downstream
// consumers. Publishing is fire-and-forget: failures are logged and never
// reach the interview pipeline.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeSessionCreated       = "session.created"
	TypeSessionClosed        = "session.closed"
	TypeSessionStatusChanged = "session.status_changed"
	TypeAnswerRecorded       = "answer.recorded"
	TypeEvaluationRecorded   = "evaluation.recorded"
	TypeFollowUpAsked        = "followup.asked"
	TypeReportGenerated      = "report.generated"
)

// Event is one published message.
type Event struct {
	EventID   string         `json:"event_id"`
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// New returns an event with a fresh id and the current time.
func New(eventType, sessionID string, metadata map[string]any) Event {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Event{
		EventID:   uuid.NewString(),
		SessionID: sessionID,
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

// Publisher delivers events. Publish must not block on the network.
type Publisher interface {
	Publish(ctx context.Context, e Event)
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
func (Nop) Close() error                   { return nil }

var _ Publisher = Nop{}
