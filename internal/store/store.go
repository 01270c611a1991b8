// Package store persists interview session bookkeeping and results.
//
// The live pipeline never depends on the store: it only records what the
// REST API reports about a session. Backends live in subpackages; [Memory]
// is the in-process default.
package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

var (
	// ErrNotFound is returned when a session or result does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned by CreateSession for a duplicate id.
	ErrConflict = errors.New("store: already exists")

	// ErrInvalid is returned for values that fail validation.
	ErrInvalid = errors.New("store: invalid value")
)

// Status is the bookkeeping status of a session.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Statuses lists every valid status.
var Statuses = []Status{StatusWaiting, StatusInProgress, StatusCompleted, StatusFailed}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return slices.Contains(Statuses, s) }

// Session is the persisted record of an interview session.
type Session struct {
	ID        string         `json:"session_id"`
	UserID    string         `json:"user_id,omitempty"`
	Status    Status         `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Metadata  map[string]any `json:"metadata"`
}

// VideoAnalysis holds externally produced video analysis of a session.
type VideoAnalysis struct {
	Emotions     []map[string]any `json:"emotions"`
	Gestures     []map[string]any `json:"gestures"`
	EyeContact   *float64         `json:"eye_contact,omitempty"`
	PostureScore *float64         `json:"posture_score,omitempty"`
}

// Result is the assessment outcome of a session.
type Result struct {
	SessionID     string         `json:"session_id"`
	UserID        string         `json:"user_id,omitempty"`
	Transcript    []string       `json:"transcript"`
	VideoAnalysis *VideoAnalysis `json:"video_analysis,omitempty"`
	OverallScore  *float64       `json:"overall_score,omitempty"`
	Feedback      string         `json:"feedback,omitempty"`

	// Duration is the interview length in minutes.
	Duration  *float64  `json:"duration,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ResultPatch lists the result fields a client may change. Nil fields are
// left untouched.
type ResultPatch struct {
	Transcript    *[]string      `json:"transcript,omitempty"`
	VideoAnalysis *VideoAnalysis `json:"video_analysis,omitempty"`
	OverallScore  *float64       `json:"overall_score,omitempty"`
	Feedback      *string        `json:"feedback,omitempty"`
	Duration      *float64       `json:"duration,omitempty"`
}

// Validate checks value ranges.
func (p ResultPatch) Validate() error {
	var errs []error
	if p.OverallScore != nil && (*p.OverallScore < 0 || *p.OverallScore > 100) {
		errs = append(errs, fmt.Errorf("%w: overall_score %v outside 0..100", ErrInvalid, *p.OverallScore))
	}
	if p.Duration != nil && *p.Duration < 0 {
		errs = append(errs, fmt.Errorf("%w: negative duration %v", ErrInvalid, *p.Duration))
	}
	return errors.Join(errs...)
}

// Empty reports whether the patch changes nothing.
func (p ResultPatch) Empty() bool { return p == ResultPatch{} }

// Apply copies the set fields of p onto r.
func (p ResultPatch) Apply(r *Result) {
	if p.Transcript != nil {
		r.Transcript = slices.Clone(*p.Transcript)
	}
	if p.VideoAnalysis != nil {
		va := *p.VideoAnalysis
		r.VideoAnalysis = &va
	}
	if p.OverallScore != nil {
		v := *p.OverallScore
		r.OverallScore = &v
	}
	if p.Feedback != nil {
		r.Feedback = *p.Feedback
	}
	if p.Duration != nil {
		v := *p.Duration
		r.Duration = &v
	}
}

// Stats is an aggregate view over all sessions.
type Stats struct {
	TotalSessions      int            `json:"total_sessions"`
	StatusDistribution map[Status]int `json:"status_distribution"`
	TotalResults       int            `json:"total_results"`
}

// Store is the persistence contract shared by all backends. Implementations
// are safe for concurrent use.
type Store interface {
	// CreateSession inserts s. It returns ErrConflict if the id exists.
	CreateSession(ctx context.Context, s Session) error

	GetSession(ctx context.Context, id string) (Session, error)

	// UpdateStatus sets the status and returns the previous one. Moving to
	// StatusCompleted sets EndTime to at.
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (Status, error)

	// ListSessions returns a page of sessions, newest first, and the total
	// number of sessions.
	ListSessions(ctx context.Context, skip, limit int) ([]Session, int, error)

	// DeleteSession removes a session and its result.
	DeleteSession(ctx context.Context, id string) error

	GetResult(ctx context.Context, sessionID string) (Result, error)

	// UpsertResult inserts or replaces the result of an existing session.
	UpsertResult(ctx context.Context, r Result) error

	// ApplyResultPatch applies p to the session's result, creating an empty
	// result first when there is none.
	ApplyResultPatch(ctx context.Context, sessionID string, p ResultPatch) (Result, error)

	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// Normalize prepares s for insertion: UTC times truncated to microseconds
// and a non-nil metadata map. Backends call it so round trips compare equal.
func Normalize(s Session) Session {
	s.StartTime = s.StartTime.UTC().Truncate(time.Microsecond)
	if s.EndTime != nil {
		t := s.EndTime.UTC().Truncate(time.Microsecond)
		s.EndTime = &t
	}
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	} else {
		s.Metadata = maps.Clone(s.Metadata)
	}
	if s.Status == "" {
		s.Status = StatusWaiting
	}
	return s
}

// NormalizeResult is the [Result] counterpart of [Normalize].
func NormalizeResult(r Result) Result {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC().Truncate(time.Microsecond)
	if r.Transcript == nil {
		r.Transcript = []string{}
	} else {
		r.Transcript = slices.Clone(r.Transcript)
	}
	return r
}

// Page clamps skip and limit to sane values.
func Page(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return skip, limit
}
