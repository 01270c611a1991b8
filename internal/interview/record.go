package interview

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Answer is one finalized utterance paired with the frame that was freshest
// when it was consumed.
type Answer struct {
	Text string `json:"text"`

	// Frame is nil when no frame was buffered at pairing time.
	Frame *Frame `json:"-"`

	// Timestamp is the paired frame's timestamp, or seconds since session
	// start when Frame is nil.
	Timestamp float64 `json:"timestamp"`

	RecordedAt time.Time `json:"recorded_at"`
}

// HasFrame reports whether a video frame was paired with the answer.
func (a Answer) HasFrame() bool { return a.Frame != nil }

// Evaluation is the structured assessment of a single answer.
type Evaluation struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`

	// Scores maps indicator names (e.g. "relevance", "clarity") to a score
	// in the range 0..10.
	Scores map[string]float64 `json:"scores"`

	Comment string `json:"comment,omitempty"`

	// FrameTimestamp is set when the evaluated answer carried a frame.
	FrameTimestamp *float64 `json:"frame_timestamp,omitempty"`

	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Record is the accumulated interview state of a session. Its lists are
// append-only while the session is active.
type Record struct {
	mu              sync.RWMutex
	questions       []string
	answers         []Answer
	evaluations     []Evaluation
	currentQuestion string
	persona         string
}

// RecordSnapshot is an immutable copy of a [Record].
type RecordSnapshot struct {
	Questions       []string     `json:"questions"`
	Answers         []Answer     `json:"answers"`
	Evaluations     []Evaluation `json:"evaluations"`
	CurrentQuestion string       `json:"current_question,omitempty"`
	Persona         string       `json:"interviewer_persona,omitempty"`
}

// Summary carries the counters exposed by the bookkeeping API.
type Summary struct {
	QuestionsCount   int    `json:"questions_count"`
	AnswersCount     int    `json:"answers_count"`
	EvaluationsCount int    `json:"evaluations_count"`
	CurrentQuestion  string `json:"current_question"`
	Persona          string `json:"interviewer_persona"`
}

// SetCurrentQuestion replaces the question that subsequent answers are
// evaluated against. An empty q disables evaluation.
func (r *Record) SetCurrentQuestion(q string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentQuestion = q
}

// AskQuestion makes q the current question and appends it to the asked
// questions.
func (r *Record) AskQuestion(q string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentQuestion = q
	r.questions = append(r.questions, q)
}

// SetPersona sets the interviewer persona used for follow-up questions.
func (r *Record) SetPersona(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persona = p
}

// CurrentQuestion returns the active question, or "".
func (r *Record) CurrentQuestion() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentQuestion
}

func (r *Record) appendAnswer(a Answer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, a)
}

func (r *Record) appendEvaluation(e Evaluation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluations = append(r.evaluations, e)
}

// Snapshot returns a deep copy of the record.
func (r *Record) Snapshot() RecordSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	answers := make([]Answer, len(r.answers))
	for i, a := range r.answers {
		if a.Frame != nil {
			f := *a.Frame
			f.Payload = slices.Clone(f.Payload)
			a.Frame = &f
		}
		answers[i] = a
	}
	evals := make([]Evaluation, len(r.evaluations))
	for i, e := range r.evaluations {
		e.Scores = maps.Clone(e.Scores)
		evals[i] = e
	}
	return RecordSnapshot{
		Questions:       slices.Clone(r.questions),
		Answers:         answers,
		Evaluations:     evals,
		CurrentQuestion: r.currentQuestion,
		Persona:         r.persona,
	}
}

// Summary returns the record's counters.
func (r *Record) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Summary{
		QuestionsCount:   len(r.questions),
		AnswersCount:     len(r.answers),
		EvaluationsCount: len(r.evaluations),
		CurrentQuestion:  r.currentQuestion,
		Persona:          r.persona,
	}
}

// Transcript returns the answer texts in order.
func (s RecordSnapshot) Transcript() []string {
	out := make([]string, len(s.Answers))
	for i, a := range s.Answers {
		out[i] = a.Text
	}
	return out
}
