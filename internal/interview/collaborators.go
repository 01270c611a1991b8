package interview

import "context"

// EvaluationInput is everything an [Evaluator] is given for one answer.
type EvaluationInput struct {
	SessionID string
	Question  string
	Answer    string

	// Frame is nil when the answer was not paired with a video frame.
	Frame *Frame

	Audio AudioSignals
	Text  TextSignals
}

// Evaluator scores an answer against the current question.
type Evaluator interface {
	Evaluate(ctx context.Context, in EvaluationInput) (Evaluation, error)
}

// FollowUpInput is everything a [Questioner] is given to produce a
// follow-up question.
type FollowUpInput struct {
	SessionID string
	Persona   string
	Question  string
	Answer    string

	// Reason is the policy rule that fired ("short_answer" or "hedging").
	Reason string

	// History holds the previously asked questions, oldest first.
	History []string
}

// Questioner generates a follow-up question for a weak answer.
type Questioner interface {
	FollowUp(ctx context.Context, in FollowUpInput) (string, error)
}

// Endpoint is an outbound channel to a connected client. Implementations
// must be comparable, typically pointers, since detaching matches by
// identity. An endpoint that also implements [io.Closer] is closed when a
// newer endpoint of the same kind replaces it.
type Endpoint interface {
	// Send delivers a text message. It returns an error wrapping
	// [ErrTransportDisconnect] once the client is gone.
	Send(ctx context.Context, text string) error
}
