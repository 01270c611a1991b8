// Package mock provides test doubles for the collaborators consumed by the
// interview package.
//
// Every double records its calls and is safe for concurrent use. Configure
// the exported response fields before handing a double to the code under
// test.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/intervue/internal/interview"
)

// Recognizer is a controllable [interview.Recognizer]. Tests push utterances
// with Emit; NextUtterance returns them in order.
type Recognizer struct {
	// FeedErr, if non-nil, is returned by Feed.
	FeedErr error

	// Hold, if non-nil, is waited on after an utterance has been taken and
	// before it is returned, simulating a recognition still in flight.
	Hold chan struct{}

	// IgnoreStop makes NextUtterance ignore both Stop and context
	// cancellation until Release is called, simulating a stuck engine.
	IgnoreStop bool

	// StopDelay, if positive, makes Stop block that long before returning,
	// simulating a final flush through a slow engine.
	StopDelay time.Duration

	utterances chan string
	stopCh     chan struct{}
	releaseCh  chan struct{}
	stopOnce   sync.Once
	relOnce    sync.Once

	mu        sync.Mutex
	fed       [][]byte
	taken     int
	stopCalls int
}

// NewRecognizer returns a recognizer with a buffered utterance queue.
func NewRecognizer() *Recognizer {
	return &Recognizer{
		utterances: make(chan string, 64),
		stopCh:     make(chan struct{}),
		releaseCh:  make(chan struct{}),
	}
}

// Emit makes text available to NextUtterance.
func (r *Recognizer) Emit(text string) { r.utterances <- text }

// Release unblocks a NextUtterance stuck because of IgnoreStop.
func (r *Recognizer) Release() { r.relOnce.Do(func() { close(r.releaseCh) }) }

// Feed implements interview.Recognizer.
func (r *Recognizer) Feed(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FeedErr != nil {
		return r.FeedErr
	}
	r.fed = append(r.fed, chunk)
	return nil
}

// NextUtterance implements interview.Recognizer.
func (r *Recognizer) NextUtterance(ctx context.Context) (string, error) {
	if r.IgnoreStop {
		<-r.releaseCh
		return "", interview.ErrRecognizerClosed
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-r.stopCh:
		return "", interview.ErrRecognizerClosed
	case text := <-r.utterances:
		r.mu.Lock()
		r.taken++
		r.mu.Unlock()
		if r.Hold != nil {
			<-r.Hold
		}
		return text, nil
	}
}

// Stop implements interview.Recognizer.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	r.stopCalls++
	r.mu.Unlock()
	r.stopOnce.Do(func() { close(r.stopCh) })
	if r.StopDelay > 0 {
		time.Sleep(r.StopDelay)
	}
	return nil
}

// Fed returns a copy of every chunk passed to Feed.
func (r *Recognizer) Fed() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.fed...)
}

// Taken returns how many utterances NextUtterance has dequeued.
func (r *Recognizer) Taken() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.taken
}

// StopCalls returns how many times Stop was called.
func (r *Recognizer) StopCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopCalls
}

// Evaluator is a mock [interview.Evaluator].
type Evaluator struct {
	mu sync.Mutex

	// Result is returned by Evaluate.
	Result interview.Evaluation

	// Err, if non-nil, is returned by Evaluate.
	Err error

	// EvaluateFunc, if non-nil, is called without the lock held and its
	// result is returned instead of Result and Err.
	EvaluateFunc func(ctx context.Context, in interview.EvaluationInput) (interview.Evaluation, error)

	calls []interview.EvaluationInput
}

// Evaluate implements interview.Evaluator.
func (e *Evaluator) Evaluate(ctx context.Context, in interview.EvaluationInput) (interview.Evaluation, error) {
	e.mu.Lock()
	e.calls = append(e.calls, in)
	fn := e.EvaluateFunc
	e.mu.Unlock()
	if fn != nil {
		return fn(ctx, in)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return interview.Evaluation{}, e.Err
	}
	return e.Result, nil
}

// Calls returns a copy of every input passed to Evaluate.
func (e *Evaluator) Calls() []interview.EvaluationInput {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]interview.EvaluationInput(nil), e.calls...)
}

// Questioner is a mock [interview.Questioner].
type Questioner struct {
	mu sync.Mutex

	// Question is returned by FollowUp.
	Question string

	// Err, if non-nil, is returned by FollowUp.
	Err error

	calls []interview.FollowUpInput
}

// FollowUp implements interview.Questioner.
func (q *Questioner) FollowUp(_ context.Context, in interview.FollowUpInput) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, in)
	if q.Err != nil {
		return "", q.Err
	}
	return q.Question, nil
}

// Calls returns a copy of every input passed to FollowUp.
func (q *Questioner) Calls() []interview.FollowUpInput {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]interview.FollowUpInput(nil), q.calls...)
}

// Endpoint is a mock [interview.Endpoint].
type Endpoint struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by Send.
	Err error

	sent   []string
	closed bool
}

// Send implements interview.Endpoint.
func (e *Endpoint) Send(_ context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.sent = append(e.sent, text)
	return nil
}

// Close records that the endpoint was closed. Send keeps working so tests
// can tell a closed endpoint from a failing one.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Closed reports whether Close was called.
func (e *Endpoint) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Sent returns a copy of every message passed to Send.
func (e *Endpoint) Sent() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sent...)
}

// Compile-time interface assertions.
var (
	_ interview.Recognizer = (*Recognizer)(nil)
	_ interview.Evaluator  = (*Evaluator)(nil)
	_ interview.Questioner = (*Questioner)(nil)
	_ interview.Endpoint   = (*Endpoint)(nil)
)
