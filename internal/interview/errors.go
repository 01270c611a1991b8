package interview

import "errors"

var (
	// ErrNotFound is returned when an operation references a session id that
	// is not registered, or whose session is already shutting down.
	ErrNotFound = errors.New("interview: session not found")

	// ErrAlreadyExists is returned by [Registry.Create] for a duplicate id.
	ErrAlreadyExists = errors.New("interview: session already exists")

	// ErrTransportDisconnect is returned by endpoints once the underlying
	// connection is gone.
	ErrTransportDisconnect = errors.New("interview: transport disconnected")

	// ErrCollaboratorFailure wraps evaluator and questioner errors. It is
	// logged by the integrator and never propagated to a transport.
	ErrCollaboratorFailure = errors.New("interview: collaborator failure")

	// ErrWorkerStallTimeout is logged when a transcription worker fails to
	// exit within its stop timeout.
	ErrWorkerStallTimeout = errors.New("interview: transcription worker stall timeout")

	// ErrWorkerStopped is returned by [Worker.Feed] after [Worker.Stop].
	ErrWorkerStopped = errors.New("interview: transcription worker stopped")

	// ErrRecognizerClosed is returned by [Recognizer.NextUtterance] once the
	// recognizer has been stopped and has no more utterances.
	ErrRecognizerClosed = errors.New("interview: recognizer closed")
)
