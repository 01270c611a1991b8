package interview

// Observer receives lifecycle and pipeline notifications from sessions.
// Implementations must be cheap and non-blocking; they are called from the
// worker, integrator and registry goroutines.
type Observer interface {
	SessionCreated(sessionID string)
	SessionClosed(sessionID string)
	UtteranceDelivered(sessionID string)
	UtteranceDropped(sessionID string)
	FrameReceived(sessionID string, evicted bool)
	AnswerRecorded(sessionID string, a Answer)
	EvaluationRecorded(sessionID string, e Evaluation)
	FollowUpAsked(sessionID, question string)
	CollaboratorFailed(sessionID, collaborator string, err error)
	WorkerLeaked(sessionID string)
}

// NopObserver ignores every notification. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) SessionCreated(string)                    {}
func (NopObserver) SessionClosed(string)                     {}
func (NopObserver) UtteranceDelivered(string)                {}
func (NopObserver) UtteranceDropped(string)                  {}
func (NopObserver) FrameReceived(string, bool)               {}
func (NopObserver) AnswerRecorded(string, Answer)            {}
func (NopObserver) EvaluationRecorded(string, Evaluation)    {}
func (NopObserver) FollowUpAsked(string, string)             {}
func (NopObserver) CollaboratorFailed(string, string, error) {}
func (NopObserver) WorkerLeaked(string)                      {}

var _ Observer = NopObserver{}

// MultiObserver fans every notification out to obs in order. Nil entries are
// skipped.
func MultiObserver(obs ...Observer) Observer {
	m := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

type multiObserver []Observer

func (m multiObserver) SessionCreated(id string) {
	for _, o := range m {
		o.SessionCreated(id)
	}
}

func (m multiObserver) SessionClosed(id string) {
	for _, o := range m {
		o.SessionClosed(id)
	}
}

func (m multiObserver) UtteranceDelivered(id string) {
	for _, o := range m {
		o.UtteranceDelivered(id)
	}
}

func (m multiObserver) UtteranceDropped(id string) {
	for _, o := range m {
		o.UtteranceDropped(id)
	}
}

func (m multiObserver) FrameReceived(id string, evicted bool) {
	for _, o := range m {
		o.FrameReceived(id, evicted)
	}
}

func (m multiObserver) AnswerRecorded(id string, a Answer) {
	for _, o := range m {
		o.AnswerRecorded(id, a)
	}
}

func (m multiObserver) EvaluationRecorded(id string, e Evaluation) {
	for _, o := range m {
		o.EvaluationRecorded(id, e)
	}
}

func (m multiObserver) FollowUpAsked(id, question string) {
	for _, o := range m {
		o.FollowUpAsked(id, question)
	}
}

func (m multiObserver) CollaboratorFailed(id, collaborator string, err error) {
	for _, o := range m {
		o.CollaboratorFailed(id, collaborator, err)
	}
}

func (m multiObserver) WorkerLeaked(id string) {
	for _, o := range m {
		o.WorkerLeaked(id)
	}
}
