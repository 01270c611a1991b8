package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// Memory is an in-process [Store]. Data is lost on restart.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]Session
	results  map[string]Result
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]Session),
		results:  make(map[string]Result),
	}
}

func (m *Memory) CreateSession(_ context.Context, s Session) error {
	s = Normalize(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("%w: session %q", ErrConflict, s.ID)
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: session %q", ErrNotFound, id)
	}
	return Normalize(s), nil
}

func (m *Memory) UpdateStatus(_ context.Context, id string, status Status, at time.Time) (Status, error) {
	if !status.Valid() {
		return "", fmt.Errorf("%w: status %q", ErrInvalid, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return "", fmt.Errorf("%w: session %q", ErrNotFound, id)
	}
	old := s.Status
	s.Status = status
	if status == StatusCompleted {
		t := at.UTC().Truncate(time.Microsecond)
		s.EndTime = &t
	}
	m.sessions[id] = s
	return old, nil
}

func (m *Memory) ListSessions(_ context.Context, skip, limit int) ([]Session, int, error) {
	skip, limit = Page(skip, limit)
	m.mu.RLock()
	all := slices.Collect(maps.Values(m.sessions))
	m.mu.RUnlock()

	slices.SortFunc(all, func(a, b Session) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	total := len(all)
	if skip >= total {
		return []Session{}, total, nil
	}
	page := all[skip:min(skip+limit, total)]
	out := make([]Session, len(page))
	for i, s := range page {
		out[i] = Normalize(s)
	}
	return out, total, nil
}

func (m *Memory) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: session %q", ErrNotFound, id)
	}
	delete(m.sessions, id)
	delete(m.results, id)
	return nil
}

func (m *Memory) GetResult(_ context.Context, sessionID string) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[sessionID]
	if !ok {
		return Result{}, fmt.Errorf("%w: result %q", ErrNotFound, sessionID)
	}
	return NormalizeResult(r), nil
}

func (m *Memory) UpsertResult(_ context.Context, r Result) error {
	r = NormalizeResult(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[r.SessionID]; !ok {
		return fmt.Errorf("%w: session %q", ErrNotFound, r.SessionID)
	}
	m.results[r.SessionID] = r
	return nil
}

func (m *Memory) ApplyResultPatch(_ context.Context, sessionID string, p ResultPatch) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return Result{}, fmt.Errorf("%w: session %q", ErrNotFound, sessionID)
	}
	r, ok := m.results[sessionID]
	if !ok {
		r = Result{SessionID: sessionID, UserID: s.UserID}
	}
	p.Apply(&r)
	r = NormalizeResult(r)
	m.results[sessionID] = r
	return NormalizeResult(r), nil
}

func (m *Memory) Stats(context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{
		TotalSessions:      len(m.sessions),
		StatusDistribution: make(map[Status]int, len(Statuses)),
		TotalResults:       len(m.results),
	}
	for _, s := range m.sessions {
		st.StatusDistribution[s.Status]++
	}
	return st, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
