package store

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Guard wraps a [Store] so that background writes from the live pipeline
// never fail their caller. UpsertResult and DeleteSession log and swallow
// backend errors; every other method propagates them. Any backend failure
// other than ErrNotFound, ErrConflict or ErrInvalid marks the store
// degraded until the next successful call.
//
// Guard implements [Store]. All methods are safe for concurrent use.
type Guard struct {
	store    Store
	degraded atomic.Bool
}

var _ Store = (*Guard)(nil)

// NewGuard returns a Guard around s.
func NewGuard(s Store) *Guard {
	return &Guard{store: s}
}

// Degraded reports whether the most recent backend call failed.
func (g *Guard) Degraded() bool { return g.degraded.Load() }

// Unwrap returns the guarded store.
func (g *Guard) Unwrap() Store { return g.store }

// track updates the degraded flag from err and returns err unchanged.
func (g *Guard) track(op string, err error) error {
	switch {
	case err == nil, errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrInvalid):
		g.degraded.Store(false)
	default:
		g.degraded.Store(true)
		slog.Warn("store guard: backend call failed", "op", op, "err", err)
	}
	return err
}

func (g *Guard) CreateSession(ctx context.Context, s Session) error {
	return g.track("CreateSession", g.store.CreateSession(ctx, s))
}

func (g *Guard) GetSession(ctx context.Context, id string) (Session, error) {
	s, err := g.store.GetSession(ctx, id)
	return s, g.track("GetSession", err)
}

func (g *Guard) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (Status, error) {
	old, err := g.store.UpdateStatus(ctx, id, status, at)
	return old, g.track("UpdateStatus", err)
}

func (g *Guard) ListSessions(ctx context.Context, skip, limit int) ([]Session, int, error) {
	out, total, err := g.store.ListSessions(ctx, skip, limit)
	return out, total, g.track("ListSessions", err)
}

// swallow drops backend failures while keeping the contract errors.
func (g *Guard) swallow(op, sessionID string, err error) error {
	err = g.track(op, err)
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalid) {
		return err
	}
	slog.Warn("store guard: swallowing error", "op", op, "session_id", sessionID, "err", err)
	return nil
}

// DeleteSession swallows backend failures. ErrNotFound is still returned.
func (g *Guard) DeleteSession(ctx context.Context, id string) error {
	return g.swallow("DeleteSession", id, g.store.DeleteSession(ctx, id))
}

func (g *Guard) GetResult(ctx context.Context, sessionID string) (Result, error) {
	r, err := g.store.GetResult(ctx, sessionID)
	return r, g.track("GetResult", err)
}

// UpsertResult swallows backend failures. ErrNotFound is still returned.
func (g *Guard) UpsertResult(ctx context.Context, r Result) error {
	return g.swallow("UpsertResult", r.SessionID, g.store.UpsertResult(ctx, r))
}

func (g *Guard) ApplyResultPatch(ctx context.Context, sessionID string, p ResultPatch) (Result, error) {
	r, err := g.store.ApplyResultPatch(ctx, sessionID, p)
	return r, g.track("ApplyResultPatch", err)
}

func (g *Guard) Stats(ctx context.Context) (Stats, error) {
	st, err := g.store.Stats(ctx)
	return st, g.track("Stats", err)
}

// Ping checks the backend and updates the degraded flag.
func (g *Guard) Ping(ctx context.Context) error {
	return g.track("Ping", g.store.Ping(ctx))
}

func (g *Guard) Close() error { return g.store.Close() }
