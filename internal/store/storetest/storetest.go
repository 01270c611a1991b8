// Package storetest is a conformance suite run against every store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrWong99/intervue/internal/store"
)

// Opener returns a fresh, empty store. It registers its own cleanup.
type Opener func(t *testing.T) store.Store

var base = time.Date(2026, 3, 1, 9, 0, 0, 123456789, time.UTC)

func session(id string, offset time.Duration) store.Session {
	return store.Session{
		ID:        id,
		UserID:    "u-" + id,
		StartTime: base.Add(offset),
		Metadata:  map[string]any{"position": "backend"},
	}
}

func ptr[T any](v T) *T { return &v }

// Run executes the suite. Subtests run sequentially because some backends
// share one database.
func Run(t *testing.T, open Opener) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"SessionRoundTrip", testSessionRoundTrip},
		{"DuplicateSession", testDuplicateSession},
		{"UpdateStatus", testUpdateStatus},
		{"ListSessionsNewestFirst", testListSessions},
		{"DeleteSessionRemovesResult", testDeleteSession},
		{"ResultPatch", testResultPatch},
		{"UpsertResult", testUpsertResult},
		{"Stats", testStats},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

func mustCreate(t *testing.T, s store.Store, sess store.Session) {
	t.Helper()
	if err := s.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession(%s) error: %v", sess.ID, err)
	}
}

func testSessionRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	in := session("a", 0)
	mustCreate(t, s, in)

	got, err := s.GetSession(ctx, "a")
	if err != nil {
		t.Fatalf("GetSession() error: %v", err)
	}
	if got.ID != "a" || got.UserID != "u-a" || got.Status != store.StatusWaiting {
		t.Errorf("GetSession() = %+v", got)
	}
	if !got.StartTime.Equal(base.Truncate(time.Microsecond)) {
		t.Errorf("StartTime = %v, want %v", got.StartTime, base.Truncate(time.Microsecond))
	}
	if got.EndTime != nil {
		t.Errorf("EndTime = %v, want nil", got.EndTime)
	}
	if got.Metadata["position"] != "backend" {
		t.Errorf("Metadata = %v", got.Metadata)
	}

	if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetSession(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}

func testDuplicateSession(t *testing.T, s store.Store) {
	mustCreate(t, s, session("a", 0))
	if err := s.CreateSession(context.Background(), session("a", time.Second)); !errors.Is(err, store.ErrConflict) {
		t.Errorf("CreateSession(duplicate) error = %v, want ErrConflict", err)
	}
}

func testUpdateStatus(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, session("a", 0))

	old, err := s.UpdateStatus(ctx, "a", store.StatusInProgress, base)
	if err != nil || old != store.StatusWaiting {
		t.Fatalf("UpdateStatus(in_progress) = %q, %v", old, err)
	}
	got, _ := s.GetSession(ctx, "a")
	if got.EndTime != nil {
		t.Errorf("EndTime set before completion: %v", got.EndTime)
	}

	end := base.Add(30 * time.Minute)
	old, err = s.UpdateStatus(ctx, "a", store.StatusCompleted, end)
	if err != nil || old != store.StatusInProgress {
		t.Fatalf("UpdateStatus(completed) = %q, %v", old, err)
	}
	got, _ = s.GetSession(ctx, "a")
	if got.Status != store.StatusCompleted || got.EndTime == nil || !got.EndTime.Equal(end.Truncate(time.Microsecond)) {
		t.Errorf("after completion: status=%q end=%v", got.Status, got.EndTime)
	}

	if _, err := s.UpdateStatus(ctx, "missing", store.StatusFailed, base); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateStatus(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := s.UpdateStatus(ctx, "a", "paused", base); !errors.Is(err, store.ErrInvalid) {
		t.Errorf("UpdateStatus(paused) error = %v, want ErrInvalid", err)
	}
}

func testListSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := range 5 {
		mustCreate(t, s, session(fmt.Sprintf("s%d", i), time.Duration(i)*time.Minute))
	}

	page, total, err := s.ListSessions(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListSessions() error: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 || page[0].ID != "s3" || page[1].ID != "s2" {
		t.Errorf("page = %v, want [s3 s2]", ids(page))
	}

	page, _, _ = s.ListSessions(ctx, 10, 2)
	if len(page) != 0 {
		t.Errorf("page past end = %v, want empty", ids(page))
	}
}

func ids(ss []store.Session) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.ID
	}
	return out
}

func testDeleteSession(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, session("a", 0))
	if _, err := s.ApplyResultPatch(ctx, "a", store.ResultPatch{Feedback: ptr("ok")}); err != nil {
		t.Fatalf("ApplyResultPatch() error: %v", err)
	}

	if err := s.DeleteSession(ctx, "a"); err != nil {
		t.Fatalf("DeleteSession() error: %v", err)
	}
	if _, err := s.GetSession(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetSession after delete error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetResult(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetResult after delete error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteSession(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second DeleteSession() error = %v, want ErrNotFound", err)
	}
}

func testResultPatch(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, session("a", 0))

	if _, err := s.GetResult(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetResult(before patch) error = %v, want ErrNotFound", err)
	}

	r, err := s.ApplyResultPatch(ctx, "a", store.ResultPatch{
		OverallScore: ptr(82.5),
		Transcript:   ptr([]string{"你好", "我叫张三"}),
	})
	if err != nil {
		t.Fatalf("ApplyResultPatch() error: %v", err)
	}
	if r.UserID != "u-a" || *r.OverallScore != 82.5 || len(r.Transcript) != 2 {
		t.Errorf("patched result = %+v", r)
	}

	r, err = s.ApplyResultPatch(ctx, "a", store.ResultPatch{
		Feedback:      ptr("表达清晰"),
		VideoAnalysis: &store.VideoAnalysis{EyeContact: ptr(0.8)},
	})
	if err != nil {
		t.Fatalf("second ApplyResultPatch() error: %v", err)
	}
	got, err := s.GetResult(ctx, "a")
	if err != nil {
		t.Fatalf("GetResult() error: %v", err)
	}
	if got.OverallScore == nil || *got.OverallScore != 82.5 {
		t.Errorf("OverallScore lost: %v", got.OverallScore)
	}
	if got.Feedback != "表达清晰" || got.VideoAnalysis == nil || *got.VideoAnalysis.EyeContact != 0.8 {
		t.Errorf("GetResult() = %+v", got)
	}
	if got.Transcript[1] != "我叫张三" {
		t.Errorf("Transcript = %v", got.Transcript)
	}

	if _, err := s.ApplyResultPatch(ctx, "a", store.ResultPatch{OverallScore: ptr(101.0)}); !errors.Is(err, store.ErrInvalid) {
		t.Errorf("ApplyResultPatch(score 101) error = %v, want ErrInvalid", err)
	}
	if _, err := s.ApplyResultPatch(ctx, "missing", store.ResultPatch{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ApplyResultPatch(missing) error = %v, want ErrNotFound", err)
	}
}

func testUpsertResult(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, session("a", 0))

	in := store.Result{SessionID: "a", UserID: "u-a", Transcript: []string{"first"}, Feedback: "pending"}
	if err := s.UpsertResult(ctx, in); err != nil {
		t.Fatalf("UpsertResult() error: %v", err)
	}
	in.Transcript = []string{"first", "second"}
	in.Duration = ptr(12.0)
	if err := s.UpsertResult(ctx, in); err != nil {
		t.Fatalf("second UpsertResult() error: %v", err)
	}
	got, err := s.GetResult(ctx, "a")
	if err != nil {
		t.Fatalf("GetResult() error: %v", err)
	}
	if len(got.Transcript) != 2 || got.Duration == nil || *got.Duration != 12 || got.CreatedAt.IsZero() {
		t.Errorf("GetResult() = %+v", got)
	}

	if err := s.UpsertResult(ctx, store.Result{SessionID: "missing"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpsertResult(missing session) error = %v, want ErrNotFound", err)
	}
}

func testStats(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := range 3 {
		mustCreate(t, s, session(fmt.Sprintf("s%d", i), time.Duration(i)*time.Second))
	}
	if _, err := s.UpdateStatus(ctx, "s0", store.StatusCompleted, base); err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}
	if _, err := s.ApplyResultPatch(ctx, "s0", store.ResultPatch{Feedback: ptr("done")}); err != nil {
		t.Fatalf("ApplyResultPatch() error: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if st.TotalSessions != 3 || st.TotalResults != 1 {
		t.Errorf("Stats() = %+v", st)
	}
	if st.StatusDistribution[store.StatusWaiting] != 2 || st.StatusDistribution[store.StatusCompleted] != 1 {
		t.Errorf("StatusDistribution = %v", st.StatusDistribution)
	}
}
