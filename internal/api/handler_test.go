package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrWong99/intervue/internal/api"
	"github.com/MrWong99/intervue/internal/assess"
	"github.com/MrWong99/intervue/internal/events"
	"github.com/MrWong99/intervue/internal/interview"
	"github.com/MrWong99/intervue/internal/interview/mock"
	"github.com/MrWong99/intervue/internal/store"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) Close() error { return nil }

func (r *recorder) ofType(typ string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.EventType == typ {
			out = append(out, e)
		}
	}
	return out
}

type fakeReporter struct {
	report assess.Report
	err    error

	mu    sync.Mutex
	snaps []interview.RecordSnapshot
}

func (f *fakeReporter) FinalReport(_ context.Context, snap interview.RecordSnapshot, _, _ string) (assess.Report, error) {
	f.mu.Lock()
	f.snaps = append(f.snaps, snap)
	f.mu.Unlock()
	return f.report, f.err
}

type fixture struct {
	srv   *httptest.Server
	reg   *interview.Registry
	store *store.Memory
	pub   *recorder

	mu   sync.Mutex
	recs map[string]*mock.Recognizer
}

func newFixture(t *testing.T, opts ...api.ServiceOption) *fixture {
	t.Helper()
	f := &fixture{
		store: store.NewMemory(),
		pub:   &recorder{},
		recs:  make(map[string]*mock.Recognizer),
	}
	f.reg = interview.NewRegistry(func(_ context.Context, id string) (interview.Recognizer, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		rec := mock.NewRecognizer()
		f.recs[id] = rec
		return rec, nil
	}, interview.WithSessionConfig(interview.SessionConfig{
		FrameBufferCapacity: 10,
		WorkerStopTimeout:   time.Second,
	}))

	svc := api.NewService(f.store, f.reg, append([]api.ServiceOption{api.WithPublisher(f.pub)}, opts...)...)
	r := chi.NewRouter()
	api.NewHandler(svc).Routes(r)
	f.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		f.srv.Close()
		_ = f.reg.Shutdown(context.Background())
	})
	return f
}

func (f *fixture) rec(id string) *mock.Recognizer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recs[id]
}

type response struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
	Timestamp time.Time       `json:"timestamp"`
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, response) {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	if out.Timestamp.IsZero() {
		t.Errorf("%s %s: envelope has no timestamp", method, path)
	}
	return resp.StatusCode, out
}

func decodeData(t *testing.T, r response, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", r.Data, err)
	}
}

// start creates a session through the API and returns its id.
func (f *fixture) start(t *testing.T) string {
	t.Helper()
	code, resp := f.do(t, http.MethodPost, "/api/interview/start", `{"user_id":"u1","metadata":{"team":"infra"}}`)
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("start = %d %+v", code, resp)
	}
	var data struct {
		SessionID string       `json:"session_id"`
		Status    store.Status `json:"status"`
		StartTime time.Time    `json:"start_time"`
	}
	decodeData(t, resp, &data)
	if _, err := uuid.Parse(data.SessionID); err != nil {
		t.Fatalf("session_id %q is not a uuid: %v", data.SessionID, err)
	}
	if data.Status != store.StatusWaiting || data.StartTime.IsZero() {
		t.Errorf("start data = %+v", data)
	}
	return data.SessionID
}

func TestStart_RegistersAndPersists(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.start(t)

	if _, err := f.reg.Get(id); err != nil {
		t.Errorf("registry Get() error: %v", err)
	}
	sess, err := f.store.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("store GetSession() error: %v", err)
	}
	if sess.UserID != "u1" || sess.Metadata["team"] != "infra" {
		t.Errorf("persisted session = %+v", sess)
	}

	code, resp := f.do(t, http.MethodGet, "/api/interview/session/"+id, "")
	if code != http.StatusOK {
		t.Fatalf("get session = %d %+v", code, resp)
	}
	var got store.Session
	decodeData(t, resp, &got)
	if got.ID != id || got.Status != store.StatusWaiting {
		t.Errorf("get session data = %+v", got)
	}
}

func TestStart_EmptyBody(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	code, resp := f.do(t, http.MethodPost, "/api/interview/start", "")
	if code != http.StatusOK || !resp.Success {
		t.Errorf("start with empty body = %d %+v", code, resp)
	}
}

func TestErrors_Envelope(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.start(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"unknown session", http.MethodGet, "/api/interview/session/nope", "", http.StatusNotFound, api.CodeSessionNotFound},
		{"unknown result", http.MethodGet, "/api/interview/results/nope", "", http.StatusNotFound, api.CodeSessionNotFound},
		{"unknown summary", http.MethodGet, "/api/interview/session/nope/summary", "", http.StatusNotFound, api.CodeSessionNotFound},
		{"unknown delete", http.MethodDelete, "/api/interview/session/nope", "", http.StatusNotFound, api.CodeSessionNotFound},
		{"bad status", http.MethodPut, "/api/interview/session/" + id + "/status?status=paused", "", http.StatusBadRequest, api.CodeInvalidRequest},
		{"missing status", http.MethodPut, "/api/interview/session/" + id + "/status", "", http.StatusBadRequest, api.CodeInvalidRequest},
		{"bad skip", http.MethodGet, "/api/interview/sessions?skip=-1", "", http.StatusBadRequest, api.CodeInvalidRequest},
		{"bad limit", http.MethodGet, "/api/interview/sessions?limit=abc", "", http.StatusBadRequest, api.CodeInvalidRequest},
		{"unknown patch field", http.MethodPost, "/api/interview/results/" + id, `{"session_id":"other"}`, http.StatusBadRequest, api.CodeInvalidRequest},
		{"score out of range", http.MethodPost, "/api/interview/results/" + id, `{"overall_score":150}`, http.StatusBadRequest, api.CodeInvalidRequest},
		{"malformed json", http.MethodPost, "/api/interview/start", `{"user_id":`, http.StatusBadRequest, api.CodeInvalidRequest},
		{"empty question", http.MethodPost, "/api/interview/session/" + id + "/question", `{"question":"  "}`, http.StatusBadRequest, api.CodeInvalidRequest},
		{"question unknown session", http.MethodPost, "/api/interview/session/nope/question?question=hi", "", http.StatusNotFound, api.CodeSessionNotFound},
		{"no reporter", http.MethodPost, "/api/interview/session/" + id + "/final-report", "", http.StatusNotImplemented, api.CodeNotConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := f.do(t, tt.method, tt.path, tt.body)
			if code != tt.wantCode {
				t.Errorf("status = %d, want %d (%+v)", code, tt.wantCode, resp)
			}
			if resp.Success || resp.ErrorCode != tt.wantErr || resp.Message == "" {
				t.Errorf("envelope = %+v, want error_code %s", resp, tt.wantErr)
			}
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.start(t)

	code, resp := f.do(t, http.MethodPut, "/api/interview/session/"+id+"/status", `{"status":"in_progress"}`)
	if code != http.StatusOK {
		t.Fatalf("status via body = %d %+v", code, resp)
	}

	code, resp = f.do(t, http.MethodPut, "/api/interview/session/"+id+"/status?status=completed", "")
	if code != http.StatusOK {
		t.Fatalf("status via query = %d %+v", code, resp)
	}
	var change api.StatusChange
	decodeData(t, resp, &change)
	if change.OldStatus != store.StatusInProgress || change.NewStatus != store.StatusCompleted {
		t.Errorf("change = %+v, want in_progress -> completed", change)
	}
	if change.EndTime == nil {
		t.Error("end_time is nil after completing")
	}

	evs := f.pub.ofType(events.TypeSessionStatusChanged)
	if len(evs) != 2 {
		t.Fatalf("status events = %d, want 2", len(evs))
	}
	if evs[1].Metadata["new_status"] != "completed" || evs[1].SessionID != id {
		t.Errorf("last status event = %+v", evs[1])
	}
}

func TestListSessions_Paginates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for range 3 {
		f.start(t)
	}

	code, resp := f.do(t, http.MethodGet, "/api/interview/sessions?skip=1&limit=1", "")
	if code != http.StatusOK {
		t.Fatalf("list = %d %+v", code, resp)
	}
	var page struct {
		Sessions []store.Session `json:"sessions"`
		Total    int             `json:"total"`
		Skip     int             `json:"skip"`
		Limit    int             `json:"limit"`
	}
	decodeData(t, resp, &page)
	if page.Total != 3 || len(page.Sessions) != 1 || page.Skip != 1 || page.Limit != 1 {
		t.Errorf("page = %+v", page)
	}
}

func TestResults_DefaultThenLiveTranscript(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.start(t)

	code, resp := f.do(t, http.MethodGet, "/api/interview/results/"+id, "")
	if code != http.StatusOK {
		t.Fatalf("results = %d %+v", code, resp)
	}
	var res store.Result
	decodeData(t, resp, &res)
	if len(res.Transcript) != 1 || res.Transcript[0] != api.PlaceholderTranscript {
		t.Errorf("default transcript = %v", res.Transcript)
	}
	if res.Feedback != api.PlaceholderFeedback || res.OverallScore != nil || res.UserID != "u1" {
		t.Errorf("default result = %+v", res)
	}

	f.rec(id).Emit("I built the deployment pipeline for our team.")
	deadline := time.Now().Add(5 * time.Second)
	for {
		code, resp = f.do(t, http.MethodGet, "/api/interview/session/"+id+"/summary", "")
		var sum interview.Summary
		decodeData(t, resp, &sum)
		if sum.AnswersCount == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("answer never recorded, summary = %+v", sum)
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, resp = f.do(t, http.MethodGet, "/api/interview/results/"+id, "")
	decodeData(t, resp, &res)
	if len(res.Transcript) != 1 || res.Transcript[0] != "I built the deployment pipeline for our team." {
		t.Errorf("live transcript = %v", res.Transcript)
	}
}

func TestPatchResult(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.start(t)

	code, resp := f.do(t, http.MethodPost, "/api/interview/results/"+id,
		`{"overall_score":82.5,"feedback":"solid","duration":31,"transcript":["a","b"]}`)
	if code != http.StatusOK {
		t.Fatalf("patch = %d %+v", code, resp)
	}
	var res store.Result
	decodeData(t, resp, &res)
	if res.OverallScore == nil || *res.OverallScore != 82.5 || res.Feedback != "solid" ||
		res.Duration == nil || *res.Duration != 31 || len(res.Transcript) != 2 {
		t.Errorf("patched result = %+v", res)
	}
	if res.SessionID != id {
		t.Errorf("SessionID = %q, want %q", res.SessionID, id)
	}
}

func TestLiveControls(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.start(t)
	base := "/api/interview/session/" + id

	if code, resp := f.do(t, http.MethodPost, base+"/question", `{"question":"Describe a hard bug."}`); code != http.StatusOK {
		t.Fatalf("question = %d %+v", code, resp)
	}
	if code, resp := f.do(t, http.MethodPost, base+"/persona?persona=strict", ""); code != http.StatusOK {
		t.Fatalf("persona = %d %+v", code, resp)
	}

	_, resp := f.do(t, http.MethodGet, base+"/summary", "")
	var sum interview.Summary
	decodeData(t, resp, &sum)
	want := interview.Summary{QuestionsCount: 1, CurrentQuestion: "Describe a hard bug.", Persona: "strict"}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}

	_, resp = f.do(t, http.MethodGet, "/api/interview/statistics", "")
	var stats struct {
		TotalSessions      int                  `json:"total_sessions"`
		StatusDistribution map[store.Status]int `json:"status_distribution"`
		TotalResults       int                  `json:"total_results"`
		ActiveSessions     int                  `json:"active_sessions"`
	}
	decodeData(t, resp, &stats)
	if stats.TotalSessions != 1 || stats.ActiveSessions != 1 || stats.StatusDistribution[store.StatusWaiting] != 1 {
		t.Errorf("statistics = %+v", stats)
	}
}

func TestFinalReport(t *testing.T) {
	t.Parallel()

	rep := &fakeReporter{report: assess.Report{OverallScore: 76, Summary: "good fit", Recommendation: "hire"}}
	f := newFixture(t, api.WithReporter(rep))
	id := f.start(t)

	code, resp := f.do(t, http.MethodPost, "/api/interview/session/"+id+"/final-report",
		`{"candidate_name":"Li Lei","job_position":"SRE"}`)
	if code != http.StatusOK {
		t.Fatalf("final-report = %d %+v", code, resp)
	}
	var got assess.Report
	decodeData(t, resp, &got)
	if got.OverallScore != 76 || got.Recommendation != "hire" {
		t.Errorf("report = %+v", got)
	}

	res, err := f.store.GetResult(context.Background(), id)
	if err != nil {
		t.Fatalf("GetResult() error: %v", err)
	}
	if res.OverallScore == nil || *res.OverallScore != 76 || res.Feedback != "good fit" {
		t.Errorf("stored result = %+v", res)
	}
	if n := len(f.pub.ofType(events.TypeReportGenerated)); n != 1 {
		t.Errorf("report events = %d, want 1", n)
	}
}

func TestFinalReport_ReporterFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, api.WithReporter(&fakeReporter{err: errors.New("model down")}))
	id := f.start(t)

	code, resp := f.do(t, http.MethodPost, "/api/interview/session/"+id+"/final-report", `{}`)
	if code != http.StatusBadGateway || resp.ErrorCode != api.CodeUpstreamFailure {
		t.Errorf("final-report = %d %+v, want 502", code, resp)
	}
}

func TestDelete_CleansUpEverything(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.start(t)
	f.do(t, http.MethodGet, "/api/interview/results/"+id, "")

	code, resp := f.do(t, http.MethodDelete, "/api/interview/session/"+id, "")
	if code != http.StatusOK {
		t.Fatalf("delete = %d %+v", code, resp)
	}
	if _, err := f.reg.Get(id); !errors.Is(err, interview.ErrNotFound) {
		t.Errorf("registry Get() error = %v, want ErrNotFound", err)
	}
	if _, err := f.store.GetResult(context.Background(), id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetResult() error = %v, want ErrNotFound", err)
	}
	if got := f.rec(id).StopCalls(); got != 1 {
		t.Errorf("recognizer StopCalls() = %d, want 1", got)
	}
	if code, _ := f.do(t, http.MethodGet, "/api/interview/session/"+id, ""); code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", code)
	}
}
