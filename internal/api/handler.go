// Package api serves the REST bookkeeping endpoints of the interview server
// under /api/interview.
//
// Every response is wrapped in an envelope of the form
//
//	{"success": true, "message": "...", "data": {...}, "timestamp": "..."}
//
// Failed requests carry "success": false and a machine-readable
// "error_code".
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/intervue/internal/interview"
	"github.com/MrWong99/intervue/internal/store"
)

// maxBodyBytes limits request bodies. Result patches carry transcripts and
// video analysis, so the limit is generous.
const maxBodyBytes = 4 << 20

// Error codes reported in the envelope.
const (
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeSessionExists   = "SESSION_EXISTS"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeUpstreamFailure = "UPSTREAM_FAILURE"
	CodeNotConfigured   = "NOT_CONFIGURED"
	CodeInternal        = "INTERNAL_ERROR"
)

// errBadRequest marks malformed request input.
var errBadRequest = errors.New("api: bad request")

type envelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	ErrorCode string    `json:"error_code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler exposes a [Service] over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler returns a handler for svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the bookkeeping endpoints under /api/interview on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/interview", func(r chi.Router) {
		r.Post("/start", h.start)
		r.Get("/sessions", h.list)
		r.Get("/statistics", h.statistics)

		r.Route("/session/{id}", func(r chi.Router) {
			r.Get("/", h.session)
			r.Delete("/", h.delete)
			r.Put("/status", h.updateStatus)
			r.Post("/question", h.question)
			r.Post("/persona", h.persona)
			r.Get("/summary", h.summary)
			r.Post("/final-report", h.finalReport)
		})

		r.Get("/results/{id}", h.result)
		r.Post("/results/{id}", h.patchResult)
	})
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string         `json:"user_id"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := decode(w, r, &req, true); err != nil {
		fail(w, r, err)
		return
	}
	sess, err := h.svc.Start(r.Context(), req.UserID, req.Metadata)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "interview session created", map[string]any{
		"session_id": sess.ID,
		"status":     sess.Status,
		"start_time": sess.StartTime,
	})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "session found", sess)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	status, err := param(w, r, "status")
	if err != nil {
		fail(w, r, err)
		return
	}
	change, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), store.Status(status))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "session status updated", change)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	skip, err := intQuery(r, "skip", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	skip, limit = store.Page(skip, limit)
	sessions, total, err := h.svc.List(r.Context(), skip, limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	ok(w, http.StatusOK, "sessions listed", map[string]any{
		"sessions": sessions,
		"total":    total,
		"skip":     skip,
		"limit":    limit,
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "interview session deleted", map[string]any{"session_id": id})
}

func (h *Handler) result(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "interview result found", res)
}

func (h *Handler) patchResult(w http.ResponseWriter, r *http.Request) {
	var patch store.ResultPatch
	if err := decode(w, r, &patch, false); err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.svc.PatchResult(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "interview result updated", res)
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "statistics computed", stats)
}

func (h *Handler) question(w http.ResponseWriter, r *http.Request) {
	q, err := param(w, r, "question")
	if err != nil {
		fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.svc.AskQuestion(id, q); err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "current question set", map[string]any{"session_id": id, "question": q})
}

func (h *Handler) persona(w http.ResponseWriter, r *http.Request) {
	p, err := param(w, r, "persona")
	if err != nil {
		fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.svc.SetPersona(id, p); err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "interviewer persona set", map[string]any{"session_id": id, "persona": p})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "summary computed", sum)
}

func (h *Handler) finalReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CandidateName string `json:"candidate_name"`
		JobPosition   string `json:"job_position"`
	}
	if err := decode(w, r, &req, true); err != nil {
		fail(w, r, err)
		return
	}
	rep, err := h.svc.FinalReport(r.Context(), chi.URLParam(r, "id"), req.CandidateName, req.JobPosition)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "final report generated", rep)
}

// decode reads a JSON body into v, rejecting unknown fields. An empty body
// is accepted when optional is set.
func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}

// param reads a single string parameter from the query string, or from a
// JSON body of the form {"<name>": "..."}.
func param(w http.ResponseWriter, r *http.Request, name string) (string, error) {
	if v := r.URL.Query().Get(name); v != "" {
		return v, nil
	}
	var body map[string]string
	if err := decode(w, r, &body, true); err != nil {
		return "", err
	}
	for k := range body {
		if k != name {
			return "", fmt.Errorf("%w: unknown field %q", errBadRequest, k)
		}
	}
	v, found := body[name]
	if !found || v == "" {
		return "", fmt.Errorf("%w: missing %s", errBadRequest, name)
	}
	return v, nil
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, name)
	}
	return n, nil
}

// statusFor maps an error to its HTTP status and envelope error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, interview.ErrNotFound):
		return http.StatusNotFound, CodeSessionNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, interview.ErrAlreadyExists):
		return http.StatusConflict, CodeSessionExists
	case errors.Is(err, errBadRequest), errors.Is(err, store.ErrInvalid):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, interview.ErrCollaboratorFailure):
		return http.StatusBadGateway, CodeUpstreamFailure
	case errors.Is(err, ErrNoReporter):
		return http.StatusNotImplemented, CodeNotConfigured
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func ok(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: msg, Data: data, Timestamp: time.Now().UTC()})
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, envelope{Message: err.Error(), ErrorCode: code, Timestamp: time.Now().UTC()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "err", err)
	}
}
