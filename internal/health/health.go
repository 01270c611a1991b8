// Package health serves the liveness and readiness checks of the interview
// server.
//
// /healthz answers 200 while the process can serve HTTP and reports the
// build version and uptime. /readyz runs every registered [Checker]
// concurrently and answers 200 only when all pass: the store is reachable
// and not degraded, and at least one LLM and one STT backend accepts calls.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const (
	statusOK   = "ok"
	statusFail = "fail"
)

// DefaultCheckTimeout bounds a single readiness check.
const DefaultCheckTimeout = 5 * time.Second

// Checker checks one dependency. Check returns nil when it is usable.
type Checker struct {
	// Name keys the check in the /readyz response, e.g. "store".
	Name  string
	Check func(ctx context.Context) error
}

type checkResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type readyBody struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

type liveBody struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`
}

// Handler serves the health endpoints. The checker list is fixed at construction.
type Handler struct {
	checkers []Checker
	timeout  time.Duration
	version  string
	started  time.Time
}

// Option configures a [Handler].
type Option func(*Handler)

// WithCheckTimeout overrides [DefaultCheckTimeout].
func WithCheckTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option {
	return func(h *Handler) { h.version = v }
}

// WithCheckers appends readiness checks.
func WithCheckers(cs ...Checker) Option {
	return func(h *Handler) { h.checkers = append(h.checkers, cs...) }
}

func New(opts ...Option) *Handler {
	h := &Handler{timeout: DefaultCheckTimeout, started: time.Now()}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, liveBody{
		Status:  statusOK,
		Version: h.version,
		Uptime:  time.Since(h.started).Truncate(time.Second).String(),
	})
}

// Readyz runs all checks in parallel, each under its own timeout, and
// answers 503 if any of them fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu      sync.Mutex
		results = make(map[string]checkResult, len(h.checkers))
		failed  bool
		g       errgroup.Group
	)
	for _, c := range h.checkers {
		g.Go(func() error {
			res := h.run(r.Context(), c)
			mu.Lock()
			results[c.Name] = res
			if res.Status != statusOK {
				failed = true
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	body := readyBody{Status: statusOK, Checks: results}
	code := http.StatusOK
	if failed {
		body.Status = statusFail
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body)
}

func (h *Handler) run(parent context.Context, c Checker) checkResult {
	ctx, cancel := context.WithTimeout(parent, h.timeout)
	defer cancel()

	start := time.Now()
	err := c.Check(ctx)
	res := checkResult{Status: statusOK, LatencyMS: time.Since(start).Milliseconds()}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		res.Status = statusFail
		res.Error = err.Error()
	}
	return res
}

// Routes mounts /healthz and /readyz on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
