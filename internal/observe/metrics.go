// Package observe wires OpenTelemetry metrics and traces plus structured
// logging into the interview pipeline and its HTTP surface.
//
// Instruments live on [Metrics]. [InitProvider] bridges them to a Prometheus
// registry scraped at /metrics. Tests build their own [Metrics] from a
// manual reader instead of sharing [DefaultMetrics].
package observe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/intervue"

// Metrics groups the instruments recorded by the server. Record helpers are
// no-ops on a nil receiver.
type Metrics struct {
	// LLMDuration is the latency of evaluator and questioner calls in
	// seconds. Attributes: op, status.
	LLMDuration metric.Float64Histogram

	// HTTPRequestDuration is keyed by method, path (chi route pattern) and
	// status.
	HTTPRequestDuration metric.Float64Histogram

	Utterances         metric.Int64Counter // outcome=delivered|dropped
	Frames             metric.Int64Counter // evicted=true|false
	Answers            metric.Int64Counter // with_frame=true|false
	Evaluations        metric.Int64Counter
	FollowUps          metric.Int64Counter
	CollaboratorErrors metric.Int64Counter // collaborator
	WorkerLeaks        metric.Int64Counter
	BreakerTransitions metric.Int64Counter // breaker, from, to

	ActiveSessions metric.Int64UpDownCounter
}

// llmBuckets in seconds. Grading replies from slower models regularly take
// tens of seconds.
var llmBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60}

var httpBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// NewMetrics registers every instrument on a meter from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	met := new(Metrics)

	histograms := []struct {
		dst     *metric.Float64Histogram
		name    string
		desc    string
		buckets []float64
	}{
		{&met.LLMDuration, "intervue.llm.duration", "LLM call latency by operation and status.", llmBuckets},
		{&met.HTTPRequestDuration, "intervue.http.request.duration", "HTTP request latency by method, route and status.", httpBuckets},
	}
	for _, h := range histograms {
		inst, err := meter.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(h.buckets...),
		)
		if err != nil {
			return nil, fmt.Errorf("observe: histogram %s: %w", h.name, err)
		}
		*h.dst = inst
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.Utterances, "intervue.utterances", "Finalized utterances by outcome."},
		{&met.Frames, "intervue.frames", "Received video frames."},
		{&met.Answers, "intervue.answers", "Recorded answers."},
		{&met.Evaluations, "intervue.evaluations", "Recorded answer evaluations."},
		{&met.FollowUps, "intervue.follow_ups", "Follow-up questions sent to candidates."},
		{&met.CollaboratorErrors, "intervue.collaborator.errors", "Collaborator failures by collaborator."},
		{&met.WorkerLeaks, "intervue.worker.leaks", "Transcription workers that missed the stop deadline."},
		{&met.BreakerTransitions, "intervue.breaker.transitions", "Circuit breaker state changes."},
	}
	for _, c := range counters {
		inst, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("observe: counter %s: %w", c.name, err)
		}
		*c.dst = inst
	}

	var err error
	met.ActiveSessions, err = meter.Int64UpDownCounter("intervue.active_sessions",
		metric.WithDescription("Live interview sessions."))
	if err != nil {
		return nil, fmt.Errorf("observe: gauge intervue.active_sessions: %w", err)
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide instance on the global meter
// provider. It panics if the instruments cannot be created.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic(err)
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordLLMCall records one evaluator or questioner round trip.
func (m *Metrics) RecordLLMCall(ctx context.Context, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.LLMDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		Attr("op", op),
		Attr("status", outcome(err)),
	))
}

// RecordBreakerTransition counts a circuit breaker moving between states.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, from, to string) {
	if m == nil {
		return
	}
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		Attr("breaker", breaker),
		Attr("from", from),
		Attr("to", to),
	))
}
