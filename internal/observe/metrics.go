// Package observe wires OpenTelemetry into medshadow: metric instruments,
// tracing helpers, trace-aware logging, and the HTTP middleware that ties
// them together.
//
// Metrics are exported through the Prometheus bridge set up by
// [InitProvider]. Tests should build their own [Metrics] with [NewMetrics]
// and an isolated [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/medshadow"

// Metrics holds the application's instruments. Safe for concurrent use.
type Metrics struct {
	// STTDuration is transcription latency in seconds.
	STTDuration metric.Float64Histogram

	// TTSDuration is synthesis latency in seconds.
	TTSDuration metric.Float64Histogram

	// EvaluationScore is the distribution of attempt scores (0-100), by
	// attribute "source" (text or audio).
	EvaluationScore metric.Int64Histogram

	// Evaluations counts scored attempts by "source".
	Evaluations metric.Int64Counter

	// ProviderRequests counts speech provider calls by "provider", "kind",
	// and "status".
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed provider calls by "provider" and "kind".
	ProviderErrors metric.Int64Counter

	UsersRegistered metric.Int64Counter
	BookmarksAdded  metric.Int64Counter

	// HTTPRequestDuration is request latency by "method", "route", and
	// "status".
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are in seconds and sized for remote speech provider calls.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30}

var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("medshadow.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("medshadow.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EvaluationScore, err = m.Int64Histogram("medshadow.evaluation.score",
		metric.WithDescription("Pronunciation score of evaluated attempts."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Evaluations, err = m.Int64Counter("medshadow.evaluations",
		metric.WithDescription("Evaluated attempts by source."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("medshadow.provider.requests",
		metric.WithDescription("Speech provider requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("medshadow.provider.errors",
		metric.WithDescription("Speech provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.UsersRegistered, err = m.Int64Counter("medshadow.users.registered",
		metric.WithDescription("Learner registrations."),
	); err != nil {
		return nil, err
	}
	if met.BookmarksAdded, err = m.Int64Counter("medshadow.bookmarks.added",
		metric.WithDescription("Vocabulary bookmarks created."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("medshadow.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route, and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide [Metrics] built on the global meter
// provider the first time it is called.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider),
		Attr("kind", kind),
		Attr("status", status),
	))
}

// RecordProviderError counts one failed provider call.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider),
		Attr("kind", kind),
	))
}

// RecordEvaluation counts a scored attempt and records its score.
func (m *Metrics) RecordEvaluation(ctx context.Context, source string, score int) {
	attrs := metric.WithAttributes(Attr("source", source))
	m.Evaluations.Add(ctx, 1, attrs)
	m.EvaluationScore.Record(ctx, int64(score), attrs)
}
