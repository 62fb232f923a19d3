// Package observe provides application-wide observability primitives for
// readback: OpenTelemetry metrics, tracing helpers, structured logging, and
// HTTP middleware for the admin endpoints.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so everything is scrapable
// from the standard /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all readback metrics.
const meterName = "github.com/vhfnav/readback"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// MatchDuration tracks phrasebook matcher latency per fragment.
	MatchDuration metric.Float64Histogram

	// SynthesisDuration tracks text-to-speech latency per dispatched
	// phrase. Use with attribute.String("status", "ok"|"error").
	SynthesisDuration metric.Float64Histogram

	// DispatchDuration tracks the full synthesize-and-play leg per
	// matched fragment. Use with attribute.String("status", ...).
	DispatchDuration metric.Float64Histogram

	// --- Counters ---

	// Fragments counts processed recognizer fragments. Use with
	// attribute.String("outcome", ...) carrying an audit outcome value.
	Fragments metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live readback session loops.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks admin endpoint latency. Use with
	// attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The
// matcher sits well under a millisecond; synthesis calls to a cloud TTS run
// into whole seconds, so the range is wide.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.MatchDuration, err = m.Float64Histogram("readback.match.duration",
		metric.WithDescription("Latency of phrasebook matching per fragment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("readback.synthesis.duration",
		metric.WithDescription("Latency of speech synthesis per dispatched phrase."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DispatchDuration, err = m.Float64Histogram("readback.dispatch.duration",
		metric.WithDescription("Latency of the synthesize-and-play leg per matched fragment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Fragments, err = m.Int64Counter("readback.fragments",
		metric.WithDescription("Total recognizer fragments processed by outcome."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("readback.active_sessions",
		metric.WithDescription("Number of live readback session loops."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("readback.http.request.duration",
		metric.WithDescription("Admin HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordFragment increments the fragment counter with the given outcome.
func (m *Metrics) RecordFragment(ctx context.Context, outcome string) {
	m.Fragments.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}
