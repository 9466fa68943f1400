// Package observe provides application-wide observability primitives for
// the backtracking orchestrator: OpenTelemetry metrics, distributed
// tracing, structured logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter bridge on the default Prometheus registry;
// no /metrics HTTP handler is mounted by this repository. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all orchestrator
// metrics.
const meterName = "github.com/solenai/backtrack"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StreamDuration tracks the wall-clock duration of a single retry
	// iteration's inference stream, from the Stream call until the processor
	// stops reading it (completion, honoured backtrack, or failure).
	StreamDuration metric.Float64Histogram

	// TurnDuration tracks the full duration of a Run call, including every
	// retry iteration triggered by honoured backtracks.
	TurnDuration metric.Float64Histogram

	// RewindsHonoured counts backtracks that were applied. Use with
	// attribute: attribute.String("mode", ...).
	RewindsHonoured metric.Int64Counter

	// RewindsIgnored counts backtracks that were silently dropped. Use with
	// attribute: attribute.String("reason", ...) — "budget_exhausted" or
	// "unknown_checkpoint".
	RewindsIgnored metric.Int64Counter

	// CheckpointsRegistered counts checkpoint markers that were accepted.
	CheckpointsRegistered metric.Int64Counter

	// CheckpointsRejectedSpacing counts checkpoint markers rejected for
	// insufficient spacing since the previous marker.
	CheckpointsRejectedSpacing metric.Int64Counter

	// AdapterErrors counts inference adapter failures. Use with attribute:
	// attribute.String("provider", ...).
	AdapterErrors metric.Int64Counter

	// ActiveTurns tracks the number of Run calls currently in flight.
	ActiveTurns metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds), sized for
// interactive streaming-generation latencies rather than sub-second RPCs.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StreamDuration, err = m.Float64Histogram("backtrack.stream.duration",
		metric.WithDescription("Duration of a single retry iteration's inference stream."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("backtrack.turn.duration",
		metric.WithDescription("Duration of a full turn, including every retry triggered by a backtrack."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RewindsHonoured, err = m.Int64Counter("backtrack.rewinds.honoured",
		metric.WithDescription("Total backtracks applied, by resulting mode."),
	); err != nil {
		return nil, err
	}
	if met.RewindsIgnored, err = m.Int64Counter("backtrack.rewinds.ignored",
		metric.WithDescription("Total backtracks silently dropped, by reason."),
	); err != nil {
		return nil, err
	}
	if met.CheckpointsRegistered, err = m.Int64Counter("backtrack.checkpoints.registered",
		metric.WithDescription("Total checkpoint markers accepted."),
	); err != nil {
		return nil, err
	}
	if met.CheckpointsRejectedSpacing, err = m.Int64Counter("backtrack.checkpoints.rejected_spacing",
		metric.WithDescription("Total checkpoint markers rejected for insufficient spacing."),
	); err != nil {
		return nil, err
	}
	if met.AdapterErrors, err = m.Int64Counter("backtrack.adapter.errors",
		metric.WithDescription("Total inference adapter failures, by provider."),
	); err != nil {
		return nil, err
	}
	if met.ActiveTurns, err = m.Int64UpDownCounter("backtrack.active_turns",
		metric.WithDescription("Number of turns currently being processed."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("backtrack.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
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

// RecordRewindHonoured is a convenience method recording an honoured
// backtrack, tagged with the mode it switched to.
func (m *Metrics) RecordRewindHonoured(ctx context.Context, mode string) {
	m.RewindsHonoured.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordRewindIgnored is a convenience method recording a dropped backtrack,
// tagged with why it was dropped.
func (m *Metrics) RecordRewindIgnored(ctx context.Context, reason string) {
	m.RewindsIgnored.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordAdapterError is a convenience method recording an inference adapter
// failure, tagged by provider.
func (m *Metrics) RecordAdapterError(ctx context.Context, provider string) {
	m.AdapterErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}
