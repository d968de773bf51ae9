// Package observe provides fingerspell's observability primitives:
// OpenTelemetry metrics and tracing, slog setup and HTTP middleware.
//
// Tests should build [Metrics] with [NewMetrics] over a ManualReader-backed
// provider instead of the global one.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all fingerspell metrics.
const meterName = "github.com/ayusman/fingerspell"

// Metrics holds all OpenTelemetry metric instruments for the application.
type Metrics struct {
	// SamplerTicks counts completed sampler ticks, failed or not.
	SamplerTicks metric.Int64Counter

	// TickFailures counts ticks that produced no label. Use with attribute:
	//   attribute.String("stage", "read"|"preprocess"|"classify"|"label")
	TickFailures metric.Int64Counter

	// ClassifyDuration tracks preprocess plus classify latency per tick.
	ClassifyDuration metric.Float64Histogram

	// FrameRate is the rolling sampler frame-rate estimate.
	FrameRate metric.Float64Gauge

	// Candidates counts candidates raised, by label.
	Candidates metric.Int64Counter

	// Suppressed counts promotions dropped while a candidate was pending.
	Suppressed metric.Int64Counter

	// Commits counts confirmed candidates, by label.
	Commits metric.Int64Counter

	// Rejects counts rejected candidates.
	Rejects metric.Int64Counter

	// WordResets counts word buffer resets.
	WordResets metric.Int64Counter

	// PublishErrors counts failed event deliveries, by publisher.
	PublishErrors metric.Int64Counter

	// ActiveSessions tracks the number of running sampler sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram bucket boundaries in seconds sized around a
// 200ms sampler period.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1, 2,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SamplerTicks, err = m.Int64Counter("fingerspell.sampler.ticks",
		metric.WithDescription("Completed sampler ticks."),
	); err != nil {
		return nil, err
	}
	if met.TickFailures, err = m.Int64Counter("fingerspell.sampler.failures",
		metric.WithDescription("Sampler ticks that produced no label, by stage."),
	); err != nil {
		return nil, err
	}
	if met.ClassifyDuration, err = m.Float64Histogram("fingerspell.classifier.duration",
		metric.WithDescription("Latency of preprocessing and classifying one frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FrameRate, err = m.Float64Gauge("fingerspell.sampler.fps",
		metric.WithDescription("Rolling sampler frame rate."),
		metric.WithUnit("{frame}/s"),
	); err != nil {
		return nil, err
	}

	if met.Candidates, err = m.Int64Counter("fingerspell.stabilizer.candidates",
		metric.WithDescription("Candidates raised by the stabilizer, by label."),
	); err != nil {
		return nil, err
	}
	if met.Suppressed, err = m.Int64Counter("fingerspell.stabilizer.suppressed",
		metric.WithDescription("Promotions dropped while a candidate was pending."),
	); err != nil {
		return nil, err
	}
	if met.Commits, err = m.Int64Counter("fingerspell.gate.commits",
		metric.WithDescription("Confirmed candidates, by label."),
	); err != nil {
		return nil, err
	}
	if met.Rejects, err = m.Int64Counter("fingerspell.gate.rejects",
		metric.WithDescription("Rejected candidates."),
	); err != nil {
		return nil, err
	}
	if met.WordResets, err = m.Int64Counter("fingerspell.word.resets",
		metric.WithDescription("Word buffer resets."),
	); err != nil {
		return nil, err
	}
	if met.PublishErrors, err = m.Int64Counter("fingerspell.publish.errors",
		metric.WithDescription("Failed event deliveries, by publisher."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("fingerspell.active_sessions",
		metric.WithDescription("Number of running sampler sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("fingerspell.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Call it after [InitProvider].
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

// RecordTickFailure counts a tick that failed at stage.
func (m *Metrics) RecordTickFailure(ctx context.Context, stage string) {
	m.TickFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordCandidate counts a raised candidate.
func (m *Metrics) RecordCandidate(ctx context.Context, label string) {
	m.Candidates.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
}

// RecordCommit counts a confirmed candidate.
func (m *Metrics) RecordCommit(ctx context.Context, label string) {
	m.Commits.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
}

// RecordPublishError counts a failed delivery.
func (m *Metrics) RecordPublishError(ctx context.Context, publisher string) {
	m.PublishErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("publisher", publisher)))
}
