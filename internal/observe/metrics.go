// Package observe provides application-wide observability primitives for
// Voxlate: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all Voxlate metrics.
const meterName = "github.com/voxlate/voxlate"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// RecognitionDuration tracks speech recognition latency per frame.
	RecognitionDuration metric.Float64Histogram

	// DetectionDuration tracks language detection latency.
	DetectionDuration metric.Float64Histogram

	// TranslationDuration tracks translation latency.
	TranslationDuration metric.Float64Histogram

	// PipelineDuration tracks end-to-end frame processing latency, from
	// dequeue to caption.
	PipelineDuration metric.Float64Histogram

	// --- Counters ---

	// FramesReceived counts audio frames accepted into session queues.
	// Use with attribute: attribute.String("session_id", ...)
	FramesReceived metric.Int64Counter

	// FramesDropped counts frames discarded by queue overflow or session
	// teardown. Use with attribute: attribute.String("reason", ...)
	FramesDropped metric.Int64Counter

	// CaptionsEmitted counts caption results delivered to clients.
	CaptionsEmitted metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("stage", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("stage", ...)
	ProviderErrors metric.Int64Counter

	// PipelineErrors counts frames that failed processing. Use with
	// attribute: attribute.String("stage", ...)
	PipelineErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live caption sessions.
	ActiveSessions metric.Int64UpDownCounter

	// QueuedFrames tracks the number of frames waiting across all session
	// queues.
	QueuedFrames metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for caption-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecognitionDuration, err = m.Float64Histogram("voxlate.recognition.duration",
		metric.WithDescription("Latency of speech recognition per frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DetectionDuration, err = m.Float64Histogram("voxlate.detection.duration",
		metric.WithDescription("Latency of language detection."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslationDuration, err = m.Float64Histogram("voxlate.translation.duration",
		metric.WithDescription("Latency of translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("voxlate.pipeline.duration",
		metric.WithDescription("End-to-end frame processing latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesReceived, err = m.Int64Counter("voxlate.frames.received",
		metric.WithDescription("Total audio frames accepted into session queues."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("voxlate.frames.dropped",
		metric.WithDescription("Total frames discarded by overflow or teardown, by reason."),
	); err != nil {
		return nil, err
	}
	if met.CaptionsEmitted, err = m.Int64Counter("voxlate.captions.emitted",
		metric.WithDescription("Total caption results delivered to clients."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("voxlate.provider.requests",
		metric.WithDescription("Total provider API requests by provider, stage, and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("voxlate.provider.errors",
		metric.WithDescription("Total provider errors by provider and stage."),
	); err != nil {
		return nil, err
	}
	if met.PipelineErrors, err = m.Int64Counter("voxlate.pipeline.errors",
		metric.WithDescription("Total frames that failed processing, by stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxlate.active_sessions",
		metric.WithDescription("Number of live caption sessions."),
	); err != nil {
		return nil, err
	}
	if met.QueuedFrames, err = m.Int64UpDownCounter("voxlate.queued_frames",
		metric.WithDescription("Number of frames waiting across all session queues."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxlate.http.request.duration",
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

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, stage, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("stage", stage),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, stage string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("stage", stage),
		),
	)
}

// RecordPipelineError is a convenience method that records a failed frame by
// pipeline stage.
func (m *Metrics) RecordPipelineError(ctx context.Context, stage string) {
	m.PipelineErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordFrameDropped is a convenience method that records a discarded frame
// by reason ("overflow" or "teardown").
func (m *Metrics) RecordFrameDropped(ctx context.Context, reason string) {
	m.FramesDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
