package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records eventcore metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEmit records one pipeline run for an emitted event with its
	// duration and error status.
	RecordEmit(ctx context.Context, channel string, duration time.Duration, err error)

	// RecordDrop records an event dropped before delivery, with a reason
	// ("middleware_error", "middleware_truncated", "destroyed").
	RecordDrop(ctx context.Context, channel, reason string)

	// RecordDelivery records the number of subscriber callbacks invoked
	// for one event.
	RecordDelivery(ctx context.Context, channel string, subscribers int)

	// RecordBufferOccupancy records a channel's buffered event count
	// after an insertion.
	RecordBufferOccupancy(ctx context.Context, channel string, occupancy int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	emits           metric.Int64Counter
	emitLatency     metric.Float64Histogram
	emitErrors      metric.Int64Counter
	drops           metric.Int64Counter
	deliveries      metric.Int64Counter
	bufferOccupancy metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventcore")

	emits, err := meter.Int64Counter("eventcore.emit.count",
		metric.WithDescription("Number of emitted events"),
	)
	if err != nil {
		return nil, err
	}

	emitLatency, err := meter.Float64Histogram("eventcore.emit.latency_ms",
		metric.WithDescription("Middleware pipeline latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	emitErrors, err := meter.Int64Counter("eventcore.emit.errors",
		metric.WithDescription("Number of middleware pipeline failures"),
	)
	if err != nil {
		return nil, err
	}

	drops, err := meter.Int64Counter("eventcore.emit.dropped",
		metric.WithDescription("Number of events dropped before delivery"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("eventcore.delivery.count",
		metric.WithDescription("Number of subscriber callback invocations"),
	)
	if err != nil {
		return nil, err
	}

	bufferOccupancy, err := meter.Int64Histogram("eventcore.buffer.occupancy",
		metric.WithDescription("Per-channel buffered event count after insertion"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		emits:           emits,
		emitLatency:     emitLatency,
		emitErrors:      emitErrors,
		drops:           drops,
		deliveries:      deliveries,
		bufferOccupancy: bufferOccupancy,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEmit records one pipeline run.
func (m *otelMetrics) RecordEmit(ctx context.Context, channel string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("channel", channel),
	}

	m.emits.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.emitLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.emitErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordDrop records a dropped event.
func (m *otelMetrics) RecordDrop(ctx context.Context, channel, reason string) {
	m.drops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("reason", reason),
	))
}

// RecordDelivery records subscriber invocations for one event.
func (m *otelMetrics) RecordDelivery(ctx context.Context, channel string, subscribers int) {
	m.deliveries.Add(ctx, int64(subscribers), metric.WithAttributes(
		attribute.String("channel", channel),
	))
}

// RecordBufferOccupancy records a channel's post-insertion occupancy.
func (m *otelMetrics) RecordBufferOccupancy(ctx context.Context, channel string, occupancy int) {
	m.bufferOccupancy.Record(ctx, int64(occupancy), metric.WithAttributes(
		attribute.String("channel", channel),
	))
}
