package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/chatstream/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// InitMeter installs an OTLP/HTTP meter provider as the global provider.
// The caller shuts it down on exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		logger.FieldService, config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// StreamMetrics holds the stream pipeline instruments. A nil *StreamMetrics
// records nothing.
type StreamMetrics struct {
	sessions        metric.Int64Counter
	active          metric.Int64UpDownCounter
	sessionDuration metric.Float64Histogram
	firstChunk      metric.Float64Histogram
	framesSkipped   metric.Int64Counter
	flushes         metric.Int64Counter
	flushUnits      metric.Int64Histogram
}

// NewStreamMetrics creates the instruments on meter.
func NewStreamMetrics(meter metric.Meter) (*StreamMetrics, error) {
	var (
		m   StreamMetrics
		err error
	)
	if m.sessions, err = meter.Int64Counter("stream.sessions",
		metric.WithDescription("Stream sessions by terminal outcome")); err != nil {
		return nil, fmt.Errorf("creating stream.sessions counter: %w", err)
	}
	if m.active, err = meter.Int64UpDownCounter("stream.active",
		metric.WithDescription("Stream sessions currently streaming")); err != nil {
		return nil, fmt.Errorf("creating stream.active gauge: %w", err)
	}
	if m.sessionDuration, err = meter.Float64Histogram("stream.duration",
		metric.WithDescription("Session duration from start to terminal state"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating stream.duration histogram: %w", err)
	}
	if m.firstChunk, err = meter.Float64Histogram("stream.first_chunk",
		metric.WithDescription("Time from session start to the first flushed chunk"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating stream.first_chunk histogram: %w", err)
	}
	if m.framesSkipped, err = meter.Int64Counter("stream.frames.skipped",
		metric.WithDescription("Provider frames dropped as malformed")); err != nil {
		return nil, fmt.Errorf("creating stream.frames.skipped counter: %w", err)
	}
	if m.flushes, err = meter.Int64Counter("stream.flushes",
		metric.WithDescription("Chunks written downstream by flush reason")); err != nil {
		return nil, fmt.Errorf("creating stream.flushes counter: %w", err)
	}
	if m.flushUnits, err = meter.Int64Histogram("stream.flush.size",
		metric.WithDescription("Display units per flushed chunk"),
		metric.WithUnit("{unit}")); err != nil {
		return nil, fmt.Errorf("creating stream.flush.size histogram: %w", err)
	}
	return &m, nil
}

// SessionStarted increments the active session count.
func (m *StreamMetrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.active.Add(ctx, 1)
}

// SessionEnded records a terminal outcome. streamed reports whether the
// session had been counted as active.
func (m *StreamMetrics) SessionEnded(ctx context.Context, outcome string, streamed bool, d time.Duration) {
	if m == nil {
		return
	}
	if streamed {
		m.active.Add(ctx, -1)
	}
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, outcome))
	m.sessions.Add(ctx, 1, attrs)
	m.sessionDuration.Record(ctx, d.Seconds(), attrs)
}

// FirstChunk records time to first flushed chunk.
func (m *StreamMetrics) FirstChunk(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.firstChunk.Record(ctx, d.Seconds())
}

// FrameSkipped counts a malformed frame.
func (m *StreamMetrics) FrameSkipped(ctx context.Context) {
	if m == nil {
		return
	}
	m.framesSkipped.Add(ctx, 1)
}

// Flushed records one downstream write.
func (m *StreamMetrics) Flushed(ctx context.Context, reason string, units int) {
	if m == nil {
		return
	}
	m.flushes.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrFlushReason, reason)))
	m.flushUnits.Record(ctx, int64(units))
}
