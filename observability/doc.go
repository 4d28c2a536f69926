// Package observability wires OpenTelemetry metrics and tracing for the
// stream pipeline.
//
// Export is configured per binary and managed by the Telemetry component.
// StreamMetrics holds the pipeline instruments (sessions by outcome, active
// sessions, skipped frames, flushes and their size, time to first chunk);
// a nil *StreamMetrics is valid and records nothing.
//
//	metrics, err := observability.NewStreamMetrics(observability.Meter("chatstream"))
//	ctx, span := observability.StartSpan(ctx, observability.SpanSession)
//	defer observability.EndSpan(span, err)
package observability
