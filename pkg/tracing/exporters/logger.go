package exporters

import (
	"context"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/sdk/trace"
)

// LoggerExporter writes finished spans to the application logger at debug level.
type LoggerExporter struct {
	Logger ectologger.Logger
}

func (e *LoggerExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	if e.Logger == nil {
		return nil
	}
	for _, span := range spans {
		e.Logger.WithFields(map[string]any{
			"trace_id":    span.SpanContext().TraceID().String(),
			"span_id":     span.SpanContext().SpanID().String(),
			"duration_ms": span.EndTime().Sub(span.StartTime()).Milliseconds(),
		}).Debugf("span %s", span.Name())
	}
	return nil
}

func (e *LoggerExporter) Shutdown(ctx context.Context) error {
	return nil
}
