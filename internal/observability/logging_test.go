package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func logRecord(t *testing.T, ctx context.Context) map[string]any {
	t.Helper()

	var buf bytes.Buffer

	logger := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))
	logger.InfoContext(ctx, "model loaded", "model", "miniLM")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))

	return rec
}

func TestContextHandler_PlainContext(t *testing.T) {
	rec := logRecord(t, context.Background())

	assert.Equal(t, "miniLM", rec["model"])
	assert.NotContains(t, rec, "request_id")
	assert.NotContains(t, rec, "trace_id")
	assert.NotContains(t, rec, "analysis_operation")
}

func TestContextHandler_AddsRequestAndOperation(t *testing.T) {
	ctx := WithAnalysisOperation(WithRequestID(context.Background(), "req-1"), "compare")

	rec := logRecord(t, ctx)

	assert.Equal(t, "req-1", rec["request_id"])
	assert.Equal(t, "compare", rec["analysis_operation"])
	assert.Equal(t, "req-1", RequestID(ctx))
}

func TestContextHandler_AddsTraceIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "analysis.analyze")
	defer span.End()

	rec := logRecord(t, ctx)

	assert.Equal(t, span.SpanContext().TraceID().String(), rec["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), rec["span_id"])
}

func TestContextHandler_WithAttrsKeepsContext(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil))).With("component", "registry")
	logger.InfoContext(WithRequestID(context.Background(), "req-2"), "load")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "registry", rec["component"])
	assert.Equal(t, "req-2", rec["request_id"])
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want sdktrace.Sampler
	}{
		{"always_on", "", sdktrace.AlwaysSample()},
		{"always_off", "", sdktrace.NeverSample()},
		{"traceidratio", "0.25", sdktrace.TraceIDRatioBased(0.25)},
		{"traceidratio", "2", sdktrace.TraceIDRatioBased(1)},
		{"parentbased_traceidratio", "0.5", sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.5))},
		{"parentbased_always_off", "", sdktrace.ParentBased(sdktrace.NeverSample())},
		{"", "", sdktrace.ParentBased(sdktrace.AlwaysSample())},
		{"jaeger_remote", "", sdktrace.ParentBased(sdktrace.AlwaysSample())},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.arg, func(t *testing.T) {
			assert.Equal(t, tt.want.Description(), newSampler(tt.name, tt.arg).Description())
		})
	}
}

func TestParseTraceIDRatio(t *testing.T) {
	assert.InDelta(t, 1.0, parseTraceIDRatio(""), 0)
	assert.InDelta(t, 0.1, parseTraceIDRatio("0.1"), 1e-12)
	assert.InDelta(t, 1.0, parseTraceIDRatio("-0.5"), 0)
	assert.InDelta(t, 1.0, parseTraceIDRatio("half"), 0)
}

func TestNewSpanExporter_Unsupported(t *testing.T) {
	_, err := newSpanExporter(context.Background(), "zipkin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported traces exporter")
}
