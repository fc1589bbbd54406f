package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/budget/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	docID := uuid.New()
	ctx, span := telemetry.StartServiceSpan(context.Background(), "boq", "approve",
		telemetry.WithAttribute(telemetry.SpanAttrDocumentID, docID),
		telemetry.WithSpanKind(trace.SpanKindServer),
	)
	telemetry.SetAttributes(span, telemetry.SpanAttrBatchSize, 3, "ignored")
	telemetry.AddEvent(span, "locked", "lines", 2)
	assert.NotEmpty(t, telemetry.GetTraceID(ctx))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "boq.approve", got.Name())
	assert.Equal(t, trace.SpanKindServer, got.SpanKind())

	attrs := make(map[string]string)
	for _, kv := range got.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, docID.String(), attrs[telemetry.SpanAttrDocumentID])
	assert.Equal(t, "3", attrs[telemetry.SpanAttrBatchSize])
	require.Len(t, got.Events(), 1)
	assert.Equal(t, "locked", got.Events()[0].Name)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "consumption.post")
	telemetry.RecordError(span, nil)
	telemetry.RecordError(span, errors.New("budget exceeded"))
	span.End()

	got := sr.Ended()[0]
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "budget exceeded", got.Status().Description)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, telemetry.GetTraceID(context.Background()))
}
