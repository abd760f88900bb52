package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	recorder := tracetest.NewSpanRecorder()
	return recorder, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
}

func TestInitialize_Disabled(t *testing.T) {
	cfg := DefaultConfig("allocation-service")
	cfg.Enabled = false

	tp, err := Initialize(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer())
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTracedOperation_RecordsSpans(t *testing.T) {
	recorder, provider := newRecordingTracer()
	tracer := provider.Tracer("test")

	got, err := TracedOperation(context.Background(), tracer, "allocation.decide", func(ctx context.Context) (int, error) {
		assert.NotEmpty(t, GetTraceID(ctx))
		assert.NotEmpty(t, GetSpanID(ctx))
		return 7, nil
	}, AllocationSpanAttributes("alloc-1", 2, 3)...)
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	boom := errors.New("boom")
	err = TracedVoidOperation(context.Background(), tracer, "mongodb.find", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "allocation.decide", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestMapCarrier_RoundTripsTraceContext(t *testing.T) {
	previous := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(previous)

	_, provider := newRecordingTracer()
	ctx, span := provider.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	carrier := MapCarrier{}
	InjectTraceContext(ctx, carrier)
	require.Contains(t, carrier.Keys(), "traceparent")

	extracted := ExtractTraceContext(context.Background(), carrier)
	assert.Equal(t, GetTraceID(ctx), GetTraceID(extracted))
}

func TestAllocationResultAttributesClampsUnits(t *testing.T) {
	attrs := AllocationResultAttributes("split", true, 2, ^uint64(0))
	assert.Equal(t, int64(1<<63-1), attrs[3].Value.AsInt64())
}

func TestInventoryAttributes(t *testing.T) {
	attrs := InventoryAttributes([]string{"owd", "dm"})

	assert.Equal(t, int64(2), attrs[0].Value.AsInt64())
	assert.Equal(t, []string{"owd", "dm"}, attrs[1].Value.AsStringSlice())
}
