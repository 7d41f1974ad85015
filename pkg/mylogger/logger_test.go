package mylogger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfo_AddsTraceFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	Info(ctx, logger, "with span", zap.Int64("order_id", 1))

	entries := logs.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	require.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	require.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	require.EqualValues(t, 1, fields["order_id"])
}

func TestWarn_WithoutSpan(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	Warn(context.Background(), logger, "no span")
	Debug(context.Background(), logger, "debug")
	Error(context.Background(), logger, "error")

	entries := logs.All()
	require.Len(t, entries, 3)
	require.NotContains(t, entries[0].ContextMap(), "trace_id")
}
