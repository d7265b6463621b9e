package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	traceparent, tracestate := TraceContextStrings(ctx)
	if traceparent == "" {
		t.Fatal("expected traceparent to be populated")
	}

	restored := trace.SpanContextFromContext(ContextWithTraceContext(context.Background(), traceparent, tracestate))
	if restored.TraceID() != traceID {
		t.Fatalf("expected trace id %s, got %s", traceID, restored.TraceID())
	}
}

func TestContextWithEmptyTraceContext(t *testing.T) {
	ctx := context.Background()
	if got := ContextWithTraceContext(ctx, "", ""); got != ctx {
		t.Fatal("expected context to be returned unchanged")
	}
}
