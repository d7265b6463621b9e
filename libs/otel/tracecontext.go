package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext is the persisted form of a W3C trace context, stored on rows
// (reminder jobs, outbox events) that are processed later by a worker.
type TraceContext struct {
	Traceparent string
	Tracestate  string
}

func CaptureTraceContext(ctx context.Context) TraceContext {
	traceparent, tracestate := TraceContextStrings(ctx)
	return TraceContext{Traceparent: traceparent, Tracestate: tracestate}
}

func (tc TraceContext) Attach(ctx context.Context) context.Context {
	return ContextWithTraceContext(ctx, tc.Traceparent, tc.Tracestate)
}

func TraceContextStrings(ctx context.Context) (traceparent string, tracestate string) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier["traceparent"], carrier["tracestate"]
}

func ContextWithTraceContext(ctx context.Context, traceparent string, tracestate string) context.Context {
	if traceparent == "" && tracestate == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{
		"traceparent": traceparent,
		"tracestate":  tracestate,
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
