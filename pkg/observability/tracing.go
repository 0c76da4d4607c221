package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mcpwire/mcpwire"

// Tracer wraps an OpenTelemetry tracer with span conventions for protocol
// traffic. The zero value uses the globally registered tracer provider, so
// whatever exporter the embedding process installs takes effect without any
// wiring here.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer from an explicit provider. A nil provider uses
// the global one.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		return &Tracer{tracer: otel.Tracer(tracerName)}
	}
	return &Tracer{tracer: tp.Tracer(tracerName)}
}

func (t *Tracer) instance() trace.Tracer {
	if t == nil || t.tracer == nil {
		return otel.Tracer(tracerName)
	}
	return t.tracer
}

// StartCall opens a client span for an outbound request. The returned end
// function records the terminal error state and closes the span.
func (t *Tracer) StartCall(ctx context.Context, method string, requestID string) (context.Context, func(err error)) {
	ctx, span := t.instance().Start(ctx, "rpc.call "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.method", method),
			attribute.String("rpc.request_id", requestID),
		),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// StartDispatch opens a server span for an inbound request.
func (t *Tracer) StartDispatch(ctx context.Context, method string, requestID string) (context.Context, func(err error)) {
	ctx, span := t.instance().Start(ctx, "rpc.dispatch "+method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.method", method),
			attribute.String("rpc.request_id", requestID),
		),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
