package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Tracer interface {
	StartSpanFromContext(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
	SpanFromContext(ctx context.Context) Span
	GetTracer() trace.Tracer
}

type openTracer struct {
	tracer trace.Tracer
}

func NewTracer(name string) Tracer {
	return &openTracer{
		otel.Tracer(name),
	}
}

func (t *openTracer) StartSpanFromContext(
	ctx context.Context, name string, opts ...trace.SpanStartOption,
) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, NewSpan(span)
}

func (t *openTracer) SpanFromContext(ctx context.Context) Span {
	return NewSpan(trace.SpanFromContext(ctx))
}

func (t *openTracer) GetTracer() trace.Tracer {
	return t.tracer
}

// Bridge span attribute keys.
const (
	AttrDirection = attribute.Key("bridge.direction")
	AttrStep      = attribute.Key("bridge.step")
	AttrChain     = attribute.Key("bridge.chain")
	AttrTxHash    = attribute.Key("bridge.tx_hash")
	AttrAmount    = attribute.Key("bridge.amount")
	AttrAttempts  = attribute.Key("bridge.attempts")
)

// Traced runs fn inside a span named name, recording a returned error.
func Traced[T any](ctx context.Context, tracer Tracer, name string, fn func(ctx context.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	ctx, span := tracer.StartSpanFromContext(ctx, name)
	defer span.End()
	span.SetAttributes(attrs...)

	v, err := fn(ctx)
	if err != nil {
		span.NoticeError(err)
	}
	return v, err
}
