package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samparadis/dvrk-ros/pkg/bus"
)

// WrapBus returns a Bus whose operations emit spans. If tracing has not
// been initialized the original bus is returned unchanged.
func WrapBus(b bus.Bus) bus.Bus {
	if !IsInitialized() {
		return b
	}
	return &tracedBus{next: b}
}

type tracedBus struct {
	next bus.Bus
}

func (t *tracedBus) Publish(topic string, msg bus.Message) error {
	_, span := StartSpan(context.Background(), "bus.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination", topic),
			attribute.String("messaging.operation", "publish"),
		),
	)
	defer span.End()

	err := t.next.Publish(topic, msg)
	recordResult(span, err)
	return err
}

func (t *tracedBus) Subscribe(topic string, handler bus.Handler) (bus.Subscription, error) {
	wrapped := func(msg bus.Message) {
		_, span := StartSpan(context.Background(), "bus.consume",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.destination", topic),
				attribute.String("messaging.operation", "consume"),
			),
		)
		defer span.End()
		handler(msg)
	}
	return t.next.Subscribe(topic, wrapped)
}

func (t *tracedBus) Request(ctx context.Context, topic string, msg bus.Message) (bus.Message, error) {
	ctx, span := StartSpan(ctx, "bus.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("messaging.destination", topic),
			attribute.String("messaging.operation", "request"),
		),
	)
	defer span.End()

	reply, err := t.next.Request(ctx, topic, msg)
	recordResult(span, err)
	return reply, err
}

func (t *tracedBus) Close() error {
	return t.next.Close()
}

func recordResult(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "OK")
}
