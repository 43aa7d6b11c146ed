package otel

import (
	"context"
	"strconv"

	"github.com/hugolhafner/go-groupworker/kafka"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
	traceNoop "go.opentelemetry.io/otel/trace/noop"
)

const scopeName = "github.com/hugolhafner/go-groupworker"

// Telemetry traces handler dispatch. When no provider is configured the
// tracer is a noop.
type Telemetry struct {
	Tracer     trace.Tracer
	Propagator propagation.TextMapPropagator
}

// NewTelemetry creates a Telemetry instance from the given providers.
// both are optional and defaulted if nil
func NewTelemetry(tp trace.TracerProvider, prop propagation.TextMapPropagator) *Telemetry {
	if tp == nil {
		tp = traceNoop.NewTracerProvider()
	}
	if prop == nil {
		prop = propagation.TraceContext{}
	}

	return &Telemetry{
		Tracer:     tp.Tracer(scopeName),
		Propagator: prop,
	}
}

// Noop returns a Telemetry instance with a noop tracer
func Noop() *Telemetry {
	return NewTelemetry(nil, nil)
}

// StartDispatch extracts any upstream trace context from the message headers
// and starts a consumer span for one handler invocation.
func (t *Telemetry) StartDispatch(ctx context.Context, msg kafka.Message, groupID string) (context.Context, trace.Span) {
	ctx = t.Propagator.Extract(ctx, NewMessageCarrier(&msg))

	return t.Tracer.Start(
		ctx, msg.Topic+" process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationTypeProcess,
			semconv.MessagingDestinationName(msg.Topic),
			semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(msg.Partition), 10)),
			semconv.MessagingKafkaOffsetKey.Int64(msg.Offset),
			semconv.MessagingConsumerGroupName(groupID),
			semconv.MessagingMessageBodySize(len(msg.Value)),
		),
	)
}

// EndDispatch records the outcome on span and ends it.
func EndDispatch(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(AttrDispatchStatus.String(StatusFailed))
	} else {
		span.SetAttributes(AttrDispatchStatus.String(StatusSuccess))
	}
	span.End()
}
