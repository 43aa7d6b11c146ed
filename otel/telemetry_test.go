//go:build unit

package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/hugolhafner/go-groupworker/kafka"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

func newRecordingTelemetry() (*Telemetry, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return NewTelemetry(tp, nil), sr
}

func TestStartDispatch_RecordsSpan(t *testing.T) {
	tel, sr := newRecordingTelemetry()

	_, span := tel.StartDispatch(context.Background(), kafka.Message{Topic: "orders", Partition: 1, Offset: 7}, "g1")
	EndDispatch(span, nil)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "orders process", spans[0].Name())
	require.Equal(t, trace.SpanKindConsumer, spans[0].SpanKind())
	require.Contains(t, spans[0].Attributes(), semconv.MessagingKafkaOffsetKey.Int64(7))
	require.Contains(t, spans[0].Attributes(), semconv.MessagingConsumerGroupName("g1"))
	require.Contains(t, spans[0].Attributes(), AttrDispatchStatus.String(StatusSuccess))
}

func TestEndDispatch_Error(t *testing.T) {
	tel, sr := newRecordingTelemetry()

	_, span := tel.StartDispatch(context.Background(), kafka.Message{Topic: "orders"}, "g1")
	EndDispatch(span, errors.New("boom"))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "boom", spans[0].Status().Description)
}

func TestStartDispatch_ContinuesUpstreamTrace(t *testing.T) {
	tel, sr := newRecordingTelemetry()

	msg := kafka.Message{
		Topic: "orders",
		Headers: []kafka.Header{
			{Key: "traceparent", Value: []byte("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")},
		},
	}

	_, span := tel.StartDispatch(context.Background(), msg, "g1")
	EndDispatch(span, nil)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
	require.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
}

func TestNoop(t *testing.T) {
	tel := Noop()
	require.NotPanics(
		t, func() {
			_, span := tel.StartDispatch(context.Background(), kafka.Message{}, "")
			EndDispatch(span, nil)
		},
	)
}
