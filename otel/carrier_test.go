//go:build unit

package otel

import (
	"testing"

	"github.com/hugolhafner/go-groupworker/kafka"
	"github.com/stretchr/testify/assert"
)

func TestMessageCarrier_Get(t *testing.T) {
	msg := kafka.Message{
		Headers: []kafka.Header{
			{Key: "traceparent", Value: []byte("00-abc-def-01")},
			{Key: "other", Value: []byte("value")},
		},
	}
	carrier := NewMessageCarrier(&msg)

	assert.Equal(t, "00-abc-def-01", carrier.Get("traceparent"))
	assert.Equal(t, "value", carrier.Get("other"))
	assert.Equal(t, "", carrier.Get("missing"))
}

func TestMessageCarrier_Set_New(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: "existing", Value: []byte("val")}}}
	carrier := NewMessageCarrier(&msg)

	carrier.Set("traceparent", "00-abc-def-01")

	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "traceparent", msg.Headers[1].Key)
	assert.Equal(t, []byte("00-abc-def-01"), msg.Headers[1].Value)
}

func TestMessageCarrier_Set_Replace(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: "traceparent", Value: []byte("old-value")}}}
	carrier := NewMessageCarrier(&msg)

	carrier.Set("traceparent", "new-value")

	assert.Len(t, msg.Headers, 1)
	assert.Equal(t, []byte("new-value"), msg.Headers[0].Value)
}

func TestMessageCarrier_Keys(t *testing.T) {
	msg := kafka.Message{
		Headers: []kafka.Header{
			{Key: "traceparent", Value: []byte("val1")},
			{Key: "tracestate", Value: []byte("val2")},
		},
	}

	assert.Equal(t, []string{"traceparent", "tracestate"}, NewMessageCarrier(&msg).Keys())
}

func TestMessageCarrier_Empty(t *testing.T) {
	msg := kafka.Message{}
	carrier := NewMessageCarrier(&msg)

	assert.Equal(t, "", carrier.Get("anything"))
	assert.Empty(t, carrier.Keys())
}
