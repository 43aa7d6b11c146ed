package otel

import "github.com/hugolhafner/go-groupworker/kafka"

// MessageCarrier exposes a message's headers as a propagation.TextMapCarrier.
type MessageCarrier struct {
	msg *kafka.Message
}

func NewMessageCarrier(msg *kafka.Message) MessageCarrier {
	return MessageCarrier{msg: msg}
}

func (c MessageCarrier) Get(key string) string {
	v, ok := kafka.HeaderValue(c.msg.Headers, key)
	if !ok {
		return ""
	}
	return string(v)
}

// Set overwrites every header with the key, or appends one.
func (c MessageCarrier) Set(key, value string) {
	found := false
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			found = true
		}
	}

	if !found {
		c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}
}

func (c MessageCarrier) Keys() []string {
	keys := make([]string, len(c.msg.Headers))
	for i, h := range c.msg.Headers {
		keys[i] = h.Key
	}
	return keys
}
