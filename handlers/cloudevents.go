package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	groupworker "github.com/hugolhafner/go-groupworker"
	"github.com/hugolhafner/go-groupworker/kafka"
	"github.com/hugolhafner/go-groupworker/logger"
	"github.com/hugolhafner/go-groupworker/serde"
)

const (
	headerPrefix      = "ce_"
	headerContentType = "content-type"
)

var (
	ErrNotCloudEvent = errors.New("record is not a cloudevent")
	ErrNoRoute       = errors.New("no handler for event type")
)

var _ groupworker.Handler = (*CloudEventRouter)(nil)

// EventHandler handles one decoded event. msg is the record it came from.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev cloudevents.Event, msg kafka.Message) error
}

type EventHandlerFunc func(ctx context.Context, ev cloudevents.Event, msg kafka.Message) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, ev cloudevents.Event, msg kafka.Message) error {
	return f(ctx, ev, msg)
}

// Typed decodes the event data as JSON into T before calling fn.
func Typed[T any](fn func(ctx context.Context, ev cloudevents.Event, data T) error) EventHandler {
	d := serde.JSON[T]()
	return EventHandlerFunc(
		func(ctx context.Context, ev cloudevents.Event, msg kafka.Message) error {
			data, err := d.Deserialise(msg.Topic, ev.Data())
			if err != nil {
				return fmt.Errorf("decode %s data: %w", ev.Type(), err)
			}
			return fn(ctx, ev, data)
		},
	)
}

// CloudEventRouter is a Handler that decodes records as CloudEvents and
// dispatches them by event type. Both structured (JSON body) and binary
// (ce_ headers) encodings are accepted.
type CloudEventRouter struct {
	routes   map[string]EventHandler
	fallback EventHandler
	logger   logger.Logger
}

type RouterOption func(*CloudEventRouter)

func WithFallback(h EventHandler) RouterOption {
	return func(r *CloudEventRouter) {
		r.fallback = h
	}
}

func WithRouterLogger(l logger.Logger) RouterOption {
	return func(r *CloudEventRouter) {
		r.logger = l
	}
}

func NewCloudEventRouter(opts ...RouterOption) *CloudEventRouter {
	r := &CloudEventRouter{
		routes: make(map[string]EventHandler),
		logger: logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Handle registers h for eventType, replacing any earlier registration.
func (r *CloudEventRouter) Handle(eventType string, h EventHandler) *CloudEventRouter {
	r.routes[eventType] = h
	return r
}

func (r *CloudEventRouter) Execute(ctx context.Context, msg kafka.Message) error {
	ev, err := DecodeEvent(msg)
	if err != nil {
		return err
	}

	h, ok := r.routes[ev.Type()]
	if !ok {
		h = r.fallback
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNoRoute, ev.Type())
	}

	r.logger.Debug("Routing event", "type", ev.Type(), "id", ev.ID(), "source", ev.Source())
	return h.HandleEvent(ctx, ev, msg)
}

// DecodeEvent reads a binary-mode event when ce_specversion is present in
// the headers and a structured-mode event otherwise.
func DecodeEvent(msg kafka.Message) (cloudevents.Event, error) {
	var (
		ev  cloudevents.Event
		err error
	)

	if _, binary := kafka.HeaderValue(msg.Headers, headerPrefix+"specversion"); binary {
		ev, err = decodeBinary(msg)
	} else {
		err = json.Unmarshal(msg.Value, &ev)
	}
	if err != nil {
		return ev, fmt.Errorf("%w: %v", ErrNotCloudEvent, err)
	}

	if err := ev.Validate(); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrNotCloudEvent, err)
	}

	return ev, nil
}

func decodeBinary(msg kafka.Message) (cloudevents.Event, error) {
	header := func(name string) string {
		v, _ := kafka.HeaderValue(msg.Headers, headerPrefix+name)
		return string(v)
	}

	ev := cloudevents.NewEvent(header("specversion"))
	ev.SetID(header("id"))
	ev.SetSource(header("source"))
	ev.SetType(header("type"))

	if s := header("subject"); s != "" {
		ev.SetSubject(s)
	}
	if ts := header("time"); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return ev, fmt.Errorf("parse ce_time: %w", err)
		}
		ev.SetTime(t)
	}
	if ct, ok := kafka.HeaderValue(msg.Headers, headerContentType); ok {
		ev.SetDataContentType(string(ct))
	}

	ev.DataEncoded = msg.Value
	return ev, nil
}

// Logging returns a Handler that logs every event it receives and succeeds.
func Logging(l logger.Logger) EventHandler {
	return EventHandlerFunc(
		func(_ context.Context, ev cloudevents.Event, msg kafka.Message) error {
			l.Info(
				"Event consumed",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"eventId", ev.ID(),
				"eventType", ev.Type(),
				"eventSource", ev.Source(),
				"eventTime", ev.Time(),
				"dataContentType", ev.DataContentType(),
			)
			return nil
		},
	)
}
