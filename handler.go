package groupworker

import (
	"context"

	"github.com/hugolhafner/go-groupworker/kafka"
)

// Handler is the business logic run for every deliverable record. A nil
// return means the record was processed and its offset may be committed.
type Handler interface {
	Execute(ctx context.Context, msg kafka.Message) error
}

type HandlerFunc func(ctx context.Context, msg kafka.Message) error

func (f HandlerFunc) Execute(ctx context.Context, msg kafka.Message) error {
	return f(ctx, msg)
}
