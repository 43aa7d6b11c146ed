package groupworker

import (
	"context"
)

// Notifier is told about errors that stop the worker, before Run returns.
type Notifier interface {
	Send(ctx context.Context, msg string) error
}

type NotifierFunc func(ctx context.Context, msg string) error

func (f NotifierFunc) Send(ctx context.Context, msg string) error {
	return f(ctx, msg)
}
