package kafka

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClientClosed             = errors.New("kafka client is closed")
	ErrAlreadySubscribed        = errors.New("already subscribed")
	ErrNotSubscribed            = errors.New("not subscribed")
	ErrRebalanceNotAcknowledged = errors.New("rebalance callback returned without acknowledging the assignment")
	ErrNoSession                = errors.New("no active group session")
)

type Client interface {
	Consumer

	Ping(ctx context.Context) error
}

type Consumer interface {
	Subscribe(topics []string, rebalanceCb RebalanceCallback) error
	// Poll blocks for at most timeout. A poll that yields no data returns a
	// Message carrying ErrTimedOut (or ErrPartitionEOF) rather than an error;
	// the error return is reserved for cancellation, a closed client and fatal
	// rebalance failures.
	Poll(ctx context.Context, timeout time.Duration) (Message, error)
	// Commit synchronously commits the position of every consumed record.
	Commit(ctx context.Context) error
	// Unsubscribe leaves the group, delivering a revoke to the callback.
	Unsubscribe() error
	Close()
}

// Assigner is the half of the transport a rebalance callback talks back to.
// Assign(nil) releases every partition.
type Assigner interface {
	Assign(partitions []TopicPartition) error
}

// RebalanceEvent is delivered between polls. Code is ErrAssignPartitions,
// ErrRevokePartitions or an error reported by the group protocol.
type RebalanceEvent struct {
	Code       ErrorCode
	Partitions []TopicPartition
}

type RebalanceCallback interface {
	OnRebalance(a Assigner, ev RebalanceEvent) error
}

// RebalanceCallbackFunc adapts a function to RebalanceCallback.
type RebalanceCallbackFunc func(a Assigner, ev RebalanceEvent) error

func (f RebalanceCallbackFunc) OnRebalance(a Assigner, ev RebalanceEvent) error {
	return f(a, ev)
}
