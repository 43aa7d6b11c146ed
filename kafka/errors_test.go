//go:build unit

package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kerr"
)

func TestCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ErrNoError},
		{"kerr", kerr.OffsetOutOfRange, ErrorCode(1)},
		{"wrapped kerr", fmt.Errorf("fetch: %w", kerr.UnknownTopicOrPartition), ErrorCode(3)},
		{"sarama", sarama.ErrNotCoordinatorForConsumer, ErrorCode(16)},
		{"deadline", context.DeadlineExceeded, ErrTimedOut},
		{"eof", io.EOF, ErrTransport},
		{"out of brokers", sarama.ErrOutOfBrokers, ErrTransport},
		{"other", errors.New("boom"), ErrFail},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				require.Equal(t, tt.want, CodeForError(tt.err))
			},
		)
	}
}

func TestErrorMessage(t *testing.T) {
	msg := errorMessage("t", 2, kerr.OffsetOutOfRange)

	require.Equal(t, "t", msg.Topic)
	require.Equal(t, int32(2), msg.Partition)
	require.Equal(t, ErrorCode(1), msg.Err)
	require.Contains(t, msg.ErrStr, "OFFSET_OUT_OF_RANGE")
}

func TestDispatchRebalance(t *testing.T) {
	var applied [][]TopicPartition
	apply := func(p []TopicPartition) error {
		applied = append(applied, p)
		return nil
	}

	tps := []TopicPartition{{Topic: "t", Partition: 0}}

	t.Run(
		"no callback applies", func(t *testing.T) {
			applied = nil
			require.NoError(t, dispatchRebalance(nil, RebalanceEvent{Code: ErrAssignPartitions, Partitions: tps}, apply))
			require.NoError(t, dispatchRebalance(nil, RebalanceEvent{Code: ErrRevokePartitions, Partitions: tps}, apply))
			require.Equal(t, [][]TopicPartition{tps, nil}, applied)
		},
	)

	t.Run(
		"acknowledged", func(t *testing.T) {
			applied = nil
			cb := RebalanceCallbackFunc(
				func(a Assigner, ev RebalanceEvent) error {
					return a.Assign(ev.Partitions)
				},
			)
			require.NoError(t, dispatchRebalance(cb, RebalanceEvent{Code: ErrAssignPartitions, Partitions: tps}, apply))
			require.Len(t, applied, 1)
		},
	)

	t.Run(
		"not acknowledged", func(t *testing.T) {
			cb := RebalanceCallbackFunc(func(Assigner, RebalanceEvent) error { return nil })
			err := dispatchRebalance(cb, RebalanceEvent{Code: ErrRevokePartitions}, apply)
			require.ErrorIs(t, err, ErrRebalanceNotAcknowledged)
		},
	)

	t.Run(
		"error events need no ack", func(t *testing.T) {
			cb := RebalanceCallbackFunc(func(Assigner, RebalanceEvent) error { return nil })
			require.NoError(t, dispatchRebalance(cb, RebalanceEvent{Code: ErrFatal}, apply))
		},
	)

	t.Run(
		"callback error", func(t *testing.T) {
			boom := errors.New("boom")
			cb := RebalanceCallbackFunc(func(Assigner, RebalanceEvent) error { return boom })
			require.ErrorIs(t, dispatchRebalance(cb, RebalanceEvent{Code: ErrAssignPartitions}, apply), boom)
		},
	)
}

func TestAssignmentSet(t *testing.T) {
	s := newAssignmentSet(
		[]TopicPartition{{Topic: "b", Partition: 0}, {Topic: "a", Partition: 1}, {Topic: "a", Partition: 0}},
	)

	require.True(t, s.has(TopicPartition{Topic: "a", Partition: 1}))
	require.False(t, s.has(TopicPartition{Topic: "c", Partition: 0}))
	require.Equal(
		t, []TopicPartition{{Topic: "a", Partition: 0}, {Topic: "a", Partition: 1}, {Topic: "b", Partition: 0}},
		s.list(),
	)
}
