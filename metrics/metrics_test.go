//go:build unit

package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/hugolhafner/go-groupworker/kafka"
	"github.com/hugolhafner/go-groupworker/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveConsumed(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveConsumed(kafka.Message{Topic: "t", Partition: 3, Offset: 10})
	m.ObserveConsumed(kafka.Message{Topic: "t", Partition: 3, Offset: 11})

	require.Equal(t, 2.0, testutil.ToFloat64(m.MessagesConsumed.WithLabelValues("t")))
	require.Equal(t, 11.0, testutil.ToFloat64(m.LastConsumedOffset.WithLabelValues("t", "3")))
}

func TestObserveRebalance(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveRebalance(kafka.RebalanceEvent{Code: kafka.ErrAssignPartitions}, 4)
	require.Equal(t, 4.0, testutil.ToFloat64(m.AssignedPartitions))

	m.ObserveRebalance(kafka.RebalanceEvent{Code: kafka.ErrRevokePartitions}, 0)
	m.ObserveRebalance(kafka.RebalanceEvent{Code: kafka.ErrFatal}, 0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Rebalances.WithLabelValues("assign")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Rebalances.WithLabelValues("revoke")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Rebalances.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.AssignedPartitions))
}

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Commits.WithLabelValues("success").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "groupworker_commits_total")
}

func TestNoop_IsIndependent(t *testing.T) {
	// two Noop instances must not collide on registration
	require.NotPanics(
		t, func() {
			_ = metrics.Noop()
			_ = metrics.Noop()
		},
	)
}

func TestObserveSkipped_Reasons(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveSkipped(kafka.ErrTimedOut)
	m.ObserveSkipped(kafka.ErrTimedOut)
	m.ObserveSkipped(kafka.ErrPartitionEOF)

	require.Equal(t, 2.0, testutil.ToFloat64(m.PollsSkipped.WithLabelValues("timed_out")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PollsSkipped.WithLabelValues("partition_eof")))
}

func TestObserveDispatch_CountsFailures(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	msg := kafka.Message{Topic: "orders"}

	m.ObserveDispatch(msg, 10*time.Millisecond, nil)
	m.ObserveDispatch(msg, 10*time.Millisecond, errors.New("boom"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.HandlerErrors.WithLabelValues("orders")))
	require.Equal(t, 2, testutil.CollectAndCount(m.DispatchDuration))
}

func TestObserveCommitAndFatal(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveCommit(nil)
	m.ObserveCommit(errors.New("coordinator moved"))
	m.ObserveFatal("poll", kafka.ErrFatal)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues("failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FatalErrors.WithLabelValues("poll", "-150")))
}
