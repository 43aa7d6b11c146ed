package metrics

import (
	"strconv"
	"time"

	"github.com/hugolhafner/go-groupworker/kafka"
	"github.com/hugolhafner/go-groupworker/rebalance"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "groupworker"

var _ rebalance.Observer = (*Metrics)(nil)

// Metrics holds all Prometheus collectors for the worker
type Metrics struct {
	MessagesConsumed   *prometheus.CounterVec
	PollsSkipped       *prometheus.CounterVec
	HandlerErrors      *prometheus.CounterVec
	FatalErrors        *prometheus.CounterVec
	Commits            *prometheus.CounterVec
	Rebalances         *prometheus.CounterVec
	AssignedPartitions prometheus.Gauge
	LastConsumedOffset *prometheus.GaugeVec
	DispatchDuration   *prometheus.HistogramVec
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		MessagesConsumed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_consumed_total",
				Help:      "Records delivered to the handler",
			},
			[]string{"topic"},
		),
		PollsSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_skipped_total",
				Help:      "Polls that returned no data (timeout or end of partition)",
			},
			[]string{"reason"},
		),
		HandlerErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_errors_total",
				Help:      "Records the handler failed to process",
			},
			[]string{"topic"},
		),
		FatalErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fatal_errors_total",
				Help:      "Errors that stopped the worker",
			},
			[]string{"phase", "code"},
		),
		Commits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commits_total",
				Help:      "Synchronous offset commits by result",
			},
			[]string{"result"},
		),
		Rebalances: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rebalances_total",
				Help:      "Rebalance events delivered to the worker",
			},
			[]string{"event"},
		),
		AssignedPartitions: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "assigned_partitions",
				Help:      "Partitions currently owned by this process",
			},
		),
		LastConsumedOffset: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_consumed_offset",
				Help:      "Last consumed offset by topic and partition",
			},
			[]string{"topic", "partition"},
		),
		DispatchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent in the message handler",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"topic", "status"},
		),
	}
}

// Noop returns collectors registered on a throwaway registry.
func Noop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) ObserveConsumed(msg kafka.Message) {
	m.MessagesConsumed.WithLabelValues(msg.Topic).Inc()
	m.LastConsumedOffset.
		WithLabelValues(msg.Topic, strconv.FormatInt(int64(msg.Partition), 10)).
		Set(float64(msg.Offset))
}

func (m *Metrics) ObserveRebalance(ev kafka.RebalanceEvent, assigned int) {
	event := "error"
	switch ev.Code {
	case kafka.ErrAssignPartitions:
		event = "assign"
	case kafka.ErrRevokePartitions:
		event = "revoke"
	}

	m.Rebalances.WithLabelValues(event).Inc()
	m.AssignedPartitions.Set(float64(assigned))
}

// ObserveSkipped counts a poll that produced no data.
func (m *Metrics) ObserveSkipped(code kafka.ErrorCode) {
	reason := "other"
	switch code {
	case kafka.ErrPartitionEOF:
		reason = "partition_eof"
	case kafka.ErrTimedOut:
		reason = "timed_out"
	}
	m.PollsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveDispatch(msg kafka.Message, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
		m.HandlerErrors.WithLabelValues(msg.Topic).Inc()
	}
	m.DispatchDuration.WithLabelValues(msg.Topic, status).Observe(d.Seconds())
}

func (m *Metrics) ObserveCommit(err error) {
	result := "success"
	if err != nil {
		result = "failed"
	}
	m.Commits.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveFatal(phase string, code kafka.ErrorCode) {
	m.FatalErrors.WithLabelValues(phase, strconv.FormatInt(int64(code), 10)).Inc()
}
