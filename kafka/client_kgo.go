package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hugolhafner/go-groupworker/config"
	"github.com/hugolhafner/go-groupworker/logger"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

var _ Client = (*KgoClient)(nil)

const leaveGroupTimeout = 30 * time.Second

// bufferedRecord is a record waiting to be handed out by Poll. rec is nil for
// partition EOF markers.
type bufferedRecord struct {
	msg Message
	rec *kgo.Record
}

// KgoClient is the franz-go transport. Rebalances are blocked while records
// are buffered, so callbacks only run inside Poll between batches.
type KgoClient struct {
	client *kgo.Client
	config ClientConfig
	logger logger.Logger

	mu          sync.Mutex
	subscribed  bool
	closed      bool
	rebalanceCb RebalanceCallback
	assigned    assignmentSet
	positions   map[TopicPartition]kgo.EpochOffset
	pendingErr  error

	// buffer is only touched by the polling goroutine.
	buffer []bufferedRecord
}

func NewKgoClient(opts ...Option) (*KgoClient, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	kc := &KgoClient{
		config:    cfg,
		logger:    cfg.Logger.With("client", "kgo"),
		assigned:  newAssignmentSet(nil),
		positions: make(map[TopicPartition]kgo.EpochOffset),
	}

	kgoOpts := []kgo.Opt{
		kgo.SeedBrokers(cfg.BootstrapServers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.Balancers(kgo.StickyBalancer()),
		kgo.BlockRebalanceOnPoll(),
		kgo.OnPartitionsAssigned(kc.onAssigned),
		kgo.OnPartitionsRevoked(kc.onRevoked),
		kgo.OnPartitionsLost(kc.onRevoked),
		kgo.WithLogger(newKgoLogger(kc.logger)),
		kgo.SessionTimeout(cfg.SessionTimeout),
		kgo.HeartbeatInterval(cfg.HeartbeatInterval),
		kgo.ConsumeResetOffset(resetOffset(cfg.OffsetReset)),
	}

	if cfg.ClientID != "" {
		kgoOpts = append(kgoOpts, kgo.ClientID(cfg.ClientID))
	}

	if cfg.AutoCommit {
		kgoOpts = append(kgoOpts, kgo.AutoCommitMarks(), kgo.AutoCommitInterval(cfg.AutoCommitInterval))
	} else {
		kgoOpts = append(kgoOpts, kgo.DisableAutoCommit())
	}

	mechanism, err := kgoSASL(cfg.SASL)
	if err != nil {
		return nil, err
	}
	if mechanism != nil {
		kgoOpts = append(kgoOpts, kgo.SASL(mechanism))
	}

	tlsCfg, err := NewTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		kgoOpts = append(kgoOpts, kgo.DialTLSConfig(tlsCfg))
	}

	client, err := kgo.NewClient(kgoOpts...)
	if err != nil {
		return nil, fmt.Errorf("create kgo client: %w", err)
	}

	kc.client = client

	return kc, nil
}

func resetOffset(r config.OffsetReset) kgo.Offset {
	switch r {
	case config.OffsetResetLatest:
		return kgo.NewOffset().AtEnd()
	case config.OffsetResetNone:
		return kgo.NewOffset().AtCommitted()
	default:
		return kgo.NewOffset().AtStart()
	}
}

func (k *KgoClient) onAssigned(_ context.Context, _ *kgo.Client, assigned map[string][]int32) {
	k.deliver(RebalanceEvent{Code: ErrAssignPartitions, Partitions: mapToTopicPartitions(assigned)})
}

// onRevoked also serves lost partitions: both end ownership.
func (k *KgoClient) onRevoked(_ context.Context, _ *kgo.Client, revoked map[string][]int32) {
	k.deliver(RebalanceEvent{Code: ErrRevokePartitions, Partitions: mapToTopicPartitions(revoked)})
}

// deliver runs the callback and keeps its error for the next Poll.
func (k *KgoClient) deliver(ev RebalanceEvent) {
	k.mu.Lock()
	cb := k.rebalanceCb
	k.mu.Unlock()

	err := dispatchRebalance(cb, ev, k.applyAssignment)
	if err == nil {
		return
	}

	k.logger.Error("Rebalance callback failed", "event", ev.Code.String(), "error", err)

	k.mu.Lock()
	if k.pendingErr == nil {
		k.pendingErr = err
	}
	k.mu.Unlock()
}

func (k *KgoClient) applyAssignment(partitions []TopicPartition) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.assigned = newAssignmentSet(partitions)
	for tp := range k.positions {
		if !k.assigned.has(tp) {
			delete(k.positions, tp)
		}
	}

	return nil
}

func (k *KgoClient) Subscribe(topics []string, rebalanceCb RebalanceCallback) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrClientClosed
	}
	if k.subscribed {
		return ErrAlreadySubscribed
	}

	k.rebalanceCb = rebalanceCb
	k.client.AddConsumeTopics(topics...)
	k.subscribed = true

	return nil
}

// Poll hands out one buffered record at a time. When the buffer is empty it
// allows a pending rebalance and fetches the next batch.
func (k *KgoClient) Poll(ctx context.Context, timeout time.Duration) (Message, error) {
	if err := k.pollPreconditions(ctx); err != nil {
		return Message{}, err
	}

	for {
		if msg, ok := k.next(); ok {
			return msg, nil
		}

		k.client.AllowRebalance()

		pollCtx, cancel := context.WithTimeout(ctx, timeout)
		fetches := k.client.PollRecords(pollCtx, k.config.MaxPollRecords)
		cancel()

		if err := k.takePendingErr(); err != nil {
			return Message{}, err
		}
		if fetches.IsClientClosed() {
			return Message{}, ErrClientClosed
		}
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}

		if msg, ok := k.fetchError(fetches); ok {
			return msg, nil
		}

		k.bufferFetches(fetches)
		if len(k.buffer) == 0 {
			return Message{Err: ErrTimedOut}, nil
		}
	}
}

func (k *KgoClient) pollPreconditions(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrClientClosed
	}
	if !k.subscribed {
		return ErrNotSubscribed
	}
	if k.pendingErr != nil {
		err := k.pendingErr
		k.pendingErr = nil
		return err
	}

	return ctx.Err()
}

func (k *KgoClient) takePendingErr() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	err := k.pendingErr
	k.pendingErr = nil
	return err
}

// next pops the first buffered record of a still-assigned partition and
// advances that partition's commit position.
func (k *KgoClient) next() (Message, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for len(k.buffer) > 0 {
		br := k.buffer[0]
		k.buffer = k.buffer[1:]

		tp := br.msg.TopicPartition()
		if !k.assigned.has(tp) {
			continue
		}

		if br.rec != nil {
			k.positions[tp] = kgo.EpochOffset{Epoch: br.rec.LeaderEpoch, Offset: br.rec.Offset + 1}
			if k.config.AutoCommit {
				k.client.MarkCommitRecords(br.rec)
			}
		}

		return br.msg, true
	}

	return Message{}, false
}

// fetchError returns the first fetch error worth surfacing. Poll deadlines
// are not errors, and data loss is only informational.
func (k *KgoClient) fetchError(fetches kgo.Fetches) (Message, bool) {
	for _, fe := range fetches.Errors() {
		if errors.Is(fe.Err, context.DeadlineExceeded) || errors.Is(fe.Err, context.Canceled) {
			continue
		}

		var dataLoss *kgo.ErrDataLoss
		if errors.As(fe.Err, &dataLoss) {
			k.logger.Warn(
				"Data loss detected, consumption reset",
				"topic", fe.Topic,
				"partition", fe.Partition,
				"error", fe.Err,
			)
			continue
		}

		return errorMessage(fe.Topic, fe.Partition, fe.Err), true
	}

	return Message{}, false
}

func (k *KgoClient) bufferFetches(fetches kgo.Fetches) {
	fetches.EachPartition(
		func(p kgo.FetchTopicPartition) {
			if len(p.Records) == 0 {
				return
			}

			for _, r := range p.Records {
				k.buffer = append(k.buffer, bufferedRecord{msg: convertRecord(r), rec: r})
			}

			last := p.Records[len(p.Records)-1]
			if k.config.PartitionEOF && last.Offset+1 >= p.HighWatermark {
				k.buffer = append(
					k.buffer, bufferedRecord{
						msg: Message{
							Topic:     p.Topic,
							Partition: p.Partition,
							Offset:    last.Offset + 1,
							Err:       ErrPartitionEOF,
						},
					},
				)
			}
		},
	)
}

// Commit synchronously commits the position of every record handed out on
// a partition that is still assigned.
func (k *KgoClient) Commit(ctx context.Context) error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return ErrClientClosed
	}

	offsets := make(map[string]map[int32]kgo.EpochOffset)
	for tp, eo := range k.positions {
		if offsets[tp.Topic] == nil {
			offsets[tp.Topic] = make(map[int32]kgo.EpochOffset)
		}
		offsets[tp.Topic][tp.Partition] = eo
	}
	k.mu.Unlock()

	if len(offsets) == 0 {
		return nil
	}

	var commitErr error
	k.client.CommitOffsetsSync(
		ctx, offsets,
		func(_ *kgo.Client, _ *kmsg.OffsetCommitRequest, resp *kmsg.OffsetCommitResponse, err error) {
			if err != nil {
				commitErr = err
				return
			}
			for _, t := range resp.Topics {
				for _, p := range t.Partitions {
					if perr := kerr.ErrorForCode(p.ErrorCode); perr != nil && commitErr == nil {
						commitErr = fmt.Errorf("commit %s-%d: %w", t.Topic, p.Partition, perr)
					}
				}
			}
		},
	)

	return commitErr
}

// Unsubscribe leaves the group. The revoke normally arrives through the
// group callbacks; one is synthesised if the group never assigned anything.
func (k *KgoClient) Unsubscribe() error {
	k.mu.Lock()
	if !k.subscribed {
		k.mu.Unlock()
		return ErrNotSubscribed
	}
	k.subscribed = false
	k.buffer = nil
	k.mu.Unlock()

	k.client.AllowRebalance()

	ctx, cancel := context.WithTimeout(context.Background(), leaveGroupTimeout)
	defer cancel()

	if err := k.client.LeaveGroupContext(ctx); err != nil {
		k.logger.Warn("Leave group failed", "error", err)
	}

	k.mu.Lock()
	remaining := k.assigned.list()
	cb := k.rebalanceCb
	k.mu.Unlock()

	if len(remaining) > 0 {
		if err := dispatchRebalance(cb, RebalanceEvent{Code: ErrRevokePartitions, Partitions: remaining}, k.applyAssignment); err != nil {
			return err
		}
	}

	return k.takePendingErr()
}

func (k *KgoClient) Ping(ctx context.Context) error {
	return k.client.Ping(ctx)
}

func (k *KgoClient) Close() {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return
	}
	k.closed = true
	k.mu.Unlock()

	k.client.CloseAllowingRebalance()
}

func convertRecord(r *kgo.Record) Message {
	return Message{
		Topic:       r.Topic,
		Partition:   r.Partition,
		Offset:      r.Offset,
		Key:         r.Key,
		Value:       r.Value,
		Headers:     convertFromKgoHeaders(r.Headers),
		Timestamp:   r.Timestamp,
		LeaderEpoch: r.LeaderEpoch,
	}
}

func convertFromKgoHeaders(headers []kgo.RecordHeader) []Header {
	converted := make([]Header, len(headers))
	for i, h := range headers {
		converted[i] = Header{Key: h.Key, Value: h.Value}
	}
	return converted
}
