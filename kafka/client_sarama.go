package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-groupworker/config"
	"github.com/hugolhafner/go-groupworker/logger"
)

var _ Client = (*SaramaClient)(nil)

// saramaRebalance carries a session Setup or Cleanup to the polling
// goroutine. The session blocks until done receives the callback result.
type saramaRebalance struct {
	ev   RebalanceEvent
	done chan error
}

type saramaRecord struct {
	msg *sarama.ConsumerMessage
	hwm int64
}

// SaramaClient is the sarama transport. The consumer group runs in its own
// goroutine; Poll is the only place rebalance callbacks and records are
// observed, so the caller sees them in order on one goroutine.
type SaramaClient struct {
	client sarama.Client
	group  sarama.ConsumerGroup
	config ClientConfig
	logger logger.Logger

	rebalances chan saramaRebalance
	records    chan saramaRecord
	errs       chan error
	closeCh    chan struct{}
	restart    backoff.Backoff

	mu          sync.Mutex
	subscribed  bool
	closed      bool
	rebalanceCb RebalanceCallback
	assigned    assignmentSet
	positions   map[TopicPartition]int64
	session     sarama.ConsumerGroupSession
	cancel      context.CancelFunc
	done        chan struct{}

	// pendingEOF is only touched by the polling goroutine.
	pendingEOF *Message
}

func NewSaramaClient(opts ...Option) (*SaramaClient, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	sc, err := saramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := sarama.NewClient(cfg.BootstrapServers, sc)
	if err != nil {
		return nil, fmt.Errorf("create sarama client: %w", err)
	}

	group, err := sarama.NewConsumerGroupFromClient(cfg.GroupID, client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return newSaramaClient(cfg, client, group), nil
}

func newSaramaClient(cfg ClientConfig, client sarama.Client, group sarama.ConsumerGroup) *SaramaClient {
	return &SaramaClient{
		client:     client,
		group:      group,
		config:     cfg,
		logger:     cfg.Logger.With("client", "sarama"),
		rebalances: make(chan saramaRebalance),
		records:    make(chan saramaRecord),
		errs:       make(chan error, 16),
		closeCh:    make(chan struct{}),
		restart:    backoff.NewFixed(time.Second),
		assigned:   newAssignmentSet(nil),
		positions:  make(map[TopicPartition]int64),
	}
}

func saramaConfig(cfg ClientConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_0_0_0
	sc.Consumer.Return.Errors = true
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	sc.Consumer.Group.Session.Timeout = cfg.SessionTimeout
	sc.Consumer.Group.Heartbeat.Interval = cfg.HeartbeatInterval
	sc.Consumer.Offsets.AutoCommit.Enable = cfg.AutoCommit
	if cfg.AutoCommit {
		sc.Consumer.Offsets.AutoCommit.Interval = cfg.AutoCommitInterval
	}

	switch cfg.OffsetReset {
	case config.OffsetResetLatest:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	case config.OffsetResetNone:
		return nil, config.NewConfigurationError("auto_offset_reset", "none is not supported by the sarama transport")
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	}

	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}

	if err := configureSaramaSASL(sc, cfg.SASL); err != nil {
		return nil, err
	}

	tlsCfg, err := NewTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tlsCfg
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sarama config: %w", err)
	}

	return sc, nil
}

func (s *SaramaClient) Subscribe(topics []string, rebalanceCb RebalanceCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClientClosed
	}
	if s.subscribed {
		return ErrAlreadySubscribed
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.rebalanceCb = rebalanceCb
	s.subscribed = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.consume(ctx, topics, s.done)
	go s.forwardErrors(ctx)

	return nil
}

// consume re-enters the group after every session, as sarama requires.
func (s *SaramaClient) consume(ctx context.Context, topics []string, done chan struct{}) {
	defer close(done)

	attempt := uint(0)
	for {
		err := s.group.Consume(ctx, topics, &saramaGroupHandler{s: s})
		if errors.Is(err, sarama.ErrClosedConsumerGroup) || ctx.Err() != nil {
			return
		}

		if err == nil {
			attempt = 0
			continue
		}

		attempt++
		s.logger.Error("Consumer group session failed", "error", err, "attempt", attempt)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.restart.Next(attempt)):
		}
	}
}

func (s *SaramaClient) forwardErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-s.group.Errors():
			if !ok {
				return
			}
			select {
			case s.errs <- err:
			default:
				s.logger.Warn("Dropping consumer error, queue full", "error", err)
			}
		}
	}
}

// Poll waits up to timeout for a record, a rebalance or an error. Rebalances
// are handled inline and do not end the wait.
func (s *SaramaClient) Poll(ctx context.Context, timeout time.Duration) (Message, error) {
	s.mu.Lock()
	closed, subscribed := s.closed, s.subscribed
	s.mu.Unlock()

	if closed {
		return Message{}, ErrClientClosed
	}
	if !subscribed {
		return Message{}, ErrNotSubscribed
	}

	if s.pendingEOF != nil {
		msg := *s.pendingEOF
		s.pendingEOF = nil
		return msg, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()

		case <-timer.C:
			return Message{Err: ErrTimedOut}, nil

		case rb := <-s.rebalances:
			err := dispatchRebalance(s.callback(), rb.ev, s.applyAssignment)
			rb.done <- err
			if err != nil {
				return Message{}, err
			}

		case err := <-s.errs:
			var ce *sarama.ConsumerError
			if errors.As(err, &ce) {
				return errorMessage(ce.Topic, ce.Partition, ce.Err), nil
			}
			return errorMessage("", -1, err), nil

		case rec := <-s.records:
			if msg, ok := s.accept(rec); ok {
				return msg, nil
			}
		}
	}
}

func (s *SaramaClient) callback() RebalanceCallback {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rebalanceCb
}

func (s *SaramaClient) applyAssignment(partitions []TopicPartition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assigned = newAssignmentSet(partitions)
	for tp := range s.positions {
		if !s.assigned.has(tp) {
			delete(s.positions, tp)
		}
	}

	return nil
}

// accept converts a claimed message, dropping it if its partition is no
// longer assigned, and queues an EOF marker when it reaches the watermark.
func (s *SaramaClient) accept(rec saramaRecord) (Message, bool) {
	m := rec.msg
	tp := TopicPartition{Topic: m.Topic, Partition: m.Partition}

	s.mu.Lock()
	if !s.assigned.has(tp) {
		s.mu.Unlock()
		return Message{}, false
	}
	s.positions[tp] = m.Offset + 1
	session := s.session
	s.mu.Unlock()

	if s.config.AutoCommit && session != nil {
		session.MarkMessage(m, "")
	}

	if s.config.PartitionEOF && m.Offset+1 >= rec.hwm {
		s.pendingEOF = &Message{
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset + 1,
			Err:       ErrPartitionEOF,
		}
	}

	return convertSaramaMessage(m), true
}

// Commit marks every delivered position on the live session and flushes.
// Between sessions there is nothing to commit against and ErrNoSession is
// returned.
func (s *SaramaClient) Commit(context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClientClosed
	}
	if !s.subscribed {
		s.mu.Unlock()
		return ErrNotSubscribed
	}

	session := s.session
	positions := make(map[TopicPartition]int64, len(s.positions))
	for tp, off := range s.positions {
		positions[tp] = off
	}
	s.mu.Unlock()

	if session == nil {
		return ErrNoSession
	}
	if len(positions) == 0 {
		return nil
	}

	for tp, off := range positions {
		session.MarkOffset(tp.Topic, tp.Partition, off, "")
	}
	session.Commit()

	return nil
}

// Unsubscribe ends the group session. The session's Cleanup delivers the
// revoke, which is serviced here because the caller is no longer polling.
func (s *SaramaClient) Unsubscribe() error {
	s.mu.Lock()
	if !s.subscribed {
		s.mu.Unlock()
		return ErrNotSubscribed
	}
	s.subscribed = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()

	var firstErr error
	for {
		select {
		case rb := <-s.rebalances:
			err := dispatchRebalance(s.callback(), rb.ev, s.applyAssignment)
			rb.done <- err
			if err != nil && firstErr == nil {
				firstErr = err
			}
		case <-s.records:
		case <-done:
			return firstErr
		}
	}
}

func (s *SaramaClient) Ping(context.Context) error {
	if len(s.client.Brokers()) == 0 {
		return sarama.ErrOutOfBrokers
	}
	return s.client.RefreshMetadata()
}

func (s *SaramaClient) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	close(s.closeCh)
	if cancel != nil {
		cancel()
	}

	if err := s.group.Close(); err != nil {
		s.logger.Warn("Close consumer group failed", "error", err)
	}
	if err := s.client.Close(); err != nil && !errors.Is(err, sarama.ErrClosedClient) {
		s.logger.Warn("Close client failed", "error", err)
	}
}

// handOff sends ev to the polling goroutine and waits for the callback.
func (s *SaramaClient) handOff(ctx context.Context, ev RebalanceEvent) error {
	rb := saramaRebalance{ev: ev, done: make(chan error, 1)}

	select {
	case s.rebalances <- rb:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closeCh:
		return nil
	}

	return <-rb.done
}

type saramaGroupHandler struct {
	s *SaramaClient
}

func (h *saramaGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.s.mu.Lock()
	h.s.session = session
	h.s.mu.Unlock()

	ev := RebalanceEvent{Code: ErrAssignPartitions, Partitions: mapToTopicPartitions(session.Claims())}
	return h.s.handOff(session.Context(), ev)
}

// Cleanup runs after every ConsumeClaim has returned. Its context is
// already done, so the revoke is handed off without it.
func (h *saramaGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	h.s.mu.Lock()
	partitions := h.s.assigned.list()
	h.s.session = nil
	h.s.mu.Unlock()

	ev := RebalanceEvent{Code: ErrRevokePartitions, Partitions: partitions}
	return h.s.handOff(context.Background(), ev)
}

func (h *saramaGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			select {
			case h.s.records <- saramaRecord{msg: msg, hwm: claim.HighWaterMarkOffset()}:
			case <-session.Context().Done():
				return nil
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

func convertSaramaMessage(m *sarama.ConsumerMessage) Message {
	headers := make([]Header, 0, len(m.Headers))
	for _, h := range m.Headers {
		if h == nil {
			continue
		}
		headers = append(headers, Header{Key: string(h.Key), Value: h.Value})
	}

	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Headers:   headers,
		Timestamp: m.Timestamp,
	}
}
