package mockkafka

import (
	"context"
	"sync"
	"time"

	"github.com/hugolhafner/go-groupworker/kafka"
)

var _ kafka.Client = (*Client)(nil)

// pollEvent is an injected condition returned by Poll ahead of queued records.
// Exactly one of msg and rebalance is set.
type pollEvent struct {
	msg       *kafka.Message
	rebalance *kafka.RebalanceEvent
	// auto resolves the assignment when the event is delivered rather than
	// when it is queued.
	auto bool
}

// Client is an in-memory kafka.Client. Records are queued per partition and
// delivered one per Poll, round-robin over the assigned partitions. Rebalances
// are delivered from inside Poll like a real group member.
type Client struct {
	mu sync.Mutex

	recordQueues   map[kafka.TopicPartition][]kafka.Message
	queuePositions map[kafka.TopicPartition]int
	eofReported    map[kafka.TopicPartition]bool
	events         []pollEvent
	rrIndex        int

	consumed         map[kafka.TopicPartition]int64
	committedOffsets map[kafka.TopicPartition]int64
	commits          []map[kafka.TopicPartition]int64
	commitAttempts   int

	subscriptions []string
	rebalanceCb   kafka.RebalanceCallback
	assigned      map[kafka.TopicPartition]struct{}
	acked         bool
	delivered     []kafka.RebalanceEvent
	pendingErr    error

	autoAssign   bool
	partitionEOF bool
	idleDelay    time.Duration
	pollCount    int

	pollErr   func() error
	commitErr func(attempt int) error
	pingErr   error

	closed     bool
	subscribed bool
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		recordQueues:     make(map[kafka.TopicPartition][]kafka.Message),
		queuePositions:   make(map[kafka.TopicPartition]int),
		eofReported:      make(map[kafka.TopicPartition]bool),
		consumed:         make(map[kafka.TopicPartition]int64),
		committedOffsets: make(map[kafka.TopicPartition]int64),
		assigned:         make(map[kafka.TopicPartition]struct{}),
		autoAssign:       true,
		idleDelay:        time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Subscribe registers the callback. Unless disabled with WithoutAutoAssign,
// the first Poll delivers an assignment of every queued partition of the
// subscribed topics.
func (c *Client) Subscribe(topics []string, rebalanceCb kafka.RebalanceCallback) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return kafka.ErrClientClosed
	}
	if c.subscribed {
		return kafka.ErrAlreadySubscribed
	}

	c.subscriptions = append([]string(nil), topics...)
	c.rebalanceCb = rebalanceCb
	c.subscribed = true

	if c.autoAssign {
		c.events = append(
			[]pollEvent{
				{
					rebalance: &kafka.RebalanceEvent{Code: kafka.ErrAssignPartitions},
					auto:      true,
				},
			}, c.events...,
		)
	}

	return nil
}

// Poll returns the next injected event or queued record. With nothing to
// deliver it waits briefly and returns a timed out message.
func (c *Client) Poll(ctx context.Context, timeout time.Duration) (kafka.Message, error) {
	c.mu.Lock()
	c.pollCount++

	if err := c.pollPreconditions(ctx); err != nil {
		c.mu.Unlock()
		return kafka.Message{}, err
	}

	for len(c.events) > 0 {
		ev := c.events[0]
		c.events = c.events[1:]

		if ev.msg != nil {
			c.mu.Unlock()
			return *ev.msg, nil
		}

		rb := *ev.rebalance
		if ev.auto {
			rb.Partitions = c.subscribedPartitionsLocked()
		}

		if err := c.deliverLocked(rb); err != nil {
			c.mu.Unlock()
			return kafka.Message{}, err
		}
	}

	if msg, ok := c.nextRecordLocked(); ok {
		c.mu.Unlock()
		return msg, nil
	}

	c.mu.Unlock()

	wait := c.idleDelay
	if timeout > 0 && timeout < wait {
		wait = timeout
	}

	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case <-time.After(wait):
	}

	return kafka.Message{Err: kafka.ErrTimedOut}, nil
}

func (c *Client) pollPreconditions(ctx context.Context) error {
	if c.closed {
		return kafka.ErrClientClosed
	}
	if !c.subscribed {
		return kafka.ErrNotSubscribed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.pendingErr != nil {
		err := c.pendingErr
		c.pendingErr = nil
		return err
	}

	if c.pollErr != nil {
		if err := c.pollErr(); err != nil {
			return err
		}
	}

	return nil
}

// deliverLocked runs the rebalance callback with the lock released and checks
// that assign and revoke events were acknowledged.
func (c *Client) deliverLocked(ev kafka.RebalanceEvent) error {
	cb := c.rebalanceCb
	c.acked = false
	c.delivered = append(c.delivered, ev)

	if cb == nil {
		c.applyAssignLocked(ev.Partitions)
		return nil
	}

	c.mu.Unlock()
	err := cb.OnRebalance(c, ev)
	c.mu.Lock()

	if err != nil {
		return err
	}

	needsAck := ev.Code == kafka.ErrAssignPartitions || ev.Code == kafka.ErrRevokePartitions
	if needsAck && !c.acked {
		return kafka.ErrRebalanceNotAcknowledged
	}

	return nil
}

func (c *Client) nextRecordLocked() (kafka.Message, bool) {
	partitions := c.assignedLocked()
	if len(partitions) == 0 {
		return kafka.Message{}, false
	}

	for i := 0; i < len(partitions); i++ {
		tp := partitions[(c.rrIndex+i)%len(partitions)]
		queue := c.recordQueues[tp]
		pos := c.queuePositions[tp]

		if pos < len(queue) {
			msg := queue[pos]
			c.queuePositions[tp]++
			c.consumed[tp] = msg.Offset + 1
			c.rrIndex = (c.rrIndex + i + 1) % len(partitions)
			return msg.Copy(), true
		}

		if c.partitionEOF && pos > 0 && !c.eofReported[tp] {
			c.eofReported[tp] = true
			return kafka.Message{
				Topic:     tp.Topic,
				Partition: tp.Partition,
				Offset:    c.consumed[tp],
				Err:       kafka.ErrPartitionEOF,
			}, true
		}
	}

	return kafka.Message{}, false
}

// Assign implements kafka.Assigner for rebalance callbacks.
func (c *Client) Assign(partitions []kafka.TopicPartition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return kafka.ErrClientClosed
	}

	c.applyAssignLocked(partitions)
	c.acked = true
	return nil
}

func (c *Client) applyAssignLocked(partitions []kafka.TopicPartition) {
	c.assigned = make(map[kafka.TopicPartition]struct{}, len(partitions))
	for _, tp := range partitions {
		c.assigned[tp] = struct{}{}
	}
	c.rrIndex = 0
}

// Commit snapshots the consumed position of every assigned partition.
func (c *Client) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if c.closed {
		return kafka.ErrClientClosed
	}

	c.commitAttempts++
	if c.commitErr != nil {
		if err := c.commitErr(c.commitAttempts); err != nil {
			return err
		}
	}

	snapshot := make(map[kafka.TopicPartition]int64)
	for tp := range c.assigned {
		if off, ok := c.consumed[tp]; ok {
			snapshot[tp] = off
			c.committedOffsets[tp] = off
		}
	}
	c.commits = append(c.commits, snapshot)

	return nil
}

// Unsubscribe delivers a revoke of the current assignment and leaves.
func (c *Client) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.subscribed {
		return kafka.ErrNotSubscribed
	}

	ev := kafka.RebalanceEvent{Code: kafka.ErrRevokePartitions, Partitions: c.assignedLocked()}
	err := c.deliverLocked(ev)

	c.assigned = make(map[kafka.TopicPartition]struct{})
	c.subscribed = false
	c.events = nil

	return err
}

func (c *Client) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pingErr
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
}

func (c *Client) assignedLocked() []kafka.TopicPartition {
	out := make([]kafka.TopicPartition, 0, len(c.assigned))
	for tp := range c.assigned {
		out = append(out, tp)
	}
	kafka.SortTopicPartitions(out)
	return out
}

func (c *Client) subscribedPartitionsLocked() []kafka.TopicPartition {
	var out []kafka.TopicPartition
	for tp := range c.recordQueues {
		for _, topic := range c.subscriptions {
			if tp.Topic == topic {
				out = append(out, tp)
				break
			}
		}
	}
	kafka.SortTopicPartitions(out)
	return out
}

// AddRecords queues records for a partition. Topic and Partition are filled
// in, and records without an offset continue from the end of the queue.
func (c *Client) AddRecords(topic string, partition int32, records ...kafka.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tp := kafka.TopicPartition{Topic: topic, Partition: partition}
	queue := c.recordQueues[tp]

	for _, r := range records {
		r.Topic = topic
		r.Partition = partition
		if r.Offset == 0 && len(queue) > 0 {
			r.Offset = queue[len(queue)-1].Offset + 1
		}
		queue = append(queue, r)
	}

	c.recordQueues[tp] = queue
	c.eofReported[tp] = false
}

// InjectMessage queues a message to be returned by Poll before any record.
// Use it for error conditions such as ErrTimedOut or broker codes.
func (c *Client) InjectMessage(msg kafka.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, pollEvent{msg: &msg})
}

// InjectError queues an error-coded message for a partition.
func (c *Client) InjectError(topic string, partition int32, code kafka.ErrorCode, errStr string) {
	c.InjectMessage(
		kafka.Message{
			Topic:     topic,
			Partition: partition,
			Err:       code,
			ErrStr:    errStr,
		},
	)
}

// InjectRebalance queues a rebalance event delivered on the next Poll.
func (c *Client) InjectRebalance(ev kafka.RebalanceEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev.Partitions = append([]kafka.TopicPartition(nil), ev.Partitions...)
	c.events = append(c.events, pollEvent{rebalance: &ev})
}

// FailNextPoll makes the next Poll return err once.
func (c *Client) FailNextPoll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pendingErr = err
}

func (c *Client) SetPollError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.pollErr = nil
	} else {
		c.pollErr = func() error { return err }
	}
}

func (c *Client) SetCommitError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.commitErr = nil
	} else {
		c.commitErr = func(int) error { return err }
	}
}

// SetCommitErrorFunc decides Commit errors by attempt number, starting at 1.
func (c *Client) SetCommitErrorFunc(fn func(attempt int) error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.commitErr = fn
}

func (c *Client) SetPingError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pingErr = err
}

// Commits returns every successful commit snapshot in order.
func (c *Client) Commits() []map[kafka.TopicPartition]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[kafka.TopicPartition]int64, len(c.commits))
	for i, snap := range c.commits {
		cp := make(map[kafka.TopicPartition]int64, len(snap))
		for k, v := range snap {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// CommitAttempts counts Commit calls, failed ones included.
func (c *Client) CommitAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.commitAttempts
}

func (c *Client) CommittedOffsets() map[kafka.TopicPartition]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[kafka.TopicPartition]int64, len(c.committedOffsets))
	for k, v := range c.committedOffsets {
		result[k] = v
	}
	return result
}

// CommittedOffset returns the next offset to consume as last committed.
func (c *Client) CommittedOffset(tp kafka.TopicPartition) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	offset, ok := c.committedOffsets[tp]
	return offset, ok
}

// RebalanceEvents returns the events delivered to the callback so far.
func (c *Client) RebalanceEvents() []kafka.RebalanceEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]kafka.RebalanceEvent, len(c.delivered))
	copy(out, c.delivered)
	return out
}

func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]string, len(c.subscriptions))
	copy(result, c.subscriptions)
	return result
}

func (c *Client) AssignedPartitions() []kafka.TopicPartition {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.assignedLocked()
}

// Remaining counts queued records not yet delivered.
func (c *Client) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for tp, queue := range c.recordQueues {
		n += len(queue) - c.queuePositions[tp]
	}
	return n
}

func (c *Client) PollCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pollCount
}

func (c *Client) IsSubscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.subscribed
}

func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// Reset rewinds queue positions and forgets commits. Queued records stay.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queuePositions = make(map[kafka.TopicPartition]int)
	c.eofReported = make(map[kafka.TopicPartition]bool)
	c.consumed = make(map[kafka.TopicPartition]int64)
	c.committedOffsets = make(map[kafka.TopicPartition]int64)
	c.commits = nil
	c.commitAttempts = 0
	c.delivered = nil
	c.closed = false
}
