package groupworker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-groupworker/config"
	"github.com/hugolhafner/go-groupworker/errorhandler"
	"github.com/hugolhafner/go-groupworker/kafka"
	"github.com/hugolhafner/go-groupworker/logger"
	"github.com/hugolhafner/go-groupworker/otel"
	"github.com/hugolhafner/go-groupworker/rebalance"
	"github.com/hugolhafner/go-groupworker/serde"
)

const Version = "v0.1.0" // x-release-please-version

const notifyTimeout = 5 * time.Second

var (
	ErrAlreadyRunning = errors.New("worker is already running")
	ErrClosed         = errors.New("worker is closed")
)

// Worker runs the poll, classify, dispatch, commit cycle for one group
// member. Records are handled one at a time on the goroutine calling Run.
type Worker struct {
	config  config.Config
	opts    Options
	client  kafka.Consumer
	handler Handler

	logger    logger.Logger
	rebalance *rebalance.Handler
	msgLog    *MessageLogger

	mu        sync.Mutex
	running   bool
	closeOnce sync.Once
	closedCh  chan struct{}
}

func New(cfg config.Config, client kafka.Consumer, handler Handler, opts ...Option) *Worker {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.fillDefaults()

	if o.CommitBackoff == nil {
		o.CommitBackoff = backoff.NewFixed(cfg.CommitRetryBackoff)
	}

	l := o.Logger.With("group", cfg.GroupID, "client", cfg.ClientID)

	rb := o.Rebalance
	if rb == nil {
		rb = rebalance.NewHandler(
			rebalance.WithLogger(l),
			rebalance.WithObserver(o.Metrics),
		)
	} else {
		rb.Inherit(l, o.Metrics)
	}

	return &Worker{
		config:    cfg,
		opts:      o,
		client:    client,
		handler:   handler,
		logger:    l,
		rebalance: rb,
		closedCh:  make(chan struct{}),
	}
}

// Run subscribes and consumes until ctx is cancelled, Close is called or a
// fatal error occurs. Configuration problems are returned before the client
// is touched. A clean stop returns nil.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.validate(); err != nil {
		return err
	}

	if err := w.startRunning(); err != nil {
		return err
	}
	defer w.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-w.closedCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	if err := w.client.Subscribe(w.config.Topics, w.rebalance); err != nil {
		return fmt.Errorf("failed to subscribe to topics: %w", err)
	}
	defer w.shutdown()

	w.logger.Debug(fmt.Sprintf("Consume process [%s] started", w.config.ClientID), "topics", w.config.Topics)

	for {
		select {
		case <-runCtx.Done():
			return nil
		default:
		}

		if err := w.cycle(runCtx); err != nil {
			return err
		}
	}
}

// Assignment is a copy of the partitions this member currently owns.
func (w *Worker) Assignment() []kafka.TopicPartition {
	return w.rebalance.Assignment()
}

func (w *Worker) Close() {
	w.closeOnce.Do(
		func() {
			w.mu.Lock()
			defer w.mu.Unlock()

			w.running = false
			close(w.closedCh)
		},
	)
}

func (w *Worker) validate() error {
	if err := w.config.Validate(); err != nil {
		return err
	}
	if w.handler == nil {
		return config.NewConfigurationError("handler", "no handler configured")
	}
	if w.client == nil {
		return config.NewConfigurationError("client", "no kafka client configured")
	}

	s := w.opts.Summariser
	if s == nil {
		var err error
		if s, err = serde.ForFormat(w.config.PayloadFormat); err != nil {
			return config.NewConfigurationError("payload_format", err.Error())
		}
	}
	w.msgLog = NewMessageLogger(w.logger, s)

	return nil
}

func (w *Worker) startRunning() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrAlreadyRunning
	}

	select {
	case <-w.closedCh:
		return ErrClosed
	default:
	}

	w.running = true
	return nil
}

// cycle runs one poll. It returns an error only when the worker must stop.
func (w *Worker) cycle(ctx context.Context) error {
	msg, err := w.client.Poll(ctx, w.config.ConsumeTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		pe := pollError(err)
		w.logger.Error(pe.Error(), "phase", pe.Phase.String(), "code", int32(pe.Code))
		return w.fail(ctx, pe)
	}

	res := errorhandler.Classify(msg)
	switch res.Type {
	case errorhandler.ResultTypeSkip:
		w.opts.Metrics.ObserveSkipped(msg.Err)
		return nil
	case errorhandler.ResultTypeFatal:
		w.msgLog.Log(msg)
		return w.fail(ctx, res.Err)
	}

	w.msgLog.Log(msg)
	w.opts.Metrics.ObserveConsumed(msg)

	if err := w.dispatch(ctx, msg); err != nil {
		w.logger.Error(
			err.Error(),
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		return nil
	}

	w.commit(ctx)
	return nil
}

func (w *Worker) dispatch(ctx context.Context, msg kafka.Message) (err error) {
	spanCtx, span := w.opts.Telemetry.StartDispatch(ctx, msg, w.config.GroupID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = errorhandler.NewHandlerError(fmt.Errorf("panic: %v", r), msg)
		}

		otel.EndDispatch(span, err)
		w.opts.Metrics.ObserveDispatch(msg, time.Since(start), err)
	}()

	if herr := w.handler.Execute(spanCtx, msg); herr != nil {
		return errorhandler.NewHandlerError(herr, msg)
	}

	return nil
}

// commit retries up to CommitRetries times. A commit that still fails is
// logged and the loop carries on; the offsets go out with the next commit.
func (w *Worker) commit(ctx context.Context) {
	var (
		err      error
		attempts int
	)

retry:
	for attempts <= w.config.CommitRetries {
		if attempts > 0 {
			select {
			case <-ctx.Done():
				break retry
			case <-time.After(w.opts.CommitBackoff.Next(uint(attempts - 1))):
			}
		}

		attempts++
		if err = w.client.Commit(ctx); err == nil || !retriableCommitError(err) {
			break
		}

		w.logger.Warn("Commit failed, retrying", "attempt", attempts, "error", err)
	}

	w.opts.Metrics.ObserveCommit(err)
	if err != nil {
		w.logger.Error(errorhandler.NewCommitError(err, attempts).Error())
	}
}

// fail records a fatal error and hands it to the notifier.
func (w *Worker) fail(ctx context.Context, pe *errorhandler.ProtocolError) error {
	w.opts.Metrics.ObserveFatal(pe.Phase.String(), pe.Code)

	if w.opts.Notifier != nil {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		msg := fmt.Sprintf("Consume process [%s] of group %s stopped: %s", w.config.ClientID, w.config.GroupID, pe.Error())
		if err := w.opts.Notifier.Send(nctx, msg); err != nil {
			w.logger.Warn("Failed to send exception notice", "error", err)
		}
	}

	return pe
}

func (w *Worker) shutdown() {
	if err := w.client.Unsubscribe(); err != nil && !errors.Is(err, kafka.ErrClientClosed) {
		w.logger.Warn("Failed to leave consumer group", "error", err)
	}

	w.logger.Info(fmt.Sprintf("Consume process [%s] stopped", w.config.ClientID))
}

func pollError(err error) *errorhandler.ProtocolError {
	if pe, ok := errorhandler.AsProtocolError(err); ok {
		return pe
	}

	phase := errorhandler.PhasePoll
	code := kafka.CodeForError(err)

	switch {
	case errors.Is(err, kafka.ErrRebalanceNotAcknowledged):
		phase = errorhandler.PhaseRebalance
		code = kafka.ErrFatal
	case errors.Is(err, kafka.ErrClientClosed), errors.Is(err, kafka.ErrNotSubscribed):
		code = kafka.ErrFatal
	}

	pe := errorhandler.NewProtocolError(phase, code, err.Error())
	pe.Cause = err
	return pe
}

func retriableCommitError(err error) bool {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, kafka.ErrClientClosed),
		errors.Is(err, kafka.ErrNotSubscribed):
		return false
	default:
		return true
	}
}
