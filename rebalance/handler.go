// Package rebalance owns the set of partitions this process consumes. The
// transport hands it assign and revoke events between polls; it accepts each
// one back to the transport before returning.
package rebalance

import (
	"sync"

	"github.com/hugolhafner/go-groupworker/errorhandler"
	"github.com/hugolhafner/go-groupworker/kafka"
	"github.com/hugolhafner/go-groupworker/logger"
)

var _ kafka.RebalanceCallback = (*Handler)(nil)

type State int

const (
	StateUnassigned State = iota
	StateAssigned
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateUnassigned:
		return "Unassigned"
	case StateAssigned:
		return "Assigned"
	case StateErrored:
		return "Errored"
	default:
		return "Unknown"
	}
}

// Observer is told about every event after it has been handled.
type Observer interface {
	ObserveRebalance(ev kafka.RebalanceEvent, assigned int)
}

type Option func(*Handler)

func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

func WithObserver(o Observer) Option {
	return func(h *Handler) {
		h.observer = o
	}
}

// Handler is safe for use from the transport's callback goroutine while the
// worker reads Assignment.
type Handler struct {
	mu         sync.RWMutex
	state      State
	assignment map[kafka.TopicPartition]struct{}
	err        *errorhandler.ProtocolError

	logger   logger.Logger
	observer Observer
	// ownLogger is set when the logger came from WithLogger.
	ownLogger bool
}

func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		state:      StateUnassigned,
		assignment: make(map[kafka.TopicPartition]struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.ownLogger = h.logger != nil
	if !h.ownLogger {
		h.logger = logger.NewNoopLogger()
	}

	return h
}

// Inherit fills in a logger and observer the handler was built without.
// Options given to NewHandler take precedence.
func (h *Handler) Inherit(l logger.Logger, o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.ownLogger && l != nil {
		h.logger = l
		h.ownLogger = true
	}
	if h.observer == nil {
		h.observer = o
	}
}

func (h *Handler) OnRebalance(a kafka.Assigner, ev kafka.RebalanceEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateErrored {
		return h.err
	}

	var err error
	switch ev.Code {
	case kafka.ErrAssignPartitions:
		err = h.assign(a, ev.Partitions)
	case kafka.ErrRevokePartitions:
		err = h.revoke(a)
	default:
		h.logger.Debug("Error: partition rebalance failed", "code", int32(ev.Code), "error", ev.Code.String())
		err = h.fail(errorhandler.NewProtocolError(errorhandler.PhaseRebalance, ev.Code, ev.Code.String()))
	}

	if h.observer != nil {
		h.observer.ObserveRebalance(ev, len(h.assignment))
	}

	return err
}

func (h *Handler) assign(a kafka.Assigner, partitions []kafka.TopicPartition) error {
	status := "succeeded"
	if len(partitions) == 0 {
		status = "failed"
	}
	h.logger.Debug("Assign: partition assignment "+status, "partitions", partitionStrings(partitions))

	if err := a.Assign(partitions); err != nil {
		return h.fail(errorhandler.NewProtocolError(errorhandler.PhaseRebalance, kafka.ErrFatal, "assign: "+err.Error()))
	}

	next := make(map[kafka.TopicPartition]struct{}, len(partitions))
	for _, tp := range partitions {
		next[tp] = struct{}{}
	}

	h.assignment = next
	h.state = StateAssigned
	return nil
}

func (h *Handler) revoke(a kafka.Assigner) error {
	h.logger.Debug("Revoke: partitions released", "partitions", partitionStrings(h.sortedAssignment()))

	if err := a.Assign(nil); err != nil {
		return h.fail(errorhandler.NewProtocolError(errorhandler.PhaseRebalance, kafka.ErrFatal, "revoke: "+err.Error()))
	}

	h.assignment = make(map[kafka.TopicPartition]struct{})
	h.state = StateUnassigned
	return nil
}

func (h *Handler) fail(err *errorhandler.ProtocolError) error {
	h.state = StateErrored
	h.err = err
	h.assignment = make(map[kafka.TopicPartition]struct{})
	return err
}

// Assignment returns a sorted copy of the owned partitions.
func (h *Handler) Assignment() []kafka.TopicPartition {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.sortedAssignment()
}

func (h *Handler) Owns(tp kafka.TopicPartition) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.assignment[tp]
	return ok
}

func (h *Handler) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.state
}

// Err is the error that moved the handler to StateErrored, or nil.
func (h *Handler) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.err == nil {
		return nil
	}
	return h.err
}

func (h *Handler) sortedAssignment() []kafka.TopicPartition {
	out := make([]kafka.TopicPartition, 0, len(h.assignment))
	for tp := range h.assignment {
		out = append(out, tp)
	}
	kafka.SortTopicPartitions(out)
	return out
}

func partitionStrings(tps []kafka.TopicPartition) []string {
	out := make([]string, len(tps))
	for i, tp := range tps {
		out[i] = tp.String()
	}
	return out
}
