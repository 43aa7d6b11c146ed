package errorhandler

import (
	"errors"
	"fmt"

	"github.com/hugolhafner/go-groupworker/kafka"
)

// ProtocolError is an error code the worker cannot recover from unattended.
type ProtocolError struct {
	Phase   ErrorPhase
	Code    kafka.ErrorCode
	Message string
	// Cause is set when the code was derived from a client error.
	Cause error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: [%d] %s", e.Phase, e.Code, e.Message)
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

func NewProtocolError(phase ErrorPhase, code kafka.ErrorCode, message string) *ProtocolError {
	return &ProtocolError{
		Phase:   phase,
		Code:    code,
		Message: message,
	}
}

func AsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}

	return nil, false
}

// HandlerError wraps a failure returned (or panicked) by the message handler.
type HandlerError struct {
	Cause     error
	Topic     string
	Partition int32
	Offset    int64
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler failed at %s-%d@%d: %v", e.Topic, e.Partition, e.Offset, e.Cause)
}

func (e *HandlerError) Unwrap() error {
	return e.Cause
}

func NewHandlerError(cause error, msg kafka.Message) error {
	return &HandlerError{
		Cause:     cause,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}
}

func AsHandlerError(err error) (*HandlerError, bool) {
	var he *HandlerError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// CommitError wraps the last failure of a commit after all attempts.
type CommitError struct {
	Cause    error
	Attempts int
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed after %d attempt(s): %v", e.Attempts, e.Cause)
}

func (e *CommitError) Unwrap() error {
	return e.Cause
}

func NewCommitError(cause error, attempts int) error {
	return &CommitError{Cause: cause, Attempts: attempts}
}

func AsCommitError(err error) (*CommitError, bool) {
	var ce *CommitError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
