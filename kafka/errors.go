package kafka

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/twmb/franz-go/pkg/kerr"
)

// CodeForError maps a transport error to an error code. Broker errors keep
// their protocol code; network failures become ErrTransport and anything else
// ErrFail.
func CodeForError(err error) ErrorCode {
	if err == nil {
		return ErrNoError
	}

	var ke *kerr.Error
	if errors.As(err, &ke) {
		return BrokerErrorCode(ke.Code)
	}

	var se sarama.KError
	if errors.As(err, &se) {
		return BrokerErrorCode(int16(se))
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimedOut
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, sarama.ErrOutOfBrokers) ||
		errors.Is(err, sarama.ErrNotConnected) {
		return ErrTransport
	}

	return ErrFail
}

// errorMessage builds the Message a poll returns for a fetch error.
func errorMessage(topic string, partition int32, err error) Message {
	return Message{
		Topic:     topic,
		Partition: partition,
		Err:       CodeForError(err),
		ErrStr:    err.Error(),
	}
}
