package groupworker

import (
	"fmt"
	"strconv"

	"github.com/hugolhafner/go-groupworker/kafka"
	"github.com/hugolhafner/go-groupworker/logger"
	"github.com/hugolhafner/go-groupworker/serde"
)

const (
	recordLineFormat = "Topic：%s , Partition：%d , Offset：%d, Error：%s , Data：%s"

	// suppressedCode is never logged.
	suppressedCode kafka.ErrorCode = -185
)

// MessageLogger writes one line per polled record: info for data, error for
// anything carrying a non-zero code.
type MessageLogger struct {
	logger     logger.Logger
	summariser serde.Summariser
}

func NewMessageLogger(l logger.Logger, s serde.Summariser) *MessageLogger {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	if s == nil {
		s = serde.JSONSummariser()
	}

	return &MessageLogger{logger: l, summariser: s}
}

func (m *MessageLogger) Log(msg kafka.Message) {
	if msg.Err == suppressedCode {
		return
	}

	line := m.Format(msg)
	if msg.Err != kafka.ErrNoError {
		m.logger.Error("Consumed record error: " + line)
		return
	}

	m.logger.Info(line)
}

// Format renders the record line. The error field is "0" for data and
// "[code] reason" otherwise.
func (m *MessageLogger) Format(msg kafka.Message) string {
	errField := strconv.Itoa(int(msg.Err))
	if msg.Err != kafka.ErrNoError {
		errField = fmt.Sprintf("[%d] %s", msg.Err, msg.ErrorString())
	}

	return fmt.Sprintf(
		recordLineFormat,
		msg.Topic, msg.Partition, msg.Offset, errField, m.summariser.Summarise(msg.Value),
	)
}
