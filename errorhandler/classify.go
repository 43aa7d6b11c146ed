package errorhandler

import (
	"github.com/hugolhafner/go-groupworker/kafka"
)

const (
	ReasonPartitionEOF = "no more messages, caller should poll again"
	ReasonTimedOut     = "poll timed out"
)

// Classify maps a poll result to Deliver, Skip or Fatal. It only looks at the
// message's error code and string, so the same message always classifies the
// same way.
func Classify(msg kafka.Message) Result {
	switch msg.Err {
	case kafka.ErrNoError:
		return Deliver(msg)
	case kafka.ErrPartitionEOF:
		return Skip(msg, ReasonPartitionEOF)
	case kafka.ErrTimedOut:
		return Skip(msg, ReasonTimedOut)
	default:
		return Fatal(msg, NewProtocolError(PhasePoll, msg.Err, msg.ErrorString()))
	}
}
