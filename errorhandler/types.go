package errorhandler

import (
	"github.com/hugolhafner/go-groupworker/kafka"
)

type ResultType int

const (
	ResultTypeDeliver ResultType = iota // Hand the record to the handler
	ResultTypeSkip                      // Not data, not an error; poll again
	ResultTypeFatal                     // Stop the loop
)

func (r ResultType) String() string {
	switch r {
	case ResultTypeDeliver:
		return "Deliver"
	case ResultTypeSkip:
		return "Skip"
	case ResultTypeFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Result is the outcome of classifying one poll result. Message is set for
// every type; Reason only for skips and Err only for fatals.
type Result struct {
	Type    ResultType
	Message kafka.Message
	Reason  string
	Err     *ProtocolError
}

func Deliver(msg kafka.Message) Result {
	return Result{Type: ResultTypeDeliver, Message: msg}
}

func Skip(msg kafka.Message, reason string) Result {
	return Result{Type: ResultTypeSkip, Message: msg, Reason: reason}
}

func Fatal(msg kafka.Message, err *ProtocolError) Result {
	return Result{Type: ResultTypeFatal, Message: msg, Err: err}
}
