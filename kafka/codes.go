package kafka

import "strconv"

// ErrorCode follows librdkafka's numbering: positive values are broker
// protocol error codes, negative values are raised by the client itself.
type ErrorCode int32

const (
	ErrNoError          ErrorCode = 0
	ErrBadMsg           ErrorCode = -199
	ErrFail             ErrorCode = -196
	ErrTransport        ErrorCode = -195
	ErrPartitionEOF     ErrorCode = -191
	ErrUnknownPartition ErrorCode = -190
	ErrTimedOut         ErrorCode = -185
	ErrAssignPartitions ErrorCode = -175
	ErrRevokePartitions ErrorCode = -174
	ErrFatal            ErrorCode = -150
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNoError:
		return "Success"
	case ErrBadMsg:
		return "Local: Bad message format"
	case ErrFail:
		return "Local: Communication failure with broker"
	case ErrTransport:
		return "Local: Broker transport failure"
	case ErrPartitionEOF:
		return "Broker: No more messages"
	case ErrUnknownPartition:
		return "Local: Unknown partition"
	case ErrTimedOut:
		return "Local: Timed out"
	case ErrAssignPartitions:
		return "Local: Assign partitions"
	case ErrRevokePartitions:
		return "Local: Revoke partitions"
	case ErrFatal:
		return "Local: Fatal error"
	default:
		return "Err-" + strconv.FormatInt(int64(c), 10)
	}
}

// BrokerErrorCode lifts a Kafka protocol error code into the ErrorCode space.
func BrokerErrorCode(code int16) ErrorCode {
	return ErrorCode(code)
}
