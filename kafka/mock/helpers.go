package mockkafka

import (
	"time"

	"github.com/hugolhafner/go-groupworker/kafka"
)

// RecordBuilder provides a fluent interface for building records.
type RecordBuilder struct {
	record kafka.Message
}

// Record creates a new RecordBuilder with the given key and value.
func Record(key, value string) *RecordBuilder {
	return RecordBytes([]byte(key), []byte(value))
}

func RecordBytes(key, value []byte) *RecordBuilder {
	return &RecordBuilder{
		record: kafka.Message{
			Key:       key,
			Value:     value,
			Timestamp: time.Now(),
		},
	}
}

func (b *RecordBuilder) WithOffset(offset int64) *RecordBuilder {
	b.record.Offset = offset
	return b
}

func (b *RecordBuilder) WithTimestamp(ts time.Time) *RecordBuilder {
	b.record.Timestamp = ts
	return b
}

// WithHeader appends a header; duplicate keys are kept.
func (b *RecordBuilder) WithHeader(key string, value []byte) *RecordBuilder {
	b.record.Headers = append(b.record.Headers, kafka.Header{Key: key, Value: value})
	return b
}

func (b *RecordBuilder) WithLeaderEpoch(epoch int32) *RecordBuilder {
	b.record.LeaderEpoch = epoch
	return b
}

func (b *RecordBuilder) Build() kafka.Message {
	return b.record
}

// SimpleRecord creates a record with just key and value as strings.
func SimpleRecord(key, value string) kafka.Message {
	return Record(key, value).Build()
}

// SimpleRecords creates records from key, value argument pairs.
func SimpleRecords(keyValuePairs ...string) []kafka.Message {
	if len(keyValuePairs)%2 != 0 {
		panic("SimpleRecords requires an even number of arguments (key-value pairs)")
	}

	records := make([]kafka.Message, 0, len(keyValuePairs)/2)
	for i := 0; i < len(keyValuePairs); i += 2 {
		records = append(records, SimpleRecord(keyValuePairs[i], keyValuePairs[i+1]))
	}
	return records
}

// Assign and Revoke build rebalance events for InjectRebalance.
func Assign(partitions ...kafka.TopicPartition) kafka.RebalanceEvent {
	return kafka.RebalanceEvent{Code: kafka.ErrAssignPartitions, Partitions: partitions}
}

func Revoke(partitions ...kafka.TopicPartition) kafka.RebalanceEvent {
	return kafka.RebalanceEvent{Code: kafka.ErrRevokePartitions, Partitions: partitions}
}

// TP is shorthand for a TopicPartition literal.
func TP(topic string, partition int32) kafka.TopicPartition {
	return kafka.TopicPartition{Topic: topic, Partition: partition}
}
