package kafka

import (
	"sort"
	"strconv"
	"time"
)

// Header represents a single Kafka record header
// kafka needs to support multiple headers with duplicate keys
type Header struct {
	Key   string
	Value []byte
}

// HeaderValue returns the value of the first header matching the given key
// Returns (nil, false) if no header with that key exists
func HeaderValue(headers []Header, key string) ([]byte, bool) {
	for _, h := range headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return nil, false
}

// Message is the result of a single poll. Err is ErrNoError for a consumed
// record; any other code means the poll produced a condition instead of data
// and only Topic/Partition/Offset may be meaningful.
type Message struct {
	Key         []byte
	Value       []byte
	Headers     []Header
	Topic       string
	Partition   int32
	Offset      int64
	LeaderEpoch int32
	Timestamp   time.Time

	Err    ErrorCode
	ErrStr string
}

func (m Message) TopicPartition() TopicPartition {
	return TopicPartition{
		Topic:     m.Topic,
		Partition: m.Partition,
	}
}

// Size is the number of key and value bytes.
func (m Message) Size() int {
	return len(m.Key) + len(m.Value)
}

// ErrorString returns ErrStr, falling back to the code's description.
func (m Message) ErrorString() string {
	if m.ErrStr != "" {
		return m.ErrStr
	}
	return m.Err.String()
}

func (m Message) Copy() Message {
	headersCopy := make([]Header, len(m.Headers))
	for i, h := range m.Headers {
		vCopy := make([]byte, len(h.Value))
		copy(vCopy, h.Value)
		headersCopy[i] = Header{Key: h.Key, Value: vCopy}
	}

	keyCopy := make([]byte, len(m.Key))
	copy(keyCopy, m.Key)

	valueCopy := make([]byte, len(m.Value))
	copy(valueCopy, m.Value)

	c := m
	c.Key = keyCopy
	c.Value = valueCopy
	c.Headers = headersCopy
	return c
}

type TopicPartition struct {
	Topic     string
	Partition int32
}

func (tp TopicPartition) String() string {
	return tp.Topic + "-" + strconv.FormatInt(int64(tp.Partition), 10)
}

// SortTopicPartitions orders by topic, then partition.
func SortTopicPartitions(tps []TopicPartition) {
	sort.Slice(
		tps, func(i, j int) bool {
			if tps[i].Topic != tps[j].Topic {
				return tps[i].Topic < tps[j].Topic
			}
			return tps[i].Partition < tps[j].Partition
		},
	)
}

func mapToTopicPartitions(m map[string][]int32) []TopicPartition {
	var tps []TopicPartition
	for topic, partitions := range m {
		for _, partition := range partitions {
			tps = append(
				tps, TopicPartition{
					Topic:     topic,
					Partition: partition,
				},
			)
		}
	}

	SortTopicPartitions(tps)
	return tps
}
