package serde

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type protobufSerde[T proto.Message] struct {
	newFn func() T
}

// Protobuf decodes into a fresh message from newFn for every call.
func Protobuf[T proto.Message](newFn func() T) Deserialiser[T] {
	return protobufSerde[T]{newFn: newFn}
}

func (s protobufSerde[T]) Deserialise(_ string, data []byte) (T, error) {
	result := s.newFn()
	err := proto.Unmarshal(data, result)
	return result, err
}

type protobufSummariser struct {
	d Deserialiser[*structpb.Struct]
}

// ProtobufSummariser reads payloads encoded as google.protobuf.Struct and
// extracts the "message" field.
func ProtobufSummariser() Summariser {
	return protobufSummariser{d: Protobuf(func() *structpb.Struct { return &structpb.Struct{} })}
}

func (s protobufSummariser) Summarise(payload []byte) string {
	st, err := s.d.Deserialise("", payload)
	if err != nil {
		return truncate(string(payload))
	}

	v, ok := st.GetFields()["message"]
	if !ok {
		return ""
	}
	return summariseField(v.AsInterface())
}
