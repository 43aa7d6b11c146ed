//go:build unit

package serde_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hugolhafner/go-groupworker/serde"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestJSONSummariser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"message field", `{"message":"hi"}`, "hi"},
		{"numeric message", `{"message":42}`, "42"},
		{"missing message", `{"other":"x"}`, ""},
		{"null message", `{"message":null}`, ""},
		{"not json", `plain text`, "plain text"},
		{"json array", `[1,2]`, "[1,2]"},
	}

	s := serde.JSONSummariser()
	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				t.Parallel()
				require.Equal(t, tt.want, s.Summarise([]byte(tt.payload)))
			},
		)
	}
}

func TestProtobufSummariser(t *testing.T) {
	st, err := structpb.NewStruct(map[string]any{"message": "hi", "n": 1})
	require.NoError(t, err)
	data, err := proto.Marshal(st)
	require.NoError(t, err)

	require.Equal(t, "hi", serde.ProtobufSummariser().Summarise(data))

	empty, err := proto.Marshal(&structpb.Struct{})
	require.NoError(t, err)
	require.Equal(t, "", serde.ProtobufSummariser().Summarise(empty))
}

func TestRawSummariser_Truncates(t *testing.T) {
	long := strings.Repeat("a", serde.MaxSummaryLen+10)

	got := serde.RawSummariser().Summarise([]byte(long))
	require.Len(t, got, serde.MaxSummaryLen+3)
	require.True(t, strings.HasSuffix(got, "..."))
}

func TestRawSummariser_TruncatesOnRuneBoundary(t *testing.T) {
	payload := "ab" + strings.Repeat("消", 600)

	got := serde.RawSummariser().Summarise([]byte(payload))
	require.True(t, utf8.ValidString(got))
	require.True(t, strings.HasSuffix(got, "消..."))
	require.Len(t, got, 2+340*3+3)
}

func TestForFormat(t *testing.T) {
	for _, f := range []string{"", serde.FormatJSON, serde.FormatProtobuf, serde.FormatRaw} {
		s, err := serde.ForFormat(f)
		require.NoError(t, err, f)
		require.NotNil(t, s, f)
	}

	_, err := serde.ForFormat("avro")
	require.Error(t, err)
}

func TestJSONDeserialiser(t *testing.T) {
	type order struct {
		ID     string  `json:"id"`
		Amount float64 `json:"amount"`
	}

	got, err := serde.JSON[order]().Deserialise("orders", []byte(`{"id":"o1","amount":9.5}`))
	require.NoError(t, err)
	require.Equal(t, order{ID: "o1", Amount: 9.5}, got)

	_, err = serde.JSON[order]().Deserialise("orders", []byte(`{`))
	require.Error(t, err)
}

func TestProtobufDeserialiser(t *testing.T) {
	data, err := proto.Marshal(wrapperspb.String("hello"))
	require.NoError(t, err)

	d := serde.Protobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	got, err := d.Deserialise("t", data)
	require.NoError(t, err)
	require.Equal(t, "hello", got.GetValue())
}

func TestStringDeserialiser(t *testing.T) {
	got, err := serde.String().Deserialise("t", []byte("abc"))
	require.NoError(t, err)
	require.Equal(t, "abc", got)
}
