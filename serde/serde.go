package serde

import (
	"fmt"
	"unicode/utf8"
)

// MaxSummaryLen bounds the payload text written to the record log.
const MaxSummaryLen = 1024

type Deserialiser[T any] interface {
	Deserialise(topic string, data []byte) (T, error)
}

// Summariser renders a payload for the record log. It never fails: payloads
// it cannot decode are summarised as raw text.
type Summariser interface {
	Summarise(payload []byte) string
}

const (
	FormatJSON     = "json"
	FormatProtobuf = "protobuf"
	FormatRaw      = "raw"
)

// ForFormat returns the summariser for a payload_format value. Empty means json.
func ForFormat(format string) (Summariser, error) {
	switch format {
	case FormatJSON, "":
		return JSONSummariser(), nil
	case FormatProtobuf:
		return ProtobufSummariser(), nil
	case FormatRaw:
		return RawSummariser(), nil
	default:
		return nil, fmt.Errorf("unknown payload format %q", format)
	}
}

func truncate(s string) string {
	if len(s) <= MaxSummaryLen {
		return s
	}
	cut := MaxSummaryLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// summariseField renders the "message" field of a decoded object.
func summariseField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return truncate(t)
	default:
		return truncate(fmt.Sprint(t))
	}
}
