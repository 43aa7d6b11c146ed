package serde

import "encoding/json"

type jsonSerde[T any] struct{}

// JSON returns a Deserialiser that decodes JSON into T.
func JSON[T any]() Deserialiser[T] {
	return jsonSerde[T]{}
}

func (s jsonSerde[T]) Deserialise(_ string, data []byte) (T, error) {
	var result T
	err := json.Unmarshal(data, &result)
	return result, err
}

type jsonSummariser struct {
	d Deserialiser[map[string]any]
}

// JSONSummariser extracts the top level "message" field of a JSON object.
// Objects without one summarise as empty; anything that is not an object
// summarises as raw text.
func JSONSummariser() Summariser {
	return jsonSummariser{d: JSON[map[string]any]()}
}

func (s jsonSummariser) Summarise(payload []byte) string {
	obj, err := s.d.Deserialise("", payload)
	if err != nil || obj == nil {
		return truncate(string(payload))
	}
	return summariseField(obj["message"])
}
