package serde

type stringSerde struct{}

func String() Deserialiser[string] {
	return stringSerde{}
}

func (s stringSerde) Deserialise(_ string, data []byte) (string, error) {
	return string(data), nil
}

type rawSummariser struct{}

// RawSummariser logs the payload as text.
func RawSummariser() Summariser {
	return rawSummariser{}
}

func (rawSummariser) Summarise(payload []byte) string {
	return truncate(string(payload))
}
