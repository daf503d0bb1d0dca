package polymarket

import (
	"bytes"
	"encoding/json"
)

// decodeArray decodes a JSON array of T. A body that is not an array yields
// an empty slice, and elements that fail to decode are skipped.
func decodeArray[T any](body json.RawMessage) []T {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return []T{}
	}
	out := make([]T, 0, len(raw))
	for _, el := range raw {
		var v T
		if err := json.Unmarshal(el, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// textList decodes either a JSON array or a string holding a JSON-encoded
// array. Elements may be strings or numbers; both are kept as text.
type textList []string

func (l *textList) UnmarshalJSON(data []byte) error {
	*l = nil
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil
		}
		data = []byte(inner)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil
	}
	out := make([]string, 0, len(elems))
	for _, el := range elems {
		var s string
		if err := json.Unmarshal(el, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(bytes.TrimSpace(el)))
	}
	*l = out
	return nil
}

// looseString decodes a JSON string or number as text; anything else is empty.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*s = looseString(n.String())
		return nil
	}
	*s = ""
	return nil
}
