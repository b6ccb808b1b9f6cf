package persistence

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
)

// Data is a JSON-compatible blob stored per bot, chat or user.
type Data map[string]any

// Clone returns a deep copy of d so callers may mutate it freely.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case Data:
		return x.Clone()
	case map[string]any:
		return map[string]any(Data(x).Clone())
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether a and b hold the same content.
func (d Data) Equal(other Data) bool {
	return reflect.DeepEqual(d, other)
}

// encodeValue marshals v after coercing values that have a textual form but
// no JSON form (filesystem paths, URLs) into plain strings.
func encodeValue(v any) ([]byte, error) {
	data, err := json.Marshal(coerce(v))
	if err != nil {
		return nil, fmt.Errorf("persistence: encode: %w", err)
	}
	return data, nil
}

func coerce(v any) any {
	switch x := v.(type) {
	case nil, string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case json.Marshaler, encoding.TextMarshaler:
		return v
	case fmt.Stringer:
		return x.String()
	case Data:
		return coerceMap(x)
	case map[string]any:
		return coerceMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = coerce(e)
		}
		return out
	default:
		return v
	}
}

func coerceMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = coerce(v)
	}
	return out
}

func decodeData(raw []byte) (Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("persistence: decode: %w", err)
	}
	if d == nil {
		d = Data{}
	}
	return d, nil
}
