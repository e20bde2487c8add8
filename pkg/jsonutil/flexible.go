// Package jsonutil smooths over loosely typed values in model-produced JSON.
package jsonutil

import (
	"encoding/json"
	"strconv"
)

// FlexibleString converts a decoded JSON value to a string, handling cases where
// models return numbers or booleans instead of strings. Returns "" for nil.
func FlexibleString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		// Objects and arrays keep their JSON form.
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// FlexibleStringValue is FlexibleString for an undecoded value.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return FlexibleString(v)
}

// Remarshal converts a decoded map into a typed value by round-tripping through JSON.
func Remarshal(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
