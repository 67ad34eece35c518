package content

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// DecodeJSON parses raw into a generic value. Malformed input is reported as
// "no data" rather than an error so callers can fall through to another source.
func DecodeJSON(raw []byte) (any, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	if payload == nil {
		return nil, false
	}
	return payload, true
}

// Lookup walks a dotted path through nested objects.
func Lookup(v any, path string) (any, bool) {
	if path == "" {
		return v, v != nil
	}
	cur := v
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// scalar renders strings and numbers as trimmed text. Objects, arrays, bools
// and nulls are not scalars.
func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	}
	return "", false
}

// firstScalar returns the first key of m holding a scalar value.
func firstScalar(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := scalar(m[k]); ok {
			return s, true
		}
	}
	return "", false
}

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// objects keeps the object elements of an array.
func objects(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
