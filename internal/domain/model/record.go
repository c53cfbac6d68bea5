// Package model contains the records passed between pipeline stages.
//
// Raw records are open maps exactly as the upstream sent them. Everything
// after the normalizer and the source decoders works on the typed structs.
package model

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// IDField is the business key shared by every source and sink.
const IDField = "id"

// RawRecord is one object from an upstream payload. Numbers are kept as
// json.Number so large ids survive a round trip.
type RawRecord map[string]any

// ID returns the record's business key when present and integral.
func (r RawRecord) ID() (int64, bool) {
	return AsInt64(r[IDField])
}

// Flatten expands nested objects into dotted-path keys ("team.id"). Arrays
// and scalars are kept as leaf values; a nil nested object stays a nil leaf
// under its own key.
func (r RawRecord) Flatten() map[string]any {
	out := make(map[string]any, len(r))
	flattenInto(out, "", r)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch nested := v.(type) {
		case map[string]any:
			if len(nested) == 0 {
				out[key] = nested
				continue
			}
			flattenInto(out, key, nested)
		case RawRecord:
			flattenInto(out, key, nested)
		default:
			out[key] = v
		}
	}
}

// Unflatten rebuilds nested objects from dotted-path keys. A key that is
// both a leaf and a prefix keeps the nested form.
func Unflatten(flat map[string]any) map[string]any {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	// shorter paths first so nested writes win over nil leaves
	sort.Slice(keys, func(i, j int) bool {
		return strings.Count(keys[i], ".") < strings.Count(keys[j], ".")
	})

	out := make(map[string]any, len(flat))
	for _, k := range keys {
		parts := strings.Split(k, ".")
		cur := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[p] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = flat[k]
	}
	return out
}

// AsInt64 coerces decoded JSON numbers (and numeric strings) to int64.
// Non-integral floats, NaN and non-numeric values report false.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return floatToInt(n)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// AsString renders scalar values as text; nil becomes "".
func AsString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
