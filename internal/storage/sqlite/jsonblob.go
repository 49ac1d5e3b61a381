package sqlite

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// encodeStrings serializes a []string as a JSON array for a TEXT column.
func encodeStrings(v []string) string {
	out := "[]"
	for _, item := range v {
		var setErr error
		out, setErr = sjson.Set(out, "-1", item)
		if setErr != nil {
			return "[]"
		}
	}
	return out
}

// decodeStrings reads a JSON array TEXT column back into a []string. Per
// spec.md §4.4's read contract, a malformed or missing blob becomes an
// empty slice rather than an error — gjson's zero-value semantics give us
// this for free.
func decodeStrings(raw string) []string {
	result := gjson.Parse(raw)
	if !result.IsArray() {
		return nil
	}
	var out []string
	for _, item := range result.Array() {
		out = append(out, item.String())
	}
	return out
}

// encodeJSON serializes an arbitrary map for a TEXT column, defaulting to
// "{}" on any encode failure so a bad value never blocks a write.
func encodeJSON(v map[string]any) string {
	if v == nil {
		return "{}"
	}
	out := "{}"
	for k, val := range v {
		var err error
		out, err = sjson.Set(out, k, val)
		if err != nil {
			return "{}"
		}
	}
	return out
}

// decodeJSON reads a JSON object TEXT column back into a map, returning an
// empty (non-nil) map on parse failure rather than propagating the error.
func decodeJSON(raw string) map[string]any {
	result := gjson.Parse(raw)
	if !result.IsObject() {
		return map[string]any{}
	}
	out := map[string]any{}
	result.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.Value()
		return true
	})
	return out
}
