package querycache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CreateCacheKey builds a deterministic key for a table query. Parameter names
// are sorted and each value is JSON encoded, so logically identical queries
// map to the same key regardless of how params was populated:
//
//	CreateCacheKey("posts", map[string]any{"limit": 10, "author": "ana"})
//	// posts:author:"ana"|limit:10
func CreateCacheKey(table string, params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+":"+encodeParam(params[name]))
	}
	return table + ":" + strings.Join(parts, "|")
}

// encodeParam JSON encodes v without HTML escaping. Map keys are emitted in
// sorted order by encoding/json. Values JSON cannot represent fall back to
// their fmt representation.
func encodeParam(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
