// Package dedup coalesces concurrent identical requests (C6): the first
// caller for a given canonical request body runs the origin request, and
// any others arriving while it's in flight wait on the same result instead
// of issuing duplicate upstream calls.
package dedup

import (
	"encoding/json"
	"regexp"
	"sort"
)

// timestampPrefix matches a leading `[Www YYYY-MM-DD HH:MM TZ] ` tag, the
// kind some agent harnesses prepend to every message body, so that two
// otherwise-identical requests sent a minute apart still canonicalize to
// the same key.
var timestampPrefix = regexp.MustCompile(`^\[[A-Za-z]{3} \d{4}-\d{2}-\d{2} \d{2}:\d{2} [A-Za-z0-9+\-:]+\] `)

// Canonicalize parses body as JSON, strips timestamp prefixes from string
// values under any "content" key, sorts object keys recursively, and
// re-serializes. Falls back to the raw bytes when body isn't valid JSON.
func Canonicalize(body []byte) []byte {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return body
	}
	stripped := stripTimestamps(v, false)
	out, err := json.Marshal(sortKeys(stripped))
	if err != nil {
		return body
	}
	return out
}

// stripTimestamps walks v, removing the timestamp prefix from any string
// value reached through a "content" key (inContent tracks that context).
func stripTimestamps(v any, inContent bool) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = stripTimestamps(val, k == "content")
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = stripTimestamps(val, inContent)
		}
		return out
	case string:
		if inContent {
			return timestampPrefix.ReplaceAllString(t, "")
		}
		return t
	default:
		return t
	}
}

// sortedMap preserves deterministic key order through json.Marshal by
// emitting raw key/value pairs in sorted order.
type sortedMap struct {
	keys   []string
	values map[string]any
}

func (s sortedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range s.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(s.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// sortKeys recursively rewrites maps into a form that marshals with sorted
// keys, so structurally identical JSON always canonicalizes to identical
// bytes regardless of original key order.
func sortKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		values := make(map[string]any, len(t))
		for k, val := range t {
			keys = append(keys, k)
			values[k] = sortKeys(val)
		}
		sort.Strings(keys)
		return sortedMap{keys: keys, values: values}
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = sortKeys(val)
		}
		return out
	default:
		return t
	}
}
