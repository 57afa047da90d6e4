package pubstatic

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Metadata is the frontmatter and data cascade of a content item.
type Metadata map[string]any

// Clone returns a deep copy of m. Nested maps and slices are copied so the
// clone can be changed without touching the original.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Metadata(t).Clone())
	case Metadata:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// String returns the value at key formatted as a string, or "" when absent.
func (m Metadata) String(key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return ""
	}
}

// Bool reports whether the value at key is truthy. Absent keys, false,
// zero numbers and strings that do not parse as true are all false.
func (m Metadata) Bool(key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}

// Strings returns the value at key as a string slice. A single string is
// returned as a one-element slice.
func (m Metadata) Strings(key string) []string {
	switch v := m[key].(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Map returns the nested map at key, or nil.
func (m Metadata) Map(key string) Metadata {
	switch v := m[key].(type) {
	case map[string]any:
		return Metadata(v)
	case Metadata:
		return v
	default:
		return nil
	}
}

// Int returns the numeric value at key, or fallback.
func (m Metadata) Int(key string, fallback int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// Keys returns the keys of m in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// merge overlays src onto dst. Keys in dst win, except "tags" which are
// concatenated and deduplicated.
func merge(dst, src Metadata) Metadata {
	out := src.Clone()
	for k, v := range dst {
		if k == "tags" {
			continue
		}
		out[k] = cloneValue(v)
	}
	if _, ok := src["tags"]; ok || dst["tags"] != nil {
		tags := append(src.Strings("tags"), dst.Strings("tags")...)
		out["tags"] = dedupe(tags)
	}
	return out
}

func dedupe(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
