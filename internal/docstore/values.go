package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

func fmtField(name string) error {
	return fmt.Errorf("%w: %q", ErrInvalidField, name)
}

// Normalize converts v to the value set documents hold.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, string, int64, float64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x.UnixMilli()
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	default:
		return x
	}
}

// NormalizeMap normalizes every value of m into a new map.
func NormalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}

// Matches reports whether data satisfies every filter.
func Matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := data[f.Field]
		if !ok || v == nil {
			return false
		}
		c, comparable := compare(v, f.Value)
		if !comparable {
			return false
		}
		switch f.Op {
		case OpEq:
			if c != 0 {
				return false
			}
		case OpGt:
			if c <= 0 {
				return false
			}
		case OpGte:
			if c < 0 {
				return false
			}
		case OpLt:
			if c >= 0 {
				return false
			}
		case OpLte:
			if c > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if x == y {
			return 0, true
		}
		if !x {
			return -1, true
		}
		return 1, true
	}
	xf, ok1 := toFloat(a)
	yf, ok2 := toFloat(b)
	if !ok1 || !ok2 {
		return 0, false
	}
	switch {
	case xf < yf:
		return -1, true
	case xf > yf:
		return 1, true
	}
	return 0, true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// SortByID orders documents by id for deterministic results.
func SortByID(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}

// Document field accessors. Missing or mistyped fields read as zero values.

func String(data map[string]any, field string) string {
	s, _ := data[field].(string)
	return s
}

func Bool(data map[string]any, field string) bool {
	switch x := data[field].(type) {
	case bool:
		return x
	case int64:
		return x != 0
	}
	return false
}

func Int64(data map[string]any, field string) int64 {
	switch x := data[field].(type) {
	case int64:
		return x
	case float64:
		return int64(x)
	case int:
		return int64(x)
	case json.Number:
		i, _ := x.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(x, 10, 64)
		return i
	}
	return 0
}

// Time reads a Unix-millisecond timestamp in loc. Missing fields read as the
// zero time.
func Time(data map[string]any, field string, loc *time.Location) time.Time {
	if _, ok := data[field]; !ok || data[field] == nil {
		return time.Time{}
	}
	return time.UnixMilli(Int64(data, field)).In(loc)
}

func Strings(data map[string]any, field string) []string {
	raw, ok := data[field].([]any)
	if !ok {
		if ss, ok := data[field].([]string); ok {
			return append([]string(nil), ss...)
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func Maps(data map[string]any, field string) []map[string]any {
	raw, ok := data[field].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Clone deep copies a document map.
func Clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return Clone(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

// ApplyPatch merges a normalized patch into data in place.
func ApplyPatch(data, patch map[string]any) {
	for k, v := range patch {
		if IsDeleteField(v) {
			delete(data, k)
			continue
		}
		data[k] = cloneValue(Normalize(v))
	}
}

// ValidPatch checks every patch key is a usable field name.
func ValidPatch(patch map[string]any) error {
	for k := range patch {
		if err := ValidField(k); err != nil {
			return err
		}
	}
	return nil
}
