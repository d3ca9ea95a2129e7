package core

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// -----------------------------------------------------------------------------
// Boolean vocabularies
// -----------------------------------------------------------------------------

var trueWords = map[string]struct{}{
	"true": {}, "1": {}, "yes": {}, "y": {}, "on": {}, "enabled": {}, "active": {},
}

var falseWords = map[string]struct{}{
	"false": {}, "0": {}, "no": {}, "n": {}, "off": {}, "disabled": {}, "inactive": {},
}

// -----------------------------------------------------------------------------

// ToNumber converts a finite number or a numeric string into a float64.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		return parseNumber(string(n))
	case string:
		return parseNumber(n)
	}
	return 0, false
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// -----------------------------------------------------------------------------

// ToBoolean accepts booleans, the numbers 1/0 and the fixed true/false
// vocabularies (case-insensitive). Everything else is absent.
func ToBoolean(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		word := strings.ToLower(strings.TrimSpace(b))
		if _, ok := trueWords[word]; ok {
			return true, true
		}
		if _, ok := falseWords[word]; ok {
			return false, true
		}
		return false, false
	}
	if n, ok := ToNumber(v); ok {
		switch n {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	}
	return false, false
}

// -----------------------------------------------------------------------------

// ToDisplayString renders a value as display text. Empty strings and empty
// containers are absent.
func ToDisplayString(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		s = strings.TrimSpace(s)
		return s, s != ""
	case bool:
		return strconv.FormatBool(s), true
	case time.Time:
		if s.IsZero() {
			return "", false
		}
		return s.UTC().Format(time.RFC3339Nano), true
	case *time.Time:
		if s == nil {
			return "", false
		}
		return ToDisplayString(*s)
	case []any:
		if len(s) == 0 {
			return "", false
		}
		return marshalText(s)
	case map[string]any:
		if len(s) == 0 {
			return "", false
		}
		return marshalText(s)
	}
	if n, ok := ToNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return marshalText(v)
}

func marshalText(v any) (string, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	text := string(data)
	if text == "null" || text == `""` {
		return "", false
	}
	return text, true
}

// -----------------------------------------------------------------------------
// Multi-field fallback
// -----------------------------------------------------------------------------

// PickFirst returns the first candidate the coercer accepts.
func PickFirst[T any](coerce func(any) (T, bool), candidates ...any) (T, bool) {
	for _, c := range candidates {
		if v, ok := coerce(c); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func PickNumber(candidates ...any) (float64, bool) {
	return PickFirst(ToNumber, candidates...)
}

func PickBoolean(candidates ...any) (bool, bool) {
	return PickFirst(ToBoolean, candidates...)
}

func PickString(candidates ...any) (string, bool) {
	return PickFirst(ToDisplayString, candidates...)
}

// Fields collects the values stored under each key of every record, record
// by record, in key order. Nil records are skipped.
func Fields(records []map[string]any, keys ...string) []any {
	out := make([]any, 0, len(records)*len(keys))
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, k := range keys {
			if v, ok := r[k]; ok {
				out = append(out, v)
			}
		}
	}
	return out
}

// Field is Fields for a single record.
func Field(record map[string]any, keys ...string) []any {
	return Fields([]map[string]any{record}, keys...)
}

// -----------------------------------------------------------------------------
// Shape helpers
// -----------------------------------------------------------------------------

// AsMap returns v as a record when it is one.
func AsMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok && m != nil
}

// AsSlice returns v as a list when it is one.
func AsSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// SortedKeys returns the record keys in lexical order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeName strips every non-alphanumeric rune and lower-cases the rest,
// so "batch_aggregation", "batchAggregation" and "Batch-Aggregation" compare equal.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NameSet builds a lookup of normalized names.
func NameSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[NormalizeName(n)] = struct{}{}
	}
	return set
}
