package core

import (
	"math"
	"strings"
	"time"
)

// Epoch heuristics: above msThreshold the value is already milliseconds,
// above secThreshold it is seconds. Anything past maxEpochMillis
// (9999-12-31T23:59:59.999Z) is not a timestamp.
const (
	msThreshold    = 1e12
	secThreshold   = 1e9
	maxEpochMillis = 253402300799999
)

// DefaultTimeLayout is used when no display layout is configured.
const DefaultTimeLayout = "2006-01-02 15:04:05"

// Layouts that carry their own zone (or are UTC by definition).
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC822Z,
	time.ANSIC,
	time.UnixDate,
}

// Layouts without a zone, parsed in the resolver's location when the caller
// opts into the local assumption.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"2006-01-02",
}

// -----------------------------------------------------------------------------

// TimestampResolver turns loosely encoded timestamps into instants and display
// strings for one preferred zone. The zero value displays in UTC.
type TimestampResolver struct {
	Location *time.Location
	Layout   string
}

// NewTimestampResolver resolves the zone name once. An unknown or empty zone
// falls back to UTC rather than failing.
func NewTimestampResolver(zone, layout string) TimestampResolver {
	loc := time.UTC
	if zone != "" {
		if l, err := time.LoadLocation(zone); err == nil {
			loc = l
		}
	}
	if layout == "" {
		layout = DefaultTimeLayout
	}
	return TimestampResolver{Location: loc, Layout: layout}
}

func (r TimestampResolver) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

func (r TimestampResolver) layout() string {
	if r.Layout == "" {
		return DefaultTimeLayout
	}
	return r.Layout
}

// -----------------------------------------------------------------------------

// Resolve returns the instant encoded by v. Numbers follow the epoch
// heuristic, strings are parsed as zoned timestamps first and, when
// assumeLocal is set, as zone-less timestamps in the resolver's location.
func (r TimestampResolver) Resolve(v any, assumeLocal bool) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		if n, ok := parseNumber(s); ok {
			return FromEpoch(n)
		}
		return r.ParseString(s, assumeLocal)
	case bool:
		return time.Time{}, false
	}
	if n, ok := ToNumber(v); ok {
		return FromEpoch(n)
	}
	return time.Time{}, false
}

// ParseString parses textual timestamps only; numeric strings are not treated
// as epochs here.
func (r TimestampResolver) ParseString(s string, assumeLocal bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if !assumeLocal {
		return time.Time{}, false
	}
	loc := r.location()
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FromEpoch applies the seconds/milliseconds heuristic.
func FromEpoch(n float64) (time.Time, bool) {
	switch {
	case n > maxEpochMillis:
		return time.Time{}, false
	case n > msThreshold:
		return time.UnixMilli(int64(math.Round(n))), true
	case n > secThreshold:
		return time.UnixMilli(int64(math.Round(n * 1000))), true
	}
	return time.Time{}, false
}

// -----------------------------------------------------------------------------

// Instant returns the sortable millisecond instant of v.
func (r TimestampResolver) Instant(v any, assumeLocal bool) (int64, bool) {
	t, ok := r.Resolve(v, assumeLocal)
	if !ok {
		return 0, false
	}
	return t.UnixMilli(), true
}

// Display formats v in the preferred zone. Unresolvable input is absent.
func (r TimestampResolver) Display(v any, assumeLocal bool) (string, bool) {
	t, ok := r.Resolve(v, assumeLocal)
	if !ok {
		return "", false
	}
	return r.Format(t), true
}

// Format renders an instant in the preferred zone.
func (r TimestampResolver) Format(t time.Time) string {
	return t.In(r.location()).Format(r.layout())
}
