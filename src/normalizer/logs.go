package normalizer

import (
	"fmt"
	"sort"
	"strings"

	"runtime-observer/src/models"
	"runtime-observer/src/normalizer/core"
)

// -----------------------------------------------------------------------------
// Log Record Gatherer
// -----------------------------------------------------------------------------

// gatherer collects log-like entries from any number of containers, drops
// duplicates (first seen wins) and sorts the result newest first.
type gatherer struct {
	resolver core.TimestampResolver
	seen     map[string]struct{}
	records  []models.MLogRecord
}

func newGatherer(resolver core.TimestampResolver) *gatherer {
	return &gatherer{resolver: resolver, seen: make(map[string]struct{})}
}

// gatherLogs is the entry point used by every log-producing call site.
func gatherLogs(resolver core.TimestampResolver, sources ...any) []models.MLogRecord {
	g := newGatherer(resolver)
	for _, src := range sources {
		g.addSource(src)
	}
	return g.sorted()
}

func (g *gatherer) addSource(src any) {
	switch t := src.(type) {
	case []any:
		for _, entry := range t {
			g.addEntry(entry, "")
		}
	case map[string]any:
		if looksLikeLog(t) {
			g.addEntry(t, "")
			return
		}
		for _, k := range core.SortedKeys(t) {
			switch v := t[k].(type) {
			case map[string]any:
				g.addEntry(v, k)
			case []any:
				for _, entry := range v {
					g.addEntry(entry, "")
				}
			}
		}
	}
}

func (g *gatherer) addEntry(entry any, hintKey string) {
	var raw map[string]any
	switch t := entry.(type) {
	case map[string]any:
		raw = t
		if hintKey != "" {
			if _, hasID := core.PickString(core.Field(t, idKeys...)...); !hasID {
				if _, hasKey := t["key"]; !hasKey {
					raw = withKey(t, hintKey)
				}
			}
		}
	case string:
		if strings.TrimSpace(t) == "" {
			return
		}
		raw = map[string]any{"message": t}
	default:
		return
	}

	identity := IdentityKey(raw)
	if _, dup := g.seen[identity]; dup {
		return
	}
	rec, ok := normalizeLogEntry(g.resolver, raw, len(g.records))
	if !ok {
		return
	}
	g.seen[identity] = struct{}{}
	g.records = append(g.records, rec)
}

func (g *gatherer) sorted() []models.MLogRecord {
	SortLogRecords(g.records)
	if g.records == nil {
		return []models.MLogRecord{}
	}
	return g.records
}

// withKey returns a shallow copy of m carrying the map key it was found under.
func withKey(m map[string]any, key string) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out["key"] = key
	return out
}

func looksLikeLog(m map[string]any) bool {
	for _, keys := range [][]string{messageKeys, levelKeys, timestampKeys} {
		for _, k := range keys {
			switch m[k].(type) {
			case nil, map[string]any, []any:
			default:
				return true
			}
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// normalizeLogEntry builds the canonical record. Entries with nothing to show
// are rejected.
func normalizeLogEntry(resolver core.TimestampResolver, raw map[string]any, seq int) (models.MLogRecord, bool) {
	level := "INFO"
	if l, ok := core.PickString(core.Field(raw, levelKeys...)...); ok {
		level = strings.ToUpper(l)
	}
	toneText, _ := core.PickString(core.Field(raw, toneKeys...)...)
	message, _ := core.PickString(core.Field(raw, messageKeys...)...)

	rec := models.MLogRecord{
		Level:    level,
		Tone:     string(core.ToneFromText(toneText, level)),
		Message:  message,
		Details:  flattenDetails(firstPresent(raw, detailKeys)),
		Raw:      raw,
		Sequence: seq,
	}
	for _, v := range core.Field(raw, timestampKeys...) {
		if t, ok := resolver.Resolve(v, true); ok {
			ms := t.UnixMilli()
			display := resolver.Format(t)
			rec.Instant = &ms
			rec.Timestamp = &display
			break
		}
	}

	id, hasID := core.PickString(core.Field(raw, idKeys...)...)
	if !hasID {
		id, hasID = core.PickString(raw["key"])
	}
	if !hasID && rec.Message == "" && rec.Instant == nil && len(rec.Details) == 0 {
		return models.MLogRecord{}, false
	}
	if !hasID {
		id = fmt.Sprintf("log-%d", seq)
	}
	rec.ID = id
	return rec, true
}

func firstPresent(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// flattenDetails accepts 2-tuples, lists of objects, a single object or a
// scalar and returns ordered key/value pairs.
func flattenDetails(v any) []models.MDetailPair {
	pairs := []models.MDetailPair{}
	switch t := v.(type) {
	case nil:
	case []any:
		for _, el := range t {
			switch e := el.(type) {
			case []any:
				if len(e) == 2 {
					key, okKey := core.ToDisplayString(e[0])
					val, okVal := core.ToDisplayString(e[1])
					if okKey && okVal {
						pairs = append(pairs, models.MDetailPair{Key: key, Value: val})
					}
				}
			case map[string]any:
				pairs = append(pairs, objectPairs(e)...)
			default:
				if val, ok := core.ToDisplayString(e); ok {
					pairs = append(pairs, models.MDetailPair{Key: "detail", Value: val})
				}
			}
		}
	case map[string]any:
		pairs = append(pairs, objectPairs(t)...)
	default:
		if val, ok := core.ToDisplayString(t); ok {
			pairs = append(pairs, models.MDetailPair{Key: "detail", Value: val})
		}
	}
	return pairs
}

func objectPairs(m map[string]any) []models.MDetailPair {
	var pairs []models.MDetailPair
	for _, k := range core.SortedKeys(m) {
		if val, ok := core.ToDisplayString(m[k]); ok {
			pairs = append(pairs, models.MDetailPair{Key: k, Value: val})
		}
	}
	return pairs
}

// -----------------------------------------------------------------------------
// Ordering and windows
// -----------------------------------------------------------------------------

// SortLogRecords orders newest first. Records without an instant go last and,
// like instant ties, fall back to reverse insertion order.
func SortLogRecords(records []models.MLogRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch {
		case a.Instant != nil && b.Instant != nil:
			if *a.Instant != *b.Instant {
				return *a.Instant > *b.Instant
			}
		case a.Instant != nil:
			return true
		case b.Instant != nil:
			return false
		}
		return a.Sequence > b.Sequence
	})
}

// TrimLogs keeps the first n records of an already sorted list.
func TrimLogs(records []models.MLogRecord, n int) []models.MLogRecord {
	if len(records) <= n {
		return records
	}
	out := make([]models.MLogRecord, n)
	copy(out, records[:n])
	return out
}

// combineLogs puts priority records ahead of the rest, removes duplicates,
// applies the cap and re-sorts what survived.
func combineLogs(limit int, lists ...[]models.MLogRecord) []models.MLogRecord {
	seen := make(map[string]struct{})
	out := []models.MLogRecord{}
	for _, list := range lists {
		for _, rec := range list {
			identity := IdentityKey(rec.Raw)
			if _, dup := seen[identity]; dup {
				continue
			}
			seen[identity] = struct{}{}
			out = append(out, rec)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Sequence = len(out) - i
	}
	SortLogRecords(out)
	return out
}
