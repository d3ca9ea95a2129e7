package normalizer

import (
	"sort"

	"runtime-observer/src/models"
	"runtime-observer/src/normalizer/core"
)

var metricCollections = []string{
	"metrics", "summary", "stats", "counts", "timings", "durations", "averages", "totals", "latest", "last", "values",
}

// Top-level keys that describe the phase rather than measure it.
var metricExcluded = core.NameSet(
	"status", "state", "phase_status", "reason", "status_reason", "cause", "status_cause", "cause_code",
	"status_cause_code", "code", "message", "msg", "tone", "level", "title", "label", "name", "display_name",
	"key", "id", "phase", "stage", "description", "timestamp", "metric_order", "metricOrder",
)

var metricOrderKeys = []string{"metric_order", "metricOrder"}

type metricCandidate struct {
	key   string
	label string
	value any
}

// ExtractPhaseMetrics flattens a merged phase record into labelled,
// formatted metrics. A key appears once; the first assignment wins.
func ExtractPhaseMetrics(record map[string]any, f *core.Formatter) []models.MPhaseMetric {
	metrics := []models.MPhaseMetric{}
	if record == nil {
		return metrics
	}

	seen := make(map[string]struct{})
	for _, c := range metricCandidates(record) {
		norm := core.NormalizeName(c.key)
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		value, ok := f.MetricValue(c.value)
		if !ok {
			continue
		}
		seen[norm] = struct{}{}
		label := c.label
		if label == "" {
			label = core.Humanize(c.key)
		}
		metrics = append(metrics, models.MPhaseMetric{Key: c.key, Label: label, Value: value})
	}

	orderMetrics(metrics, metricOrder(record), f)
	return metrics
}

func metricCandidates(record map[string]any) []metricCandidate {
	var out []metricCandidate
	collections := core.NameSet(metricCollections...)

	for _, coll := range metricCollections {
		switch t := record[coll].(type) {
		case map[string]any:
			for _, k := range core.SortedKeys(t) {
				out = append(out, labelledCandidate(k, t[k]))
			}
		case []any:
			for _, el := range t {
				entry, ok := el.(map[string]any)
				if !ok {
					continue
				}
				key, ok := core.PickString(entry["key"], entry["name"], entry["id"])
				if !ok {
					continue
				}
				out = append(out, labelledCandidate(key, entry))
			}
		}
	}

	for _, k := range core.SortedKeys(record) {
		norm := core.NormalizeName(k)
		if _, skip := metricExcluded[norm]; skip {
			continue
		}
		if _, coll := collections[norm]; coll {
			if _, scalar := scalarValue(record[k]); !scalar {
				continue
			}
		}
		if v, ok := scalarValue(record[k]); ok {
			out = append(out, metricCandidate{key: k, value: v})
		}
	}
	return out
}

// labelledCandidate unwraps {value, label} objects.
func labelledCandidate(key string, v any) metricCandidate {
	if m, ok := v.(map[string]any); ok {
		if inner, has := m["value"]; has {
			label, _ := core.PickString(m["label"], m["title"], m["display_name"])
			return metricCandidate{key: key, label: label, value: inner}
		}
	}
	return metricCandidate{key: key, value: v}
}

func scalarValue(v any) (any, bool) {
	switch v.(type) {
	case nil, map[string]any, []any:
		return nil, false
	}
	return v, true
}

func metricOrder(record map[string]any) []string {
	for _, k := range metricOrderKeys {
		list, ok := record[k].([]any)
		if !ok {
			continue
		}
		var order []string
		for _, el := range list {
			if s, ok := core.PickString(el); ok {
				order = append(order, core.NormalizeName(s))
			}
		}
		return order
	}
	return nil
}

// orderMetrics puts explicitly ordered keys first, then sorts the rest by
// label using the locale collation.
func orderMetrics(metrics []models.MPhaseMetric, order []string, f *core.Formatter) {
	rank := make(map[string]int, len(order))
	for i, k := range order {
		if _, dup := rank[k]; !dup {
			rank[k] = i
		}
	}
	sort.SliceStable(metrics, func(i, j int) bool {
		ri, iOrdered := rank[core.NormalizeName(metrics[i].Key)]
		rj, jOrdered := rank[core.NormalizeName(metrics[j].Key)]
		switch {
		case iOrdered && jOrdered:
			return ri < rj
		case iOrdered:
			return true
		case jOrdered:
			return false
		}
		if c := f.Compare(metrics[i].Label, metrics[j].Label); c != 0 {
			return c < 0
		}
		return metrics[i].Key < metrics[j].Key
	})
}
