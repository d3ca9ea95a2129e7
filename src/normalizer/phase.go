package normalizer

import (
	"reflect"

	"runtime-observer/src/models"
	"runtime-observer/src/normalizer/core"
)

// -----------------------------------------------------------------------------
// Phase names
// -----------------------------------------------------------------------------

// PhaseVariants are the names each fixed phase is published under.
var PhaseVariants = map[string][]string{
	models.PhaseSubscription: {
		"subscription", "subscribe", "subscriptions", "data_subscription", "kline_subscription",
	},
	models.PhaseBatchAggregation: {
		"batch_aggregation", "aggregation", "batch", "kline_aggregation", "bar_aggregation", "aggregate",
	},
	models.PhaseSignalGeneration: {
		"signal_generation", "signal", "signals", "strategy_signal", "signal_eval",
	},
	models.PhaseOrderExecution: {
		"order_execution", "execution", "order", "orders", "trade_execution",
	},
}

var phaseTitles = map[string]string{
	models.PhaseSubscription:     "Data subscription",
	models.PhaseBatchAggregation: "Batch aggregation",
	models.PhaseSignalGeneration: "Signal generation",
	models.PhaseOrderExecution:   "Order execution",
}

// Keys followed when looking for containers that may hold phase records.
var nestingKeys = []string{
	"phases", "kline_phases", "klinePhases", "pipeline", "pipeline_phases", "pipelinePhases",
	"stages", "workflow", "workflows", "data_push", "dataPush", "summary", "runtime",
}

var phaseNameFields = []string{"key", "id", "name", "phase", "stage"}

const maxContainerDepth = 4

// -----------------------------------------------------------------------------
// Container collection
// -----------------------------------------------------------------------------

type visitKey struct {
	kind reflect.Kind
	ptr  uintptr
	size int
}

type containerWalk struct {
	visited    map[visitKey]struct{}
	containers []any
}

// collectContainers walks summary first, then the root, following only
// nestingKeys up to maxContainerDepth. A container reachable twice is
// collected once.
func collectContainers(snapshot any) []any {
	root, ok := core.AsMap(snapshot)
	if !ok {
		return nil
	}
	w := &containerWalk{visited: make(map[visitKey]struct{})}
	if summary, ok := root["summary"]; ok {
		w.walk(summary, 0)
	}
	w.walk(root, 0)
	return w.containers
}

func (w *containerWalk) firstVisit(v any) bool {
	rv := reflect.ValueOf(v)
	if rv.Len() == 0 {
		return false
	}
	key := visitKey{kind: rv.Kind(), ptr: rv.Pointer(), size: rv.Len()}
	if _, seen := w.visited[key]; seen {
		return false
	}
	w.visited[key] = struct{}{}
	return true
}

func (w *containerWalk) walk(node any, depth int) {
	if depth > maxContainerDepth {
		return
	}
	switch t := node.(type) {
	case map[string]any:
		if !w.firstVisit(t) {
			return
		}
		w.containers = append(w.containers, t)
		w.follow(t, depth)
	case []any:
		if !w.firstVisit(t) {
			return
		}
		w.containers = append(w.containers, t)
		for _, el := range t {
			entry, ok := el.(map[string]any)
			if !ok {
				continue
			}
			// Entries naming a phase are matched by the array scan; other
			// entries are bundles keyed by phase name.
			if _, named := core.PickString(core.Field(entry, phaseNameFields...)...); named {
				w.follow(entry, depth)
				continue
			}
			w.walk(entry, depth+1)
		}
	}
}

func (w *containerWalk) follow(m map[string]any, depth int) {
	for _, k := range nestingKeys {
		if child, ok := m[k]; ok {
			w.walk(child, depth+1)
		}
	}
}

// -----------------------------------------------------------------------------
// Matching
// -----------------------------------------------------------------------------

// FindPhase resolves one logical phase from every container that reports it
// and merges the matches in container order.
func FindPhase(snapshot any, variants []string) (map[string]any, bool) {
	names := core.NameSet(variants...)
	var matches []map[string]any
	seen := make(map[visitKey]struct{})
	add := func(m map[string]any) {
		rv := reflect.ValueOf(m)
		key := visitKey{kind: rv.Kind(), ptr: rv.Pointer()}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		matches = append(matches, m)
	}

	for _, container := range collectContainers(snapshot) {
		switch t := container.(type) {
		case []any:
			for _, m := range scanArray(t, names) {
				add(m)
			}
		case map[string]any:
			for _, k := range core.SortedKeys(t) {
				if _, ok := names[core.NormalizeName(k)]; !ok {
					continue
				}
				switch v := t[k].(type) {
				case map[string]any:
					add(v)
				case []any:
					for _, m := range scanArray(v, names) {
						add(m)
					}
				}
			}
		}
	}

	if len(matches) == 0 {
		return nil, false
	}
	merged := map[string]any{}
	for _, m := range matches {
		merged = MergeRecords(merged, m)
	}
	return merged, true
}

func scanArray(arr []any, names map[string]struct{}) []map[string]any {
	var out []map[string]any
	for _, el := range arr {
		entry, ok := el.(map[string]any)
		if !ok {
			continue
		}
		for _, field := range phaseNameFields {
			s, ok := core.PickString(entry[field])
			if !ok {
				continue
			}
			if _, match := names[core.NormalizeName(s)]; match {
				out = append(out, entry)
				break
			}
		}
	}
	return out
}
