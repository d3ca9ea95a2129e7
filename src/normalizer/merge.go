package normalizer

import "runtime-observer/src/normalizer/core"

// maxMergeDepth bounds recursion over nested objects. Deeper values are
// shared rather than copied.
const maxMergeDepth = 32

// MergeRecords returns a new record with overlay merged onto base. Scalars
// are overwritten by overlay, arrays are concatenated and deduplicated by
// IdentityKey (earlier entries win), objects are merged recursively. Neither
// input is modified.
func MergeRecords(base, overlay map[string]any) map[string]any {
	return mergeDepth(base, overlay, 0)
}

func mergeDepth(base, overlay map[string]any, depth int) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = cloneValue(v, depth+1)
	}
	for _, k := range core.SortedKeys(overlay) {
		v := overlay[k]
		existing, exists := out[k]
		if v == nil {
			if !exists {
				out[k] = nil
			}
			continue
		}
		if exists && depth < maxMergeDepth {
			if a, ok := existing.([]any); ok {
				if b, ok := v.([]any); ok {
					out[k] = mergeArrays(a, b, depth+1)
					continue
				}
			}
			if a, ok := existing.(map[string]any); ok {
				if b, ok := v.(map[string]any); ok {
					out[k] = mergeDepth(a, b, depth+1)
					continue
				}
			}
		}
		out[k] = cloneValue(v, depth+1)
	}
	return out
}

func mergeArrays(a, b []any, depth int) []any {
	out := make([]any, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]any{a, b} {
		for _, el := range list {
			id := IdentityKey(el)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, cloneValue(el, depth))
		}
	}
	return out
}

func cloneValue(v any, depth int) any {
	if depth > maxMergeDepth {
		return v
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val, depth+1)
		}
		return out
	}
	return v
}
