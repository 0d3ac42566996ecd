package config

// Merge deep-merges override onto base and returns a new map.
//
// Where both sides hold a nested map at the same key the maps are merged
// recursively; any other override value (lists included) replaces the base
// value wholesale. Neither input is mutated.
func Merge(base, override map[string]any) map[string]any {
	merged := deepCopyMap(base)
	for k, v := range override {
		if ov, ok := v.(map[string]any); ok {
			if bv, ok := merged[k].(map[string]any); ok {
				merged[k] = Merge(bv, ov)
				continue
			}
		}
		merged[k] = deepCopy(v)
	}
	return merged
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = deepCopy(elem)
		}
		return out
	default:
		return v
	}
}
