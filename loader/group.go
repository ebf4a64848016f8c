package loader

// GroupBy groups records by key in one pass, preserving record order within
// a group. Every key is present in the result, with an empty slice when no
// record belongs to it. Records of other keys are dropped.
func GroupBy[K comparable, V any](keys []K, records []V, keyOf func(V) K) map[K][]V {
	out := make(map[K][]V, len(keys))
	for _, k := range keys {
		out[k] = []V{}
	}
	for _, rec := range records {
		k := keyOf(rec)
		if group, ok := out[k]; ok {
			out[k] = append(group, rec)
		}
	}
	return out
}
