package profile

// DeepMerge combines a base document with an override document. On a shared
// key the override wins; nested objects merge recursively; arrays are not
// merged element-wise, the override array fully replaces the base array. An
// explicit null in the override keeps the base value. Neither input is
// mutated.
func DeepMerge(base, override Doc) Doc {
	merged := mergeValue(map[string]any(base), map[string]any(override))
	if m, ok := merged.(map[string]any); ok {
		return Doc(m)
	}
	return Doc{}
}

// MergeCardSets merges each of the four cards pairwise.
func MergeCardSets(base, override CardSet) CardSet {
	return CardSet{
		Voice:       DeepMerge(base.Voice, override.Voice),
		Audience:    DeepMerge(base.Audience, override.Audience),
		Offer:       DeepMerge(base.Offer, override.Offer),
		Constraints: DeepMerge(base.Constraints, override.Constraints),
	}
}

func mergeValue(base, override any) any {
	if override == nil {
		return base
	}

	baseMap, baseIsMap := asMap(base)
	overrideMap, overrideIsMap := asMap(override)
	if baseIsMap && overrideIsMap {
		result := make(map[string]any, len(baseMap)+len(overrideMap))
		for k, v := range baseMap {
			result[k] = v
		}
		for k, ov := range overrideMap {
			if bv, ok := baseMap[k]; ok {
				result[k] = mergeValue(bv, ov)
			} else {
				result[k] = ov
			}
		}
		return result
	}

	// Arrays and scalars: the override replaces the base wholesale.
	return override
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Doc:
		return map[string]any(m), true
	default:
		return nil, false
	}
}
