package match

// Requirement is one user preference for one catalog feature. Value is the
// desired value in whatever shape the store persisted it: a bare primitive,
// a {"min":..,"max":..} range object, or a legacy {"value": X} envelope.
// Importance weights the feature 0..4; 0 excludes it from scoring entirely.
type Requirement struct {
	FeatureID  string      `json:"featureId"`
	Value      interface{} `json:"value"`
	Importance int         `json:"importance"`
}

// ResolveValue unwraps a persisted preference value from its storage
// envelope. Some historical rows were saved double-wrapped as {"value": X};
// exactly one level is removed, primitives and range objects pass through
// untouched. A missing inner value resolves to nil so the requirement simply
// fails to match instead of blowing up scoring.
func ResolveValue(raw interface{}) interface{} {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return raw
	}

	// Range objects keep their shape for the scorer.
	if _, hasMin := obj["min"]; hasMin {
		return raw
	}
	if _, hasMax := obj["max"]; hasMax {
		return raw
	}

	if inner, ok := obj["value"]; ok {
		return inner
	}
	return nil
}
