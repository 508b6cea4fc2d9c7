package match

import (
	"encoding/json"
	"math"
	"strings"
)

// FeatureMatch explains one requirement's outcome inside a Result.
type FeatureMatch struct {
	Matched      bool   `json:"matched"`
	Importance   int    `json:"importance"`
	FeatureLabel string `json:"featureLabel"`
}

// Result is the outcome of scoring one property against one preference set.
// Score and MaxScore are sums of importance weights; Percentage is the
// rounded weighted fraction, 0..100, and 0 when nothing was scoreable.
type Result struct {
	Score      int                     `json:"score"`
	MaxScore   int                     `json:"maxScore"`
	Percentage int                     `json:"percentage"`
	Matches    map[string]FeatureMatch `json:"matches"`
}

// Score evaluates a property's normalized features against a set of weighted
// requirements. Requirements with importance 0 are fully inert: they count
// toward neither score nor maxScore and do not appear in Matches.
//
// The scorer never fails. Malformed or missing values on either side resolve
// to "not matched" so one corrupt preference cannot abort the rest.
func Score(features Features, requirements []Requirement, catalog []FeatureDefinition) Result {
	result := Result{
		Matches: make(map[string]FeatureMatch, len(requirements)),
	}

	for _, req := range requirements {
		if req.Importance <= 0 {
			continue
		}

		label := req.FeatureID
		if def, ok := FindFeature(catalog, req.FeatureID); ok {
			label = def.Label
		}

		result.MaxScore += req.Importance

		propertyValue := features[req.FeatureID]
		preferenceValue := ResolveValue(req.Value)

		matched := valuesMatch(propertyValue, preferenceValue)
		if matched {
			result.Score += req.Importance
		}

		result.Matches[req.FeatureID] = FeatureMatch{
			Matched:      matched,
			Importance:   req.Importance,
			FeatureLabel: label,
		}
	}

	if result.MaxScore > 0 {
		result.Percentage = int(math.Round(100 * float64(result.Score) / float64(result.MaxScore)))
	}

	return result
}

// valuesMatch applies the type-dispatched comparison in precedence order.
// A bare numeric preference falls through to strict equality; range
// preferences must arrive pre-shaped as {min,max} objects, the scorer does
// not infer ranges on its own.
func valuesMatch(propertyValue, preferenceValue interface{}) bool {
	if propertyValue == nil || preferenceValue == nil {
		return false
	}

	// Boolean preference: exact equality. A property lacking an amenity
	// (false) matches an explicit false preference; pinned by regression
	// test, see TestScore_BooleanFalsePreference.
	if want, ok := preferenceValue.(bool); ok {
		have, ok := propertyValue.(bool)
		return ok && have == want
	}

	// Range preference: {min,max}, either bound optional.
	if bounds, ok := preferenceValue.(map[string]interface{}); ok {
		value, ok := asFloat(propertyValue)
		if !ok {
			return false
		}
		if min, present := bounds["min"]; present {
			lo, ok := asFloat(min)
			if !ok || value < lo {
				return false
			}
		}
		if max, present := bounds["max"]; present {
			hi, ok := asFloat(max)
			if !ok || value > hi {
				return false
			}
		}
		return true
	}

	// String preference: loose containment so "Stockholm" matches
	// "Stockholms innerstad".
	if want, ok := preferenceValue.(string); ok {
		if have, ok := propertyValue.(string); ok {
			return strings.Contains(strings.ToLower(have), strings.ToLower(want))
		}
		return false
	}

	// Numbers from JSON arrive as float64, from Go callers sometimes as int.
	if want, ok := asFloat(preferenceValue); ok {
		have, ok := asFloat(propertyValue)
		return ok && have == want
	}

	return propertyValue == preferenceValue
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
