package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func testCatalog() []FeatureDefinition {
	return DefaultCatalog()
}

func boolReq(id string, want bool, importance int) Requirement {
	return Requirement{FeatureID: id, Value: want, Importance: importance}
}

func rangeReq(id string, bounds map[string]interface{}, importance int) Requirement {
	return Requirement{FeatureID: id, Value: bounds, Importance: importance}
}

// ==========================
// Concrete Scenarios
// ==========================

func TestScore_SingleAmenityFullMatch(t *testing.T) {
	features := Normalize(RawListing{Features: []string{"Balkong", "Diskmaskin"}})
	requirements := []Requirement{boolReq("balcony", true, 4)}

	result := Score(features, requirements, testCatalog())

	assert.Equal(t, 4, result.Score)
	assert.Equal(t, 4, result.MaxScore)
	assert.Equal(t, 100, result.Percentage)
	require.Contains(t, result.Matches, "balcony")
	assert.True(t, result.Matches["balcony"].Matched)
	assert.Equal(t, 4, result.Matches["balcony"].Importance)
	assert.Equal(t, "Balcony", result.Matches["balcony"].FeatureLabel)
}

func TestScore_NothingMatches(t *testing.T) {
	features := Normalize(RawListing{Rooms: "2", Features: []string{}})
	requirements := []Requirement{
		boolReq("balcony", true, 4),
		rangeReq("rooms", map[string]interface{}{"min": float64(3)}, 2),
	}

	result := Score(features, requirements, testCatalog())

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 6, result.MaxScore)
	assert.Equal(t, 0, result.Percentage)
	assert.False(t, result.Matches["balcony"].Matched)
	assert.False(t, result.Matches["rooms"].Matched)
}

func TestScore_RoomRangeWithParsedPrefix(t *testing.T) {
	features := Normalize(RawListing{Rooms: "3.5 rum"})
	requirements := []Requirement{
		rangeReq("rooms", map[string]interface{}{"min": float64(2), "max": float64(4)}, 3),
	}

	result := Score(features, requirements, testCatalog())

	assert.Equal(t, float64(3), features["rooms"], "prefix parse keeps the integer part")
	assert.Equal(t, 3, result.Score)
	assert.Equal(t, 3, result.MaxScore)
	assert.Equal(t, 100, result.Percentage)
}

func TestScore_EmptyRequirements(t *testing.T) {
	result := Score(Normalize(RawListing{}), nil, testCatalog())

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 0, result.MaxScore)
	assert.Equal(t, 0, result.Percentage)
	assert.Empty(t, result.Matches)
}

func TestScore_UnknownFeatureUsesIDAsLabel(t *testing.T) {
	requirements := []Requirement{boolReq("sauna", true, 1)}

	result := Score(Normalize(RawListing{}), requirements, testCatalog())

	require.Contains(t, result.Matches, "sauna")
	assert.Equal(t, "sauna", result.Matches["sauna"].FeatureLabel)
	assert.Equal(t, 1, result.MaxScore)
	assert.False(t, result.Matches["sauna"].Matched)
}

// ==========================
// Comparison Dispatch
// ==========================

func TestScore_TypeDispatch(t *testing.T) {
	tests := []struct {
		name          string
		propertyValue interface{}
		preference    interface{}
		matched       bool
	}{
		{
			name:          "bool true vs property false",
			propertyValue: false,
			preference:    true,
			matched:       false,
		},
		{
			name:          "bool true vs property true",
			propertyValue: true,
			preference:    true,
			matched:       true,
		},
		{
			name:          "range min only unbounded above",
			propertyValue: float64(10),
			preference:    map[string]interface{}{"min": float64(2)},
			matched:       true,
		},
		{
			name:          "range max only unbounded below",
			propertyValue: float64(1),
			preference:    map[string]interface{}{"max": float64(5)},
			matched:       true,
		},
		{
			name:          "range both bounds outside",
			propertyValue: float64(7),
			preference:    map[string]interface{}{"min": float64(2), "max": float64(5)},
			matched:       false,
		},
		{
			name:          "range against non-numeric property",
			propertyValue: "three",
			preference:    map[string]interface{}{"min": float64(1)},
			matched:       false,
		},
		{
			name:          "string substring case-insensitive",
			propertyValue: "Stockholms innerstad",
			preference:    "stockholm",
			matched:       true,
		},
		{
			name:          "string no containment",
			propertyValue: "Göteborg",
			preference:    "Stockholm",
			matched:       false,
		},
		{
			name:          "string preference vs non-string property",
			propertyValue: float64(3),
			preference:    "3",
			matched:       false,
		},
		{
			name:          "bare number strict equality",
			propertyValue: float64(3),
			preference:    float64(3),
			matched:       true,
		},
		{
			name:          "bare number mismatch",
			propertyValue: float64(3),
			preference:    float64(4),
			matched:       false,
		},
		{
			name:          "int preference against json float property",
			propertyValue: float64(3),
			preference:    3,
			matched:       true,
		},
		{
			name:          "nil property value",
			propertyValue: nil,
			preference:    true,
			matched:       false,
		},
		{
			name:          "nil preference value",
			propertyValue: true,
			preference:    nil,
			matched:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features := Features{"probe": tt.propertyValue}
			requirements := []Requirement{{FeatureID: "probe", Value: tt.preference, Importance: 1}}

			result := Score(features, requirements, nil)

			assert.Equal(t, tt.matched, result.Matches["probe"].Matched)
		})
	}
}

// Pins current product behavior: a preference explicitly set to false is
// satisfied by a property that lacks the amenity. Changing this to
// "don't care" semantics needs a product decision first.
func TestScore_BooleanFalsePreference(t *testing.T) {
	features := Normalize(RawListing{Features: []string{}})
	requirements := []Requirement{boolReq("balcony", false, 2)}

	result := Score(features, requirements, testCatalog())

	assert.True(t, result.Matches["balcony"].Matched)
	assert.Equal(t, 2, result.Score)
	assert.Equal(t, 100, result.Percentage)
}

// ==========================
// Store Envelope Resolution
// ==========================

func TestScore_WrappedPreferenceValues(t *testing.T) {
	tests := []struct {
		name     string
		raw      interface{}
		resolved interface{}
	}{
		{
			name:     "bare primitive untouched",
			raw:      true,
			resolved: true,
		},
		{
			name:     "single envelope unwrapped",
			raw:      map[string]interface{}{"value": true},
			resolved: true,
		},
		{
			name:     "double envelope unwraps one level only",
			raw:      map[string]interface{}{"value": map[string]interface{}{"value": true}},
			resolved: map[string]interface{}{"value": true},
		},
		{
			name:     "range object passes through",
			raw:      map[string]interface{}{"min": float64(2)},
			resolved: map[string]interface{}{"min": float64(2)},
		},
		{
			name:     "empty object resolves to nil",
			raw:      map[string]interface{}{},
			resolved: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.resolved, ResolveValue(tt.raw))
		})
	}
}

func TestScore_MissingWrappedValueDoesNotMatch(t *testing.T) {
	features := Features{"balcony": true}
	requirements := []Requirement{
		{FeatureID: "balcony", Value: map[string]interface{}{}, Importance: 3},
	}

	result := Score(features, requirements, testCatalog())

	assert.False(t, result.Matches["balcony"].Matched)
	assert.Equal(t, 3, result.MaxScore)
	assert.Equal(t, 0, result.Score)
}

// ==========================
// Invariants
// ==========================

func TestScore_ZeroImportanceFullyInert(t *testing.T) {
	features := Normalize(RawListing{Rooms: "3", Features: []string{"Balkong"}})
	base := []Requirement{boolReq("balcony", true, 4)}
	withInert := append([]Requirement{
		boolReq("garden", true, 0),
		{FeatureID: "rooms", Value: float64(3), Importance: 0},
	}, base...)

	baseResult := Score(features, base, testCatalog())
	inertResult := Score(features, withInert, testCatalog())

	assert.Equal(t, baseResult.Score, inertResult.Score)
	assert.Equal(t, baseResult.MaxScore, inertResult.MaxScore)
	assert.Equal(t, baseResult.Percentage, inertResult.Percentage)
	assert.NotContains(t, inertResult.Matches, "garden")
	assert.NotContains(t, inertResult.Matches, "rooms")
}

func TestScore_AllZeroImportance(t *testing.T) {
	requirements := []Requirement{
		boolReq("balcony", true, 0),
		boolReq("elevator", true, 0),
	}

	result := Score(Normalize(RawListing{}), requirements, testCatalog())

	assert.Equal(t, 0, result.MaxScore)
	assert.Equal(t, 0, result.Percentage)
	assert.Empty(t, result.Matches)
}

func TestScore_BoundsHold(t *testing.T) {
	features := Normalize(RawListing{
		Rooms:    "3",
		Size:     "82",
		Features: []string{"Balkong", "Hiss", "Garage"},
	})
	requirements := []Requirement{
		boolReq("balcony", true, 4),
		boolReq("elevator", true, 3),
		boolReq("garden", true, 2),
		rangeReq("size", map[string]interface{}{"min": float64(60)}, 3),
		rangeReq("rooms", map[string]interface{}{"min": float64(4)}, 1),
	}

	result := Score(features, requirements, testCatalog())

	assert.LessOrEqual(t, result.Score, result.MaxScore)
	assert.GreaterOrEqual(t, result.Percentage, 0)
	assert.LessOrEqual(t, result.Percentage, 100)
	assert.Len(t, result.Matches, len(requirements))

	// 4+3+3 of 13 → 77%
	assert.Equal(t, 10, result.Score)
	assert.Equal(t, 13, result.MaxScore)
	assert.Equal(t, 77, result.Percentage)
}

func TestScore_Idempotent(t *testing.T) {
	features := Normalize(RawListing{Rooms: "3", Features: []string{"Balkong"}})
	requirements := []Requirement{
		boolReq("balcony", true, 4),
		rangeReq("rooms", map[string]interface{}{"min": float64(2)}, 2),
	}

	first := Score(features, requirements, testCatalog())
	second := Score(features, requirements, testCatalog())

	assert.Equal(t, first, second)
}

func TestScore_MatchKeysAreExactlyWeightedRequirements(t *testing.T) {
	requirements := []Requirement{
		boolReq("balcony", true, 4),
		boolReq("elevator", false, 0),
		boolReq("sauna", true, 1),
	}

	result := Score(Normalize(RawListing{}), requirements, testCatalog())

	assert.Len(t, result.Matches, 2)
	assert.Contains(t, result.Matches, "balcony")
	assert.Contains(t, result.Matches, "sauna")
	assert.NotContains(t, result.Matches, "elevator")
}
