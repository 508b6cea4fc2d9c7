// Package match implements the preference matching and scoring engine.
// Everything in this package is pure computation: no I/O, no shared state.
package match

// FeatureType declares how a catalog feature is compared.
type FeatureType string

const (
	FeatureNumber  FeatureType = "number"
	FeatureBoolean FeatureType = "boolean"
	FeatureSelect  FeatureType = "select"
)

// FeatureDefinition is one entry of the feature catalog: a matchable
// property attribute with its declared type and bounds.
type FeatureDefinition struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Type     FeatureType `json:"type"`
	Options  []string    `json:"options,omitempty"`
	MinValue *float64    `json:"minValue,omitempty"`
	MaxValue *float64    `json:"maxValue,omitempty"`
}

// amenityKeywords maps each canonical boolean feature id to the listing-text
// keywords that mark it present. Listings come from Swedish portals, so both
// Swedish and English terms are needed.
var amenityKeywords = map[string][]string{
	"balcony":    {"balkong", "balcony"},
	"elevator":   {"hiss", "elevator", "lift"},
	"parking":    {"parkering", "parking", "p-plats"},
	"garage":     {"garage"},
	"garden":     {"trädgård", "tradgard", "garden", "uteplats"},
	"renovated":  {"renoverad", "nyrenoverad", "renovated"},
	"fireplace":  {"öppen spis", "eldstad", "kakelugn", "fireplace"},
	"bathtub":    {"badkar", "bathtub"},
	"dishwasher": {"diskmaskin", "dishwasher"},
	"laundry":    {"tvättmaskin", "tvattstuga", "tvättstuga", "laundry", "washer"},
}

// AmenityIDs returns the canonical boolean feature ids in stable order.
func AmenityIDs() []string {
	return []string{
		"balcony", "elevator", "parking", "garage", "garden",
		"renovated", "fireplace", "bathtub", "dishwasher", "laundry",
	}
}

// DefaultCatalog returns the built-in feature catalog. Deployments can
// override it with a JSON registry file (see pkg/catalog).
func DefaultCatalog() []FeatureDefinition {
	f := func(v float64) *float64 { return &v }

	defs := []FeatureDefinition{
		{ID: "price", Label: "Price", Type: FeatureNumber, MinValue: f(0), MaxValue: f(50000000)},
		{ID: "rooms", Label: "Rooms", Type: FeatureNumber, MinValue: f(1), MaxValue: f(20)},
		{ID: "size", Label: "Living area (m²)", Type: FeatureNumber, MinValue: f(10), MaxValue: f(1000)},
		{ID: "location", Label: "Location", Type: FeatureSelect, Options: []string{
			"Stockholm", "Göteborg", "Malmö", "Uppsala", "Lund", "Other",
		}},
		{ID: "balcony", Label: "Balcony", Type: FeatureBoolean},
		{ID: "elevator", Label: "Elevator", Type: FeatureBoolean},
		{ID: "parking", Label: "Parking", Type: FeatureBoolean},
		{ID: "garage", Label: "Garage", Type: FeatureBoolean},
		{ID: "garden", Label: "Garden / patio", Type: FeatureBoolean},
		{ID: "renovated", Label: "Recently renovated", Type: FeatureBoolean},
		{ID: "fireplace", Label: "Fireplace", Type: FeatureBoolean},
		{ID: "bathtub", Label: "Bathtub", Type: FeatureBoolean},
		{ID: "dishwasher", Label: "Dishwasher", Type: FeatureBoolean},
		{ID: "laundry", Label: "In-unit laundry", Type: FeatureBoolean},
	}
	return defs
}

// FindFeature looks up a catalog entry by id. Second return is false when the
// id is unknown; callers fall back to the raw id as the display label.
func FindFeature(catalog []FeatureDefinition, id string) (FeatureDefinition, bool) {
	for _, def := range catalog {
		if def.ID == id {
			return def, true
		}
	}
	return FeatureDefinition{}, false
}
