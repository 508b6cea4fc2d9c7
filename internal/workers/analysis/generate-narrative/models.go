// internal/workers/analysis/generate-narrative/models.go
package generatenarrative

import "homescout-workers/internal/match"

type Input struct {
	ListingID    string                        `json:"listingId"`
	ListingTitle string                        `json:"listingTitle"`
	Location     string                        `json:"location"`
	Percentage   int                           `json:"percentage"`
	Matches      map[string]match.FeatureMatch `json:"matches"`
	Language     string                        `json:"language,omitempty"` // "sv" or "en", defaults to "en"
}

type Output struct {
	Narrative  string  `json:"narrative"`
	Confidence float64 `json:"confidence"`
}
