// internal/workers/analysis/analyze-property/models.go
package analyzeproperty

import "homescout-workers/internal/match"

type Input struct {
	ListingID string `json:"listingId"`
	UserID    string `json:"userId"`

	// Inline overrides let upstream tasks pass data without a DB round trip.
	Listing      *ListingData        `json:"listing,omitempty"`
	Requirements []match.Requirement `json:"requirements,omitempty"`
}

type ListingData struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Location string   `json:"location"`
	Price    float64  `json:"price"`
	Rooms    string   `json:"rooms"`
	Size     string   `json:"size"`
	Features []string `json:"features"`
}

type Output struct {
	ListingID  string                        `json:"listingId"`
	Score      int                           `json:"score"`
	MaxScore   int                           `json:"maxScore"`
	Percentage int                           `json:"percentage"`
	Matches    map[string]match.FeatureMatch `json:"matches"`
}
