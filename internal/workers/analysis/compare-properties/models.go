// internal/workers/analysis/compare-properties/models.go
package compareproperties

import "homescout-workers/internal/match"

type Input struct {
	UserID     string   `json:"userId"`
	ListingIDs []string `json:"listingIds"`

	Listings     []ListingData       `json:"listings,omitempty"`
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

type ListingResult struct {
	ListingID  string                        `json:"listingId"`
	Score      int                           `json:"score"`
	MaxScore   int                           `json:"maxScore"`
	Percentage int                           `json:"percentage"`
	Matches    map[string]match.FeatureMatch `json:"matches"`
}

type Output struct {
	Results []ListingResult `json:"results"`
	Ranking []int           `json:"ranking"` // indexes into Results, best first
	BestID  string          `json:"bestListingId,omitempty"`
}
