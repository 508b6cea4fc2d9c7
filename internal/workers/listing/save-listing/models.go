// internal/workers/listing/save-listing/models.go
package savelisting

import "homescout-workers/internal/models"

type Input struct {
	Listing     models.ExtractedListing `json:"listing"`
	ExtractedBy string                  `json:"extractedBy,omitempty"` // defaults to "scraper"
}

type Output struct {
	ListingID string `json:"listingId"`
	CreatedAt string `json:"createdAt"`
	Indexed   bool   `json:"indexed"`
}
