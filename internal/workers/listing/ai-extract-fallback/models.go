// internal/workers/listing/ai-extract-fallback/models.go
package aiextractfallback

import "homescout-workers/internal/models"

type Input struct {
	URL      string `json:"url"`
	PageText string `json:"pageText"`
}

type Output struct {
	Listing     *models.ExtractedListing `json:"listing"`
	ExtractedBy string                   `json:"extractedBy"`
	Confidence  float64                  `json:"confidence"`
}
