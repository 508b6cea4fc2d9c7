// internal/workers/listing/extract-listing/models.go
package extractlisting

import "homescout-workers/internal/models"

type Input struct {
	URL string `json:"url"`
}

// Output either carries the structured listing or flags the failure so the
// process can route to the AI extraction fallback with the raw page text.
type Output struct {
	Listing          *models.ExtractedListing `json:"listing,omitempty"`
	ExtractionFailed bool                     `json:"extractionFailed"`
	PageText         string                   `json:"pageText,omitempty"`
	FailureReason    string                   `json:"failureReason,omitempty"`
}
