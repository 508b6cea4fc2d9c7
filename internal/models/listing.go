// internal/models/listing.go
package models

// ExtractedListing is the payload the extractor APIs return before persistence.
type ExtractedListing struct {
	SourceURL string   `json:"sourceUrl"`
	Title     string   `json:"title"`
	Location  string   `json:"location"`
	Price     float64  `json:"price"`
	Rooms     string   `json:"rooms"`
	Size      string   `json:"size"`
	Features  []string `json:"features,omitempty"`
}
