// internal/workers/search/search-listings/models.go
package searchlistings

type Input struct {
	Keywords string   `json:"keywords,omitempty"`
	Location string   `json:"location,omitempty"`
	PriceMin float64  `json:"priceMin,omitempty"`
	PriceMax float64  `json:"priceMax,omitempty"`
	RoomsMin int      `json:"roomsMin,omitempty"`
	Features []string `json:"features,omitempty"`
	SortBy   string   `json:"sortBy,omitempty"` // "price" or "newest"
	From     int      `json:"from,omitempty"`
	Size     int      `json:"size,omitempty"`
}

type ListingSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Location string   `json:"location"`
	Price    float64  `json:"price"`
	Rooms    string   `json:"rooms"`
	Size     string   `json:"size"`
	Features []string `json:"features,omitempty"`
}

type Output struct {
	Results   []ListingSummary `json:"results"`
	Total     int              `json:"total"`
	FromCache bool             `json:"fromCache"`
}
