// internal/workers/search/search-listings/config.go
package searchlistings

import "time"

type Config struct {
	ListingIndex string
	MaxResults   int
	CacheTTL     time.Duration
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		ListingIndex: "listings",
		MaxResults:   20,
		CacheTTL:     time.Minute,
		Timeout:      10 * time.Second,
	}
}
