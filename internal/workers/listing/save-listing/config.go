// internal/workers/listing/save-listing/config.go
package savelisting

import "time"

type Config struct {
	ListingIndex string
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		ListingIndex: "listings",
		Timeout:      10 * time.Second,
	}
}
