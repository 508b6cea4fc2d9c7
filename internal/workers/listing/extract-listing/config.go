// internal/workers/listing/extract-listing/config.go
package extractlisting

import "time"

type Config struct {
	ExtractorBaseURL string
	APIKey           string
	MaxRetries       int
	Timeout          time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxRetries: 2,
		Timeout:    15 * time.Second,
	}
}
