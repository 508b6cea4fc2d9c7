// internal/workers/analysis/compare-properties/config.go
package compareproperties

import "time"

type Config struct {
	CacheTTL    time.Duration
	Timeout     time.Duration
	MaxListings int
}

func LoadConfig() *Config {
	return &Config{
		CacheTTL:    10 * time.Minute,
		Timeout:     30 * time.Second,
		MaxListings: 10,
	}
}
