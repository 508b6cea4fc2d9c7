// internal/workers/listing/ai-extract-fallback/config.go
package aiextractfallback

import "time"

type Config struct {
	GenAIBaseURL string
	APIKey       string
	Model        string
	MaxRetries   int
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Model:      "gpt-4o-mini",
		MaxRetries: 2,
		Timeout:    60 * time.Second,
	}
}
