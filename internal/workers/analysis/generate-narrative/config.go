// internal/workers/analysis/generate-narrative/config.go
package generatenarrative

import "time"

type Config struct {
	GenAIBaseURL string
	APIKey       string
	Model        string
	MaxTokens    int
	Temperature  float64
	MaxRetries   int
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxTokens:   400,
		Temperature: 0.4,
		MaxRetries:  2,
		Timeout:     60 * time.Second,
	}
}
