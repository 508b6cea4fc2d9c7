// internal/workers/preferences/save-preferences/config.go
package savepreferences

import "time"

type Config struct {
	MaxPreferences int
	Timeout        time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxPreferences: 50,
		Timeout:        10 * time.Second,
	}
}
