// internal/workers/preferences/save-preferences/models.go
package savepreferences

import "homescout-workers/internal/match"

type Input struct {
	UserID      string              `json:"userId"`
	Preferences []match.Requirement `json:"preferences"`
}

type Output struct {
	UserID     string `json:"userId"`
	SavedCount int    `json:"savedCount"`
	UpdatedAt  string `json:"updatedAt"`
}
