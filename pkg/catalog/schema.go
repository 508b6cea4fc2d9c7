// pkg/catalog/schema.go
package catalog

import "homescout-workers/internal/match"

// FeatureCatalog is the JSON document deployments use to override the
// built-in feature catalog.
type FeatureCatalog struct {
	Version     string                    `json:"version"`
	LastUpdated string                    `json:"lastUpdated"`
	Features    []match.FeatureDefinition `json:"features"`
}
