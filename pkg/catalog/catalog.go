// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"homescout-workers/internal/match"
)

// Load reads and validates a feature catalog file.
func Load(path string) (*FeatureCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cat FeatureCatalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if err := Validate(&cat); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return &cat, nil
}

// Definitions returns the catalog entries in file order, or the built-in
// defaults when the file declared none.
func (c *FeatureCatalog) Definitions() []match.FeatureDefinition {
	if len(c.Features) == 0 {
		return match.DefaultCatalog()
	}
	return c.Features
}

// Validate checks the structural rules every catalog file must satisfy.
func Validate(cat *FeatureCatalog) error {
	seen := make(map[string]bool)

	for i, def := range cat.Features {
		if def.ID == "" {
			return fmt.Errorf("feature %d: id is required", i)
		}
		if seen[def.ID] {
			return fmt.Errorf("feature %q: duplicate id", def.ID)
		}
		seen[def.ID] = true

		if def.Label == "" {
			return fmt.Errorf("feature %q: label is required", def.ID)
		}

		switch def.Type {
		case match.FeatureNumber:
			if def.MinValue != nil && def.MaxValue != nil && *def.MinValue > *def.MaxValue {
				return fmt.Errorf("feature %q: minValue exceeds maxValue", def.ID)
			}
		case match.FeatureBoolean:
			if len(def.Options) > 0 {
				return fmt.Errorf("feature %q: boolean features take no options", def.ID)
			}
		case match.FeatureSelect:
			if len(def.Options) == 0 {
				return fmt.Errorf("feature %q: select features need at least one option", def.ID)
			}
		default:
			return fmt.Errorf("feature %q: unknown type %q", def.ID, def.Type)
		}
	}

	return nil
}
