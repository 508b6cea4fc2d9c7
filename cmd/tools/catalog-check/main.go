// cmd/tools/catalog-check/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"homescout-workers/internal/match"
	"homescout-workers/pkg/catalog"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)

	validatePath := validateCmd.String("path", "configs/feature-catalog.json", "Path to catalog file")
	listPath := listCmd.String("path", "configs/feature-catalog.json", "Path to catalog file")

	addPath := addCmd.String("path", "configs/feature-catalog.json", "Path to catalog file")
	id := addCmd.String("id", "", "Feature ID (e.g., sauna)")
	label := addCmd.String("label", "", "Display label (e.g., Sauna)")
	featureType := addCmd.String("type", "boolean", "Feature type (number, boolean, select)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		cat, err := catalog.Load(*validatePath)
		if err != nil {
			fmt.Printf("Catalog invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Catalog %s is valid (%d features, version %s)\n", *validatePath, len(cat.Features), cat.Version)

	case "list":
		listCmd.Parse(os.Args[2:])
		cat, err := catalog.Load(*listPath)
		if err != nil {
			fmt.Printf("Error loading catalog: %v\n", err)
			os.Exit(1)
		}
		for _, def := range cat.Definitions() {
			fmt.Printf("%-12s %-22s %s\n", def.ID, def.Label, def.Type)
		}

	case "add":
		addCmd.Parse(os.Args[2:])
		if *id == "" || *label == "" {
			fmt.Println("Error: id and label are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		if err := addFeature(*addPath, match.FeatureDefinition{
			ID:    *id,
			Label: *label,
			Type:  match.FeatureType(*featureType),
		}); err != nil {
			fmt.Printf("Error adding feature: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added feature: %s\n", *id)

	default:
		help()
		os.Exit(1)
	}
}

func addFeature(path string, def match.FeatureDefinition) error {
	cat, err := catalog.Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		cat = &catalog.FeatureCatalog{Version: "1.0.0"}
	}

	cat.Features = append(cat.Features, def)
	cat.LastUpdated = time.Now().UTC().Format("2006-01-02")

	if err := catalog.Validate(cat); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func help() {
	fmt.Println("Usage: catalog-check <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  validate   Check a feature catalog file against the schema rules")
	fmt.Println("  list       Print the features a catalog file defines")
	fmt.Println("  add        Append a feature to a catalog file")
}
