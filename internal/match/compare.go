package match

import "sort"

// CompareAll scores each property's feature set against the same requirement
// set. Results keep input order: index i belongs to property i. Every
// percentage is self-contained; nothing is normalized across the set.
func CompareAll(featureSets []Features, requirements []Requirement, catalog []FeatureDefinition) []Result {
	results := make([]Result, len(featureSets))
	for i, features := range featureSets {
		results[i] = Score(features, requirements, catalog)
	}
	return results
}

// Rank returns property indices ordered by percentage descending. The sort is
// stable so ties keep input order, which keeps "best match" displays
// deterministic.
func Rank(results []Result) []int {
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return results[order[a]].Percentage > results[order[b]].Percentage
	})
	return order
}
