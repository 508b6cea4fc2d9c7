// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job throughput and latency come from the otel instruments registered in
// cmd/worker-manager; these cover the domain-level signals the workers
// observe directly.
var (
	MatchScorePercentage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_score_percentage",
			Help:    "Distribution of computed match percentages",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits per lookup kind",
		},
		[]string{"kind"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache misses per lookup kind",
		},
		[]string{"kind"},
	)
)
