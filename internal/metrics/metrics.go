package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "olympics_dashboard_build_info",
		Help: "Build information of the olympics dashboard",
	}, []string{"version", "commit"})

	RecordsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "olympics_dashboard_records_loaded", Help: "Number of event records held in memory.",
	})
	BuildDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "olympics_dashboard_build_duration_seconds", Help: "Time spent loading and aggregating the dataset at startup.",
	})

	Queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "olympics_dashboard_queries_total", Help: "Total view queries by outcome.",
	}, []string{"view", "outcome"})
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "olympics_dashboard_query_duration_seconds",
		Help:    "View query latency.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
	}, []string{"view"})
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "olympics_dashboard_cache_hits_total", Help: "Total view queries answered from the result cache.",
	})
)

// Query outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid_selection"
	OutcomeUnknownView = "unknown_view"
	OutcomeError       = "error"
)
