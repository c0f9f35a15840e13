package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperbot_files_processed_total",
		Help: "Files processed, by outcome",
	}, []string{"outcome"})

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperbot_cache_hits_total",
		Help: "Summaries served from the result cache",
	})

	collapsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperbot_inflight_collapsed_total",
		Help: "Deliveries that attached to already running work",
	})

	processDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paperbot_process_duration_seconds",
		Help:    "End-to-end duration of extract plus summarize",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)
