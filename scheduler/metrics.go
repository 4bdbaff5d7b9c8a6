package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	archivalRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsledger_archival_runs_total",
		Help: "Archival runs that attempted a transfer, by outcome.",
	}, []string{"outcome"})

	archivedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsledger_archived_records_total",
		Help: "Records moved from the hot buffer into archive shards.",
	})

	archivalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newsledger_archival_duration_seconds",
		Help:    "Duration of archival runs that attempted a transfer.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)
