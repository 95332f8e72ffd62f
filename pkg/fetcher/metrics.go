package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for orchestration and the worker pool.
var (
	placesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heatmap_places_processed_total",
		Help: "Places processed by result",
	}, []string{"result"})

	kindsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heatmap_dataset_kinds_processed_total",
		Help: "Dataset kinds processed by kind and result (fetched, cache_hit, failed)",
	}, []string{"kind", "result"})

	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "heatmap_active_workers",
		Help: "Workers currently processing a place",
	})
)
