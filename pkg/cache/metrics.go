package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cache operations.
var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heatmap_cache_hits_total",
		Help: "Cache hits by dataset kind",
	}, []string{"kind"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heatmap_cache_misses_total",
		Help: "Cache misses by dataset kind",
	}, []string{"kind"})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heatmap_cache_errors_total",
		Help: "Cache operation errors by operation",
	}, []string{"operation"})

	cacheBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heatmap_cache_bytes_written_total",
		Help: "Total compressed bytes written to cache files",
	})
)
