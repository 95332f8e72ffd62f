// Package metrics provides the centralized Prometheus registry reference
// for the heatmap pipeline. All metrics are defined in their respective
// packages (client, cache, fetcher) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the pipeline.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - heatmap_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - heatmap_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - heatmap_errors_total{class} (Counter): Errors by class (auth, rate_limit, client, server, network, parse)
//
// Retry Metrics (pkg/client):
//   - heatmap_retries_total{error_class} (Counter): Retry attempts by error class
//   - heatmap_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - heatmap_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - heatmap_cache_hits_total{kind} (Counter): Cache hits by dataset kind
//   - heatmap_cache_misses_total{kind} (Counter): Cache misses by dataset kind
//   - heatmap_cache_errors_total{operation} (Counter): Cache operation errors
//   - heatmap_cache_bytes_written_total (Counter): Compressed bytes written to cache files
//
// Orchestration Metrics (pkg/fetcher):
//   - heatmap_places_processed_total{result} (Counter): Places by result (succeeded, failed, resolve_failed)
//   - heatmap_dataset_kinds_processed_total{kind, result} (Counter): Kinds by result (fetched, cache_hit, failed)
//   - heatmap_active_workers (Gauge): Workers currently processing a place
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(heatmap_cache_hits_total[5m])) /
//   (sum(rate(heatmap_cache_hits_total[5m])) + sum(rate(heatmap_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(heatmap_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(heatmap_request_duration_seconds_bucket[5m]))
