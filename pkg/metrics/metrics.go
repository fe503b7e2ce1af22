// Package metrics exposes the Prometheus registry used by apicache.
// All metrics are defined in the package that records them (pkg/apicache)
// and registered through promauto on the default registerer.
//
// This package provides documentation and the HTTP handler that serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by apicache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns an http.Handler serving every registered metric in the
// Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/apicache):
//   - apicache_hits_total{backend} (Counter): Responses served from the cache
//   - apicache_misses_total{backend} (Counter): Lookups that went downstream
//   - apicache_not_modified_total (Counter): 304 responses served from a matching ETag
//   - apicache_bypass_total (Counter): Requests that skipped the cache
//   - apicache_stores_total{backend} (Counter): Responses written to a backend
//   - apicache_evictions_total{reason} (Counter): Keys removed from the index
//     (reason: expired, key, group, all, rollback)
//   - apicache_errors_total{operation} (Counter): Backend failures
//     (operation: get, put, delete, clear)
//   - apicache_index_keys (Gauge): Keys currently indexed across engines
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(apicache_hits_total[5m])) /
//   (sum(rate(apicache_hits_total[5m])) + sum(rate(apicache_misses_total[5m])))
//
//   # Backend Error Rate
//   sum by (operation) (rate(apicache_errors_total[5m]))
//
//   # Expiry Churn
//   rate(apicache_evictions_total{reason="expired"}[5m])
