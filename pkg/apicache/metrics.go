package apicache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks hits by backend ("memory", "redis")
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"backend"},
	)

	// CacheMisses tracks misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"backend"},
	)

	// NotModifiedResponses tracks 304 responses served from cache
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apicache_not_modified_total",
			Help: "Total number of 304 Not Modified responses served from cache",
		},
	)

	// Bypasses tracks requests that skipped the cache
	Bypasses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apicache_bypass_total",
			Help: "Total number of requests that bypassed the cache",
		},
	)

	// CacheStores tracks entries written by backend
	CacheStores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_stores_total",
			Help: "Total number of responses stored",
		},
		[]string{"backend"},
	)

	// Evictions tracks removed keys by reason
	Evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_evictions_total",
			Help: "Total number of keys removed from the index",
		},
		[]string{"reason"}, // "expired", "key", "group", "all", "rollback"
	)

	// CacheErrors tracks backend operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_errors_total",
			Help: "Total number of cache backend errors",
		},
		[]string{"operation"}, // "get", "put", "delete", "clear"
	)

	// IndexedKeys tracks live keys across all engines
	IndexedKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "apicache_index_keys",
			Help: "Number of keys currently indexed",
		},
	)
)
