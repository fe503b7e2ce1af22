// Package apicache caches HTTP responses in front of net/http handlers.
//
// An Engine holds the configuration, key index and expiration timers of one
// cache. Routes created from it wrap handlers: the first request for a key
// runs the handler and stores its response, later requests are answered
// from the store until the route's TTL elapses.
//
// # Basic Usage
//
//	cache := apicache.New(
//		apicache.WithDefaultDurationString("5 minutes"),
//		apicache.WithTrackPerformance(true),
//	)
//
//	mux := http.NewServeMux()
//	mux.Handle("GET /api/users", cache.Route("2 minutes").HandlerFunc(listUsers))
//
// # Keys
//
// A key is the request path, the raw query (unless WithStripQuery is set)
// and, with WithAppendKey, a caller-supplied discriminator:
//
//	/api/users?page=2$$appendKey=GET
//
// # Groups and Invalidation
//
// Handlers file their response under a group with SetGroup, or a route sets
// one with WithGroup. Clear evicts a group, a single key, or everything:
//
//	func getUser(w http.ResponseWriter, r *http.Request) {
//		apicache.SetGroup(r, r.PathValue("collection"))
//		...
//	}
//
//	cache.Clear(ctx, "users")      // a group
//	cache.Clear(ctx, "/api/users") // a key
//	cache.Clear(ctx, "")           // everything
//
// # Backends
//
// Entries live in a local store by default. WithRedis stores them in Redis
// instead; each engine still keeps its own index and timers, so engines in
// different processes do not see each other's keys.
//
// # Response Headers
//
//   - Cache-Control: max-age counts down to the entry's expiry on hits
//   - Apicache-Store, Apicache-Version: outside production only
//
// Requests carrying X-Apicache-Bypass or X-Apicache-Force-Fetch skip the
// cache entirely. A hit whose stored ETag matches If-None-Match is answered
// with 304 Not Modified.
//
// # Metrics
//
//   - apicache_hits_total{backend}
//   - apicache_misses_total{backend}
//   - apicache_not_modified_total
//   - apicache_bypass_total
//   - apicache_stores_total{backend}
//   - apicache_evictions_total{reason}
//   - apicache_errors_total{operation}
//   - apicache_index_keys
package apicache
