package apicache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/pengqiangsheng/apicache/pkg/performance"
	"github.com/pengqiangsheng/apicache/pkg/store"
)

// Version is reported in the apicache-version diagnostic header.
const Version = "1.2.0"

// Eviction reasons, used as log fields and metric labels.
const (
	reasonExpired  = "expired"
	reasonKey      = "key"
	reasonGroup    = "group"
	reasonAll      = "all"
	reasonRollback = "rollback"
)

// Engine owns one cache: its options, backend, key index, expiration
// timers and the routes it produced. Engines are independent of each
// other and safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	opts   Options
	index  Index
	timers map[string]*expiration
	routes []*Route

	// owned is set while the backend is a local store created by New, the
	// only case where everything in it belongs to this engine.
	owned bool
}

// New creates an engine. Without WithBackend or WithRedis it stores
// entries in a fresh local store.
func New(opts ...Option) *Engine {
	o := DefaultOptions().apply(opts)
	owned := o.Backend == nil
	if owned {
		o.Backend = store.NewMemory()
	}
	return &Engine{
		opts:   o,
		index:  newIndex(),
		timers: make(map[string]*expiration),
		owned:  owned,
	}
}

// Clone creates an independent engine seeded with e's current options.
func (e *Engine) Clone() *Engine {
	return New(WithSnapshot(e.Options()))
}

// Configure merges opts into the engine options. Every route sees the
// change on its next request, with its own overrides still on top.
func (e *Engine) Configure(opts ...Option) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()

	backend := e.opts.Backend
	e.opts = e.opts.apply(opts)
	if e.opts.Backend == nil {
		e.opts.Backend = backend
	}
	if e.opts.Backend != backend {
		e.owned = false
	}
	return e
}

// Options returns a copy of the engine options.
func (e *Engine) Options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.Clone()
}

// Duration parses a route duration against the engine's default.
func (e *Engine) Duration(s string) time.Duration {
	return ParseDuration(s, e.Options().DefaultDuration)
}

// Index returns a snapshot of the key index.
func (e *Engine) Index() Index {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.clone()
}

// Group returns the keys filed under name, or nil.
func (e *Engine) Group(name string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.index.Groups[name])
}

// PerformanceReport returns one report per route, in creation order.
// Routes without tracking report zero values.
func (e *Engine) PerformanceReport() []performance.Report {
	e.mu.Lock()
	routes := slices.Clone(e.routes)
	e.mu.Unlock()

	reports := make([]performance.Report, 0, len(routes))
	for _, rt := range routes {
		reports = append(reports, rt.perf.Report())
	}
	return reports
}

// Close stops every expiration timer. Stored entries are left in place.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disarmAll()
	return nil
}

// eviction is a set of keys already detached from the index, waiting for
// the backend delete.
type eviction struct {
	keys     []string
	reason   string
	all      bool
	backend  store.Backend
	snapshot Index
}

// Clear evicts target and returns the resulting index.
//
// If target names a group, every key in it is evicted and the group
// removed. Otherwise, if target is a key, that key is evicted and dropped
// from its group. An empty target evicts everything: a local store created
// by New is wiped, any other backend only loses the indexed keys. Clearing
// something absent changes nothing and makes no backend call.
func (e *Engine) Clear(ctx context.Context, target string) Index {
	e.mu.Lock()
	ev := e.detach(target)
	opts := e.opts
	e.mu.Unlock()

	e.purge(ctx, ev, opts)
	return ev.snapshot
}

// detach removes target from the index and the timer registry.
// Callers hold e.mu.
func (e *Engine) detach(target string) eviction {
	ev := eviction{backend: e.opts.Backend}

	if group, ok := e.index.Groups[target]; ok && target != "" {
		ev.reason = reasonGroup
		ev.keys = slices.Clone(group)
		for _, key := range ev.keys {
			e.disarm(key)
			e.index.remove(key)
		}
		delete(e.index.Groups, target)
	} else if target != "" {
		ev = e.detachKey(target)
	} else {
		ev.reason = reasonAll
		ev.keys = e.index.All
		ev.all = e.owned
		e.disarmAll()
		e.index = newIndex()
	}

	ev.snapshot = e.index.clone()
	return ev
}

// detachKey removes a single key, ignoring groups of the same name.
// Callers hold e.mu.
func (e *Engine) detachKey(key string) eviction {
	ev := eviction{backend: e.opts.Backend}
	if e.index.remove(key) {
		ev.reason = reasonKey
		ev.keys = []string{key}
	}
	e.disarm(key)
	ev.snapshot = e.index.clone()
	return ev
}

// purge deletes detached keys from the backend. Failures are logged and
// counted; the index is already consistent.
func (e *Engine) purge(ctx context.Context, ev eviction, opts Options) {
	if len(ev.keys) == 0 && !ev.all {
		return
	}

	IndexedKeys.Sub(float64(len(ev.keys)))
	Evictions.WithLabelValues(ev.reason).Add(float64(len(ev.keys)))

	log := opts.logger()
	var err error
	op := "delete"
	if ev.all {
		op = "clear"
		err = ev.backend.Clear(ctx)
	} else {
		err = ev.backend.Delete(ctx, ev.keys...)
	}
	if err != nil {
		CacheErrors.WithLabelValues(op).Inc()
		log.Warn().Err(err).
			Str("backend", string(ev.backend.Kind())).
			Str("reason", ev.reason).
			Int("keys", len(ev.keys)).
			Msg("Cache backend delete failed")
		return
	}

	log.Debug().
		Str("reason", ev.reason).
		Strs("keys", ev.keys).
		Msg("Cleared cache entries")
}

// expire evicts key when exp is still its live timer. Both the engine
// timer and the local store's own expiry land here; whichever comes second
// finds nothing to do.
func (e *Engine) expire(key string, exp *expiration) {
	e.mu.Lock()
	if e.timers[key] != exp {
		e.mu.Unlock()
		return
	}
	ev := e.detachKey(key)
	ev.reason = reasonExpired
	opts := e.opts
	e.mu.Unlock()

	e.purge(context.Background(), ev, opts)
	if opts.OnExpire != nil {
		opts.OnExpire(key)
	}
}

// save indexes key, arms its timer and writes the entry. The write runs on
// a context detached from the request so it completes even if the client
// goes away. A failed write is logged and rolled back out of the index; a
// write that lands after the key was cleared is deleted again.
func (e *Engine) save(ctx context.Context, key, group string, entry *store.Entry, ttl time.Duration, opts Options) {
	e.mu.Lock()
	if e.index.record(key, group) {
		IndexedKeys.Inc()
	}
	exp := e.arm(key, ttl)
	backend := e.opts.Backend
	e.mu.Unlock()

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.WriteTimeout)
	defer cancel()

	log := opts.logger()
	err := backend.Put(wctx, key, entry, ttl, func(k string) { e.expire(k, exp) })
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		log.Warn().Err(err).
			Str("key", key).
			Str("backend", string(backend.Kind())).
			Msg("Failed to cache response")
		e.forget(key, exp)
		return
	}

	if e.detached(key, exp) {
		// Cleared while the write was in flight.
		if err := backend.Delete(wctx, key); err != nil {
			CacheErrors.WithLabelValues("delete").Inc()
			log.Warn().Err(err).
				Str("key", key).
				Str("backend", string(backend.Kind())).
				Msg("Failed to drop response cleared during write")
		}
		return
	}

	CacheStores.WithLabelValues(string(backend.Kind())).Inc()
	log.Debug().
		Str("key", key).
		Str("group", group).
		Dur("ttl", ttl).
		Msg("Cached response")
}

// detached reports whether key was cleared or expired after exp armed it
// and nothing has indexed it since.
func (e *Engine) detached(key string, exp *expiration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timers[key] != exp && !e.index.has(key)
}

// forget drops key from the index without touching the backend, unless a
// newer write re-armed it.
func (e *Engine) forget(key string, exp *expiration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timers[key] != exp {
		return
	}
	e.disarm(key)
	if e.index.remove(key) {
		IndexedKeys.Dec()
		Evictions.WithLabelValues(reasonRollback).Inc()
	}
}

// Route creates a caching route with a duration such as "5 minutes". An
// empty or malformed duration follows the engine default at request time.
func (e *Engine) Route(duration string, opts ...Option) *Route {
	ttl, _ := parseDuration(duration)
	return e.newRoute(ttl, opts)
}

// RouteFor creates a caching route with a fixed TTL. A ttl <= 0 follows
// the engine default.
func (e *Engine) RouteFor(ttl time.Duration, opts ...Option) *Route {
	return e.newRoute(max(ttl, 0), opts)
}

func (e *Engine) newRoute(ttl time.Duration, local []Option) *Route {
	rt := &Route{
		engine: e,
		ttl:    ttl,
		local:  slices.Clone(local),
	}

	if rt.Options().TrackPerformance {
		rt.perf = performance.NewTracker()
	} else {
		rt.perf = performance.Noop{}
	}

	e.mu.Lock()
	e.routes = append(e.routes, rt)
	e.mu.Unlock()
	return rt
}
