package apicache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pengqiangsheng/apicache/pkg/performance"
	"github.com/pengqiangsheng/apicache/pkg/store"
)

// Request and response headers understood by the engine.
const (
	HeaderBypass       = "X-Apicache-Bypass"
	HeaderForceFetch   = "X-Apicache-Force-Fetch"
	HeaderStore        = "Apicache-Store"
	HeaderVersion      = "Apicache-Version"
	HeaderCacheControl = "Cache-Control"

	noStore = "no-cache, no-store, must-revalidate"
)

// Route is one caching handler produced by an Engine. Its effective
// options are the engine's current options with the route's own overrides
// applied, computed on every request.
type Route struct {
	engine *Engine
	ttl    time.Duration
	perf   performance.Recorder

	mu    sync.RWMutex
	local []Option
}

// Configure replaces the route's overrides.
func (rt *Route) Configure(opts ...Option) *Route {
	rt.mu.Lock()
	rt.local = slices.Clone(opts)
	rt.mu.Unlock()
	return rt
}

// Options returns the route's effective options.
func (rt *Route) Options() Options {
	global := rt.engine.Options()

	rt.mu.RLock()
	local := rt.local
	rt.mu.RUnlock()

	o := global.apply(local)
	o.Backend = global.Backend
	return o
}

// TTL returns the route's time to live under opts.
func (rt *Route) TTL(opts Options) time.Duration {
	if rt.ttl > 0 {
		return rt.ttl
	}
	return opts.DefaultDuration
}

// Report returns the route's performance report.
func (rt *Route) Report() performance.Report {
	return rt.perf.Report()
}

// Handler wraps next with the cache.
func (rt *Route) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt.serve(w, r, next)
	})
}

// HandlerFunc wraps next with the cache.
func (rt *Route) HandlerFunc(next http.HandlerFunc) http.Handler {
	return rt.Handler(next)
}

func (rt *Route) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	start := time.Now()
	opts := rt.Options()
	log := opts.logger()

	if !opts.Enabled || r.Header.Get(HeaderBypass) != "" || r.Header.Get(HeaderForceFetch) != "" {
		Bypasses.Inc()
		log.Debug().Str("path", r.URL.Path).Msg("Bypass detected, skipping cache")
		next.ServeHTTP(w, r)
		return
	}

	key := DeriveKey(r, opts)
	ttl := rt.TTL(opts)
	backend := opts.Backend
	kind := string(backend.Kind())

	entry, err := backend.Get(r.Context(), key)
	if err == nil {
		rt.perf.Hit(key)
		if opts.Toggle != nil && !opts.Toggle(r, entry.Status) {
			Bypasses.Inc()
			log.Debug().Str("key", key).Msg("Toggle rejected cached response, skipping cache")
			next.ServeHTTP(w, r)
			return
		}
		CacheHits.WithLabelValues(kind).Inc()
		log.Debug().
			Str("key", key).
			Str("backend", kind).
			Dur("elapsed", time.Since(start)).
			Msg("Sending cached response")
		rt.replay(w, r, entry, ttl, opts)
		return
	}
	if !errors.Is(err, store.ErrCacheMiss) {
		CacheErrors.WithLabelValues("get").Inc()
		log.Warn().Err(err).
			Str("key", key).
			Str("backend", kind).
			Msg("Cache get error, treating as miss")
	}

	rt.perf.Miss(key)
	CacheMisses.WithLabelValues(kind).Inc()
	rt.capture(w, r, next, key, ttl, opts, start)
}

// replay writes a stored entry, answering 304 when the client already
// holds the stored ETag.
func (rt *Route) replay(w http.ResponseWriter, r *http.Request, entry *store.Entry, ttl time.Duration, opts Options) {
	h := w.Header()
	for name, values := range filterHeaders(entry.Header, opts.HeaderBlacklist) {
		h[name] = values
	}
	for name, value := range opts.Headers {
		h.Set(name, value)
	}
	h.Set(HeaderCacheControl, maxAge(entry.Remaining(ttl, time.Now())))

	if !opts.Production {
		h.Set(HeaderStore, string(opts.Backend.Kind()))
		h.Set(HeaderVersion, Version)
	}

	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == entry.ETag() {
		NotModifiedResponses.Inc()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	status := entry.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if _, err := w.Write(entry.Body); err != nil {
		log := opts.logger()
		log.Debug().Err(err).Msg("Failed to write cached response")
	}
}

// capture runs next into a buffer, decides cacheability once, sends the
// response and stores it when cacheable.
func (rt *Route) capture(w http.ResponseWriter, r *http.Request, next http.Handler, key string, ttl time.Duration, opts Options, start time.Time) {
	slot := &groupSlot{}
	r = r.WithContext(context.WithValue(r.Context(), groupKey{}, slot))

	cw := newCaptureWriter()
	next.ServeHTTP(cw, r)

	h := cw.Header()
	for name, value := range opts.Headers {
		h.Set(name, value)
	}

	status := cw.statusCode()
	cacheable := ShouldCache(r, status, opts) && ttl > 0
	if !hasHeader(opts.Headers, HeaderCacheControl) {
		if cacheable {
			h.Set(HeaderCacheControl, maxAge(ttl))
		} else {
			h.Set(HeaderCacheControl, noStore)
		}
	}

	cw.flush(w)

	if !cacheable {
		return
	}

	group := slot.get()
	if group == "" {
		group = opts.Group
	}
	entry := buildEntry(status, h, cw.body.Bytes(), opts.HeaderBlacklist)
	rt.engine.save(r.Context(), key, group, entry, ttl, opts)

	log := opts.logger()
	log.Debug().
		Str("key", key).
		Dur("elapsed", time.Since(start)).
		Msg("Added cache entry")
}

func maxAge(d time.Duration) string {
	return fmt.Sprintf("max-age=%d", int64(math.Max(0, math.Round(d.Seconds()))))
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// captureWriter buffers a downstream response so headers can still change
// after the handler returns.
type captureWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{header: make(http.Header)}
}

func (c *captureWriter) Header() http.Header {
	return c.header
}

func (c *captureWriter) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	return c.body.Write(p)
}

func (c *captureWriter) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *captureWriter) flush(w http.ResponseWriter) {
	dst := w.Header()
	for name, values := range c.header {
		dst[name] = values
	}
	w.WriteHeader(c.statusCode())
	_, _ = w.Write(c.body.Bytes())
}

type groupKey struct{}

type groupSlot struct {
	mu   sync.Mutex
	name string
}

func (s *groupSlot) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetGroup files the response to r under group when it gets cached. It
// has no effect outside a cached route's miss path.
func SetGroup(r *http.Request, group string) {
	if slot, ok := r.Context().Value(groupKey{}).(*groupSlot); ok {
		slot.mu.Lock()
		slot.name = group
		slot.mu.Unlock()
	}
}
