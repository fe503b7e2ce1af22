package apicache

import (
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/pengqiangsheng/apicache/pkg/logging"
	"github.com/pengqiangsheng/apicache/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultWriteTimeout bounds a backend write that outlives its request.
const DefaultWriteTimeout = 5 * time.Second

// Toggle decides per exchange whether caching applies. On a miss it sees
// the downstream status; on a hit, the stored status.
type Toggle func(r *http.Request, status int) bool

// StatusCodes restricts which response statuses are cached.
type StatusCodes struct {
	// Include, when non-empty, lists the only cacheable statuses.
	Include []int
	// Exclude lists statuses that are never cached.
	Exclude []int
}

// Options holds engine configuration. Routes see the engine's Options with
// their own overrides applied on top.
type Options struct {
	// Enabled turns caching on. Disabled routes pass straight through.
	Enabled bool

	// DefaultDuration is the TTL of routes created without a valid duration.
	DefaultDuration time.Duration

	// AppendKey adds a discriminator to every key, e.g. the request method.
	AppendKey func(r *http.Request) string

	// HeaderBlacklist names response headers that are never stored or replayed.
	HeaderBlacklist []string

	// StatusCodes filters cacheable responses by status.
	StatusCodes StatusCodes

	// OnExpire is called with the key of every entry evicted by its TTL.
	OnExpire func(key string)

	// Headers are set on every response passing through a cached route.
	Headers map[string]string

	// TrackPerformance gives routes created afterwards a hit-rate tracker.
	TrackPerformance bool

	// StripQuery leaves the query string out of keys.
	StripQuery bool

	// Debug logs every cache decision.
	Debug bool

	// Production suppresses the diagnostic apicache-* response headers.
	Production bool

	// Toggle is consulted before serving or storing; nil caches everything.
	Toggle Toggle

	// Group files stored keys under a group unless the handler sets one
	// with SetGroup.
	Group string

	// WriteTimeout bounds backend writes.
	WriteTimeout time.Duration

	// Backend stores entries. It is engine-wide: route overrides of it are
	// ignored.
	Backend store.Backend

	// Logger receives engine logs.
	Logger zerolog.Logger
}

// Option configures Options.
type Option func(*Options)

// DefaultOptions returns the configuration a new engine starts with.
func DefaultOptions() Options {
	return Options{
		Enabled:         true,
		DefaultDuration: FallbackDuration,
		Headers:         map[string]string{},
		WriteTimeout:    DefaultWriteTimeout,
		Logger:          logging.NewLogger("apicache"),
	}
}

// Clone returns a deep copy, so snapshots never alias the engine's state.
func (o Options) Clone() Options {
	c := o
	c.HeaderBlacklist = slices.Clone(o.HeaderBlacklist)
	c.StatusCodes.Include = slices.Clone(o.StatusCodes.Include)
	c.StatusCodes.Exclude = slices.Clone(o.StatusCodes.Exclude)
	c.Headers = maps.Clone(o.Headers)
	return c
}

func (o Options) apply(opts []Option) Options {
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o Options) logger() zerolog.Logger {
	if o.Debug {
		return o.Logger
	}
	return o.Logger.Level(zerolog.InfoLevel)
}

// WithEnabled turns caching on or off.
func WithEnabled(enabled bool) Option {
	return func(o *Options) { o.Enabled = enabled }
}

// WithDefaultDuration sets the default TTL.
func WithDefaultDuration(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.DefaultDuration = d
		}
	}
}

// WithDefaultDurationString sets the default TTL from a human duration such
// as "5 minutes". Malformed values fall back to FallbackDuration.
func WithDefaultDurationString(s string) Option {
	return func(o *Options) { o.DefaultDuration = ParseDuration(s, FallbackDuration) }
}

// WithAppendKey sets the key discriminator.
func WithAppendKey(fn func(r *http.Request) string) Option {
	return func(o *Options) { o.AppendKey = fn }
}

// WithHeaderBlacklist replaces the header blacklist.
func WithHeaderBlacklist(names ...string) Option {
	return func(o *Options) { o.HeaderBlacklist = slices.Clone(names) }
}

// WithStatusCodes replaces the include and exclude status filters.
func WithStatusCodes(include, exclude []int) Option {
	return func(o *Options) {
		o.StatusCodes = StatusCodes{
			Include: slices.Clone(include),
			Exclude: slices.Clone(exclude),
		}
	}
}

// WithExpireCallback sets the expiry callback.
func WithExpireCallback(fn func(key string)) Option {
	return func(o *Options) { o.OnExpire = fn }
}

// WithHeaders replaces the extra response headers.
func WithHeaders(headers map[string]string) Option {
	return func(o *Options) { o.Headers = maps.Clone(headers) }
}

// WithTrackPerformance enables hit-rate tracking for routes created later.
func WithTrackPerformance(track bool) Option {
	return func(o *Options) { o.TrackPerformance = track }
}

// WithStripQuery leaves query strings out of keys.
func WithStripQuery(strip bool) Option {
	return func(o *Options) { o.StripQuery = strip }
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(o *Options) { o.Debug = debug }
}

// WithProduction suppresses diagnostic headers.
func WithProduction(production bool) Option {
	return func(o *Options) { o.Production = production }
}

// WithToggle sets the caching toggle.
func WithToggle(fn Toggle) Option {
	return func(o *Options) { o.Toggle = fn }
}

// WithGroup files stored keys under group.
func WithGroup(group string) Option {
	return func(o *Options) { o.Group = group }
}

// WithWriteTimeout bounds backend writes.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.WriteTimeout = d
		}
	}
}

// WithBackend selects the storage backend.
func WithBackend(b store.Backend) Option {
	return func(o *Options) { o.Backend = b }
}

// WithRedis selects a Redis backend over client.
func WithRedis(client redis.UniversalClient, opts ...store.RedisOption) Option {
	return func(o *Options) { o.Backend = store.NewRedis(client, opts...) }
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithSnapshot replaces every field with a copy of snap. A local store is
// not carried over: the receiving engine gets its own.
func WithSnapshot(snap Options) Option {
	return func(o *Options) {
		*o = snap.Clone()
		if o.Backend != nil && o.Backend.Kind() == store.KindMemory {
			o.Backend = nil
		}
	}
}
