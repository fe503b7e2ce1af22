package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Hash fields written for every entry.
const (
	FieldResponse = "response"
	FieldDuration = "duration"
)

// DefaultQueryTimeout bounds every Redis round trip.
const DefaultQueryTimeout = 5 * time.Second

// ErrUnscopedClear is returned by Redis.Clear when no key prefix is set:
// without one the store cannot tell its keys apart from anything else in
// the database.
var ErrUnscopedClear = errors.New("redis clear requires a key prefix")

// Redis is a Backend over a Redis server. Entries are hashes holding a
// msgpack payload and the TTL in milliseconds; removal relies on the
// server's native expiry.
type Redis struct {
	client       redis.UniversalClient
	prefix       string
	queryTimeout time.Duration
}

var _ Backend = (*Redis)(nil)

// RedisOption configures a Redis backend.
type RedisOption func(*Redis)

// WithPrefix namespaces every key as "<prefix>:<key>".
func WithPrefix(p string) RedisOption {
	return func(r *Redis) { r.prefix = p }
}

// WithQueryTimeout sets the per-operation timeout. Defaults to
// DefaultQueryTimeout.
func WithQueryTimeout(d time.Duration) RedisOption {
	return func(r *Redis) { r.queryTimeout = d }
}

// NewRedis creates a Redis backend. The caller owns the client lifecycle.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	if client == nil {
		panic("redis client cannot be nil")
	}
	r := &Redis{
		client:       client,
		queryTimeout: DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Kind implements Backend.
func (r *Redis) Kind() Kind {
	return KindRedis
}

// Put implements Backend. onExpire is ignored: Redis does not report
// expirations back to the writer.
func (r *Redis) Put(ctx context.Context, key string, entry *Entry, ttl time.Duration, _ ExpireFunc) error {
	if entry == nil {
		return ErrNilEntry
	}
	if ttl <= 0 {
		return nil
	}

	data, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	k := r.prefixKey(key)
	pipe := r.client.TxPipeline()
	pipe.HSet(qctx, k, FieldResponse, data, FieldDuration, ttl.Milliseconds())
	pipe.Expire(qctx, k, expirySeconds(ttl))
	if _, err := pipe.Exec(qctx); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// Get implements Backend.
func (r *Redis) Get(ctx context.Context, key string) (*Entry, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	data, err := r.client.HGet(qctx, r.prefixKey(key), FieldResponse).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	var entry Entry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}

// Delete implements Backend.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = r.prefixKey(key)
	}
	if err := r.client.Del(qctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear implements Backend by deleting every key under the prefix.
func (r *Redis) Clear(ctx context.Context) error {
	if r.prefix == "" {
		return ErrUnscopedClear
	}

	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	iter := r.client.Scan(qctx, 0, r.prefix+":*", 100).Iterator()
	var batch []string
	for iter.Next(qctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := r.client.Del(qctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(qctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

// Duration returns the TTL recorded alongside key.
func (r *Redis) Duration(ctx context.Context, key string) (time.Duration, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	ms, err := r.client.HGet(qctx, r.prefixKey(key), FieldDuration).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("redis hget: %w", err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (r *Redis) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, r.queryTimeout)
}

func (r *Redis) prefixKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

// expirySeconds rounds ttl up to whole seconds, the granularity of EXPIRE.
func expirySeconds(ttl time.Duration) time.Duration {
	sec := math.Ceil(ttl.Seconds())
	if sec < 1 {
		sec = 1
	}
	return time.Duration(sec) * time.Second
}
