package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the store
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored payload could not be decoded
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrNilEntry is returned when Put is called without an entry
	ErrNilEntry = errors.New("cache entry cannot be nil")
)

// Kind names a backend variant. It is reported in diagnostic headers and
// used as a metrics label.
type Kind string

const (
	// KindMemory is the process-local store.
	KindMemory Kind = "memory"

	// KindRedis is the networked Redis store.
	KindRedis Kind = "redis"
)

// ExpireFunc is called with the key of an entry the backend removed on its
// own because its TTL elapsed.
type ExpireFunc func(key string)

// Backend is the storage capability consumed by the engine.
type Backend interface {
	// Kind reports which variant this backend is.
	Kind() Kind

	// Put stores entry under key for ttl. A ttl <= 0 stores nothing.
	// onExpire may be nil; backends that cannot observe expiry ignore it.
	Put(ctx context.Context, key string, entry *Entry, ttl time.Duration, onExpire ExpireFunc) error

	// Get returns the entry for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) (*Entry, error)

	// Delete removes the given keys. Absent keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Clear removes every entry owned by the backend.
	Clear(ctx context.Context) error
}
