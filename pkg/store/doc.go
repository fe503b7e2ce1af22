// Package store provides the storage backends used by the apicache engine.
//
// Two backends implement the Backend capability:
//
//   - Memory: a process-local map with its own per-entry expiry timers.
//   - Redis: a networked store that keeps each entry as a hash with a
//     msgpack "response" field and a "duration" field, expired natively
//     by Redis.
//
// # Basic Usage
//
//	// Local store
//	backend := store.NewMemory()
//
//	// Remote store
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	backend := store.NewRedis(redisClient, store.WithPrefix("apicache"))
//
//	entry := store.NewEntry(http.StatusOK, header, body)
//	if err := backend.Put(ctx, "/api/users", entry, 2*time.Minute, nil); err != nil {
//		return err
//	}
//
//	entry, err := backend.Get(ctx, "/api/users")
//	if errors.Is(err, store.ErrCacheMiss) {
//		// Cache miss
//	}
//
// Backends are safe for concurrent use. They never interpret keys; key
// derivation and indexing belong to the engine.
package store
