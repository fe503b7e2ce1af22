//go:build integration

package store

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestRedis_Integration_RoundTrip(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	r := NewRedis(client, WithPrefix("apicache-it"))
	ctx := context.Background()

	entry := NewEntry(http.StatusOK, http.Header{"Content-Type": []string{"application/json"}}, []byte(`{"ok":true}`))
	if err := r.Put(ctx, "/api/redis/ccc", entry, 2*time.Second, nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := r.Get(ctx, "/api/redis/ccc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Body) != string(entry.Body) {
		t.Errorf("Body = %s, want %s", got.Body, entry.Body)
	}

	ttl, err := client.TTL(ctx, "apicache-it:/api/redis/ccc").Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > 2*time.Second {
		t.Errorf("TTL = %v, want (0, 2s]", ttl)
	}
}

func TestRedis_Integration_Expiry(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	r := NewRedis(client)
	ctx := context.Background()

	if err := r.Put(ctx, "/expiring", NewEntry(http.StatusOK, nil, []byte("x")), time.Second, nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	time.Sleep(2500 * time.Millisecond)

	if _, err := r.Get(ctx, "/expiring"); err != ErrCacheMiss {
		t.Errorf("Get() after expiry error = %v, want ErrCacheMiss", err)
	}
}

func TestRedis_Integration_Clear(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	r := NewRedis(client, WithPrefix("apicache-it"))
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		key := "/k/" + time.Duration(i).String()
		if err := r.Put(ctx, key, NewEntry(http.StatusOK, nil, nil), time.Minute, nil); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	if err := client.Set(ctx, "foreign", "1", 0).Err(); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := r.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	keys, err := client.Keys(ctx, "apicache-it:*").Result()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("%d prefixed keys left after Clear", len(keys))
	}
	if n, _ := client.Exists(ctx, "foreign").Result(); n != 1 {
		t.Error("Clear removed a key outside the prefix")
	}
}
