// Command apicache-server runs the demo API behind two cache engines: a
// local one and one backed by Redis when REDIS_URL is reachable.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pengqiangsheng/apicache/internal/config"
	"github.com/pengqiangsheng/apicache/pkg/apicache"
	"github.com/pengqiangsheng/apicache/pkg/logging"
	"github.com/pengqiangsheng/apicache/pkg/metrics"
	"github.com/pengqiangsheng/apicache/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/sync/errgroup"
)

// Engine names in the registry.
const (
	engineMemory = "memory"
	engineRedis  = "redis"
)

func main() {
	configPath := flag.String("config", os.Getenv("APICACHE_CONFIG"), "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging()).With().Str("component", "server").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	var client redis.UniversalClient
	if cfg.Redis.URL != "" {
		c, err := connectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn().Err(err).Str("redis_url", cfg.Redis.URL).Msg("Redis unavailable, using memory store")
		} else {
			client = c
			defer c.Close()
			logger.Info().Str("redis_url", cfg.Redis.URL).Msg("Connected to Redis")
		}
	}

	reg := newRegistry(cfg, client)
	defer reg.Close()

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           newServer(reg, client, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("Starting apicache server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// connectRedis accepts either a redis:// URL or a bare host:port.
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts := &redis.Options{Addr: url}
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// newRegistry builds the two demo engines. The memory engine keys on the
// request method as well; the second engine uses Redis when a client is
// given and its own local store otherwise.
func newRegistry(cfg *config.Config, client redis.UniversalClient) *apicache.Registry {
	reg := apicache.NewRegistry()

	base := cfg.Options()
	reg.New(engineMemory, append(slices.Clone(base),
		apicache.WithAppendKey(func(r *http.Request) string { return r.Method }),
	)...)

	second := slices.Clone(base)
	if client != nil {
		second = append(second, apicache.WithRedis(client,
			store.WithPrefix(cfg.Redis.Prefix),
			store.WithQueryTimeout(cfg.Redis.QueryTimeout),
		))
	}
	reg.New(engineRedis, second...)

	return reg
}

// newServer mounts the demo API, the cache admin endpoints and the
// operational endpoints.
func newServer(reg *apicache.Registry, client redis.UniversalClient, logger zerolog.Logger) http.Handler {
	memory, _ := reg.Get(engineMemory)
	remote, _ := reg.Get(engineRedis)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(client))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/pqs", userHandler("pqs", "123456"))
	mux.HandleFunc("GET /api/ccc", userHandler("ccc", "123456"))

	mux.Handle("GET /user/{collection}/{id}", memory.Route("4 minutes").HandlerFunc(collectionHandler))

	mux.Handle("GET /api/cache/pqs", memory.Route("2 minutes").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", "pqstest")
		userHandler("pqs", "123456")(w, r)
	}))
	mux.Handle("GET /api/cache/ccc", memory.Route("2 minutes").HandlerFunc(userHandler("ccc", "123456")))

	mux.Handle("GET /api/redis/pqs", remote.Route("3 minutes").HandlerFunc(userHandler("pqs111", "123456")))
	mux.Handle("GET /api/redis/ccc", remote.Route("3 minutes").HandlerFunc(userHandler("ccc1111", "1234568")))

	mux.HandleFunc("GET /api/cache/index", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, memory.Index())
	})
	mux.HandleFunc("GET /api/cache/clear", clearHandler(memory))
	mux.HandleFunc("GET /api/cache/clear/{key...}", clearHandler(memory))
	mux.HandleFunc("GET /api/cache/performance", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, memory.PerformanceReport())
	})
	mux.HandleFunc("GET /api/redis/performance", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, remote.PerformanceReport())
	})

	return accessLog(logger, mux)
}

func accessLog(logger zerolog.Logger, next http.Handler) http.Handler {
	h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.RequestURI()).
			Int("status", status).
			Int("size", size).
			Dur("elapsed", duration).
			Msg("Request")
	})(next)
	return hlog.NewHandler(logger)(h)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func readyHandler(client redis.UniversalClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if client != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			if err := client.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "READY")
	}
}

func userHandler(name, pwd string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"name": name, "pwd": pwd})
	}
}

// collectionHandler files each response under its collection, so
// /api/cache/clear/<collection> drops the whole collection.
func collectionHandler(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	apicache.SetGroup(r, collection)
	writeJSON(w, map[string]any{
		"params": map[string]string{
			"collection": collection,
			"id":         r.PathValue("id"),
		},
	})
}

// clearHandler clears the key or group named in the path, or in the key
// query parameter. With neither, everything is cleared.
func clearHandler(e *apicache.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.PathValue("key")
		if target == "" {
			target = r.URL.Query().Get("key")
		}
		writeJSON(w, e.Clear(r.Context(), target))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
