package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pengqiangsheng/apicache/internal/config"
	"github.com/pengqiangsheng/apicache/pkg/apicache"
	"github.com/pengqiangsheng/apicache/pkg/performance"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, client redis.UniversalClient) (*httptest.Server, *apicache.Registry) {
	t.Helper()
	cfg := config.Default()
	reg := newRegistry(&cfg, client)
	t.Cleanup(func() { reg.Close() })

	srv := httptest.NewServer(newServer(reg, client, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv, reg
}

func fetch(t *testing.T, url string, headers ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, body := fetch(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)
}

func TestReadyHandler(t *testing.T) {
	t.Run("memory only", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)

		resp, _ := fetch(t, srv.URL+"/ready")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("redis down", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		srv, _ := newTestServer(t, client)

		mr.Close()

		resp, _ := fetch(t, srv.URL+"/ready")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestCachedRoute(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	first, body := fetch(t, srv.URL+"/api/cache/pqs")
	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.JSONEq(t, `{"name":"pqs","pwd":"123456"}`, body)
	assert.Equal(t, "max-age=120", first.Header.Get("Cache-Control"))

	second, body := fetch(t, srv.URL+"/api/cache/pqs")
	assert.JSONEq(t, `{"name":"pqs","pwd":"123456"}`, body)
	assert.Equal(t, "memory", second.Header.Get(apicache.HeaderStore))

	notModified, body := fetch(t, srv.URL+"/api/cache/pqs", "If-None-Match", "pqstest")
	assert.Equal(t, http.StatusNotModified, notModified.StatusCode)
	assert.Empty(t, body)

	_, body = fetch(t, srv.URL+"/api/cache/index")
	var ix apicache.Index
	require.NoError(t, json.Unmarshal([]byte(body), &ix))
	assert.Equal(t, []string{"/api/cache/pqs$$appendKey=GET"}, ix.All)
}

func TestGroupClear(t *testing.T) {
	srv, reg := newTestServer(t, nil)
	memory, _ := reg.Get(engineMemory)

	fetch(t, srv.URL+"/user/books/1")
	fetch(t, srv.URL+"/user/books/2")
	fetch(t, srv.URL+"/user/films/1")

	assert.Len(t, memory.Group("books"), 2)

	_, body := fetch(t, srv.URL+"/api/cache/clear/books")
	var ix apicache.Index
	require.NoError(t, json.Unmarshal([]byte(body), &ix))
	assert.Equal(t, []string{"/user/films/1$$appendKey=GET"}, ix.All)
	assert.NotContains(t, ix.Groups, "books")
	assert.Contains(t, ix.Groups, "films")

	_, body = fetch(t, srv.URL+"/api/cache/clear?key=/user/films/1$$appendKey=GET")
	require.NoError(t, json.Unmarshal([]byte(body), &ix))
	assert.Empty(t, ix.All)
}

func TestClearAll(t *testing.T) {
	srv, reg := newTestServer(t, nil)
	memory, _ := reg.Get(engineMemory)

	fetch(t, srv.URL+"/api/cache/pqs")
	fetch(t, srv.URL+"/api/cache/ccc")
	require.Len(t, memory.Index().All, 2)

	fetch(t, srv.URL+"/api/cache/clear")
	assert.Empty(t, memory.Index().All)
}

func TestPerformanceEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	fetch(t, srv.URL+"/api/cache/ccc")
	fetch(t, srv.URL+"/api/cache/ccc")

	_, body := fetch(t, srv.URL+"/api/cache/performance")
	var reports []performance.Report
	require.NoError(t, json.Unmarshal([]byte(body), &reports))

	// One report per memory route: /user, /api/cache/pqs, /api/cache/ccc.
	require.Len(t, reports, 3)
	ccc := reports[2]
	assert.Equal(t, uint64(2), ccc.CallCount)
	assert.Equal(t, uint64(1), ccc.HitCount)
}

func TestRedisRoutes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	srv, _ := newTestServer(t, client)

	fetch(t, srv.URL+"/api/redis/pqs")
	resp, body := fetch(t, srv.URL+"/api/redis/pqs")

	assert.JSONEq(t, `{"name":"pqs111","pwd":"123456"}`, body)
	assert.Equal(t, "redis", resp.Header.Get(apicache.HeaderStore))
	assert.True(t, mr.Exists("apicache:/api/redis/pqs"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	fetch(t, srv.URL+"/api/cache/ccc")
	fetch(t, srv.URL+"/api/cache/ccc")

	resp, body := fetch(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(body, "apicache_hits_total"), "hits counter exported")
	assert.True(t, strings.Contains(body, "apicache_misses_total"), "misses counter exported")
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := connectRedis(t.Context(), mr.Addr())
	require.NoError(t, err)
	client.Close()

	client, err = connectRedis(t.Context(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	client.Close()

	mr.Close()
	_, err = connectRedis(t.Context(), mr.Addr())
	assert.Error(t, err)

	_, err = connectRedis(t.Context(), "redis://%zz")
	assert.Error(t, err)
}
