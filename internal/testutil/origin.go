// Package testutil provides testing utilities for apicache.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Response defines the behavior of one mock origin path.
type Response struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Origin is a configurable downstream handler that records how often it
// was reached. Tests wrap it in a cached route and assert on the counts.
type Origin struct {
	mu        sync.RWMutex
	responses map[string]Response
	calls     map[string]int
	total     int
}

// NewOrigin creates an origin answering 200 {"status":"ok"} on every path.
func NewOrigin() *Origin {
	return &Origin{
		responses: make(map[string]Response),
		calls:     make(map[string]int),
	}
}

// ServeHTTP implements http.Handler.
func (o *Origin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.total++
	o.calls[r.URL.Path]++
	resp, ok := o.responses[r.URL.Path]
	o.mu.Unlock()

	if !ok {
		resp = NewJSONResponse(`{"status":"ok"}`)
	}
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// SetResponse configures the response for a path.
func (o *Origin) SetResponse(path string, resp Response) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.responses[path] = resp
}

// Calls returns the number of requests that reached path.
func (o *Origin) Calls(path string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.calls[path]
}

// Total returns the number of requests that reached the origin.
func (o *Origin) Total() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.total
}

// Reset clears all tracking counters.
func (o *Origin) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.total = 0
	clear(o.calls)
}

// Server starts an httptest server in front of h. It is closed when the
// test ends.
func Server(t interface{ Cleanup(func()) }, h http.Handler) *httptest.Server {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

// NewJSONResponse creates a 200 OK JSON response carrying an ETag.
func NewJSONResponse(body string) Response {
	return Response{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
			"ETag":         `"test-etag-123"`,
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() Response {
	return Response{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
