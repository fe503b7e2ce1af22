package apicache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pengqiangsheng/apicache/pkg/store"
	"github.com/rs/zerolog"
)

// recordingBackend wraps a local store, counting calls and optionally
// failing reads or writes.
type recordingBackend struct {
	*store.Memory
	kind store.Kind

	mu      sync.Mutex
	gets    int
	puts    int
	clears  int
	deletes [][]string
	getErr  error
	putErr  error

	// When putGate is set, Put signals putStarted and waits for the gate.
	putGate    chan struct{}
	putStarted chan struct{}
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{Memory: store.NewMemory(), kind: store.KindMemory}
}

func (b *recordingBackend) Kind() store.Kind {
	return b.kind
}

func (b *recordingBackend) Get(ctx context.Context, key string) (*store.Entry, error) {
	b.mu.Lock()
	b.gets++
	err := b.getErr
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return b.Memory.Get(ctx, key)
}

func (b *recordingBackend) Put(ctx context.Context, key string, entry *store.Entry, ttl time.Duration, onExpire store.ExpireFunc) error {
	b.mu.Lock()
	b.puts++
	err := b.putErr
	gate, started := b.putGate, b.putStarted
	b.mu.Unlock()
	if gate != nil {
		started <- struct{}{}
		<-gate
	}
	if err != nil {
		return err
	}
	return b.Memory.Put(ctx, key, entry, ttl, onExpire)
}

func (b *recordingBackend) Delete(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	b.deletes = append(b.deletes, slices.Clone(keys))
	b.mu.Unlock()
	return b.Memory.Delete(ctx, keys...)
}

func (b *recordingBackend) Clear(ctx context.Context) error {
	b.mu.Lock()
	b.clears++
	b.mu.Unlock()
	return b.Memory.Clear(ctx)
}

func (b *recordingBackend) deleted() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.deletes)
}

func (b *recordingBackend) counts() (gets, puts, clears int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets, b.puts, b.clears
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *recordingBackend) {
	t.Helper()
	backend := newRecordingBackend()
	base := []Option{WithBackend(backend), WithLogger(zerolog.Nop())}
	e := New(append(base, opts...)...)
	t.Cleanup(func() { e.Close() })
	return e, backend
}

// origin is a downstream handler that counts its calls.
type origin struct {
	calls  atomic.Int32
	status int
	header http.Header
	body   string
	before func(w http.ResponseWriter, r *http.Request)
}

func (o *origin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.calls.Add(1)
	if o.before != nil {
		o.before(w, r)
	}
	for name, values := range o.header {
		w.Header()[name] = values
	}
	status := o.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(o.body))
}

func get(h http.Handler, target string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func entryFor(body string) *store.Entry {
	return store.NewEntry(http.StatusOK, http.Header{"Content-Type": []string{"text/plain"}}, []byte(body))
}
