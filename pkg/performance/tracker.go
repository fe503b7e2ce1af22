// Package performance tracks rolling cache hit rates with bounded memory.
//
// A Tracker keeps four circular windows of the last 100, 1000, 10000 and
// 100000 outcomes next to cumulative counters. Recording an outcome and
// producing a report are both O(1) and never allocate.
package performance

import "sync"

// Window lengths tracked by every Tracker.
var Windows = [4]int{100, 1000, 10000, 100000}

// Outcome is the state of one ring buffer slot.
type Outcome uint8

const (
	// Unset marks a slot no request has written yet.
	Unset Outcome = iota
	// Hit marks a cache hit.
	Hit
	// Miss marks a cache miss.
	Miss
)

// Recorder receives hit and miss events for one route.
type Recorder interface {
	Hit(key string)
	Miss(key string)
	Report() Report
}

// Report is a point-in-time view of a Tracker.
// Rates are nil when nothing has been observed in that window.
type Report struct {
	LastCacheHit      *string  `json:"lastCacheHit"`
	LastCacheMiss     *string  `json:"lastCacheMiss"`
	CallCount         uint64   `json:"callCount"`
	HitCount          uint64   `json:"hitCount"`
	MissCount         uint64   `json:"missCount"`
	HitRate           *float64 `json:"hitRate"`
	HitRateLast100    *float64 `json:"hitRateLast100"`
	HitRateLast1000   *float64 `json:"hitRateLast1000"`
	HitRateLast10000  *float64 `json:"hitRateLast10000"`
	HitRateLast100000 *float64 `json:"hitRateLast100000"`
}

type window struct {
	slots  []Outcome
	hits   int
	misses int
}

func (w *window) record(pos uint64, o Outcome) {
	i := pos % uint64(len(w.slots))
	switch w.slots[i] {
	case Hit:
		w.hits--
	case Miss:
		w.misses--
	}
	w.slots[i] = o
	if o == Hit {
		w.hits++
	} else {
		w.misses++
	}
}

func (w *window) rate() *float64 {
	return ratio(uint64(w.hits), uint64(w.hits+w.misses))
}

// Tracker records hit/miss outcomes. It is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	windows   [4]window
	callCount uint64
	hitCount  uint64
	lastHit   *string
	lastMiss  *string
}

var _ Recorder = (*Tracker)(nil)

// NewTracker allocates the four windows up front.
func NewTracker() *Tracker {
	t := &Tracker{}
	for i, n := range Windows {
		t.windows[i].slots = make([]Outcome, n)
	}
	return t
}

// Hit records a cache hit for key.
func (t *Tracker) Hit(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record(Hit)
	t.lastHit = &key
}

// Miss records a cache miss for key.
func (t *Tracker) Miss(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record(Miss)
	t.lastMiss = &key
}

func (t *Tracker) record(o Outcome) {
	for i := range t.windows {
		t.windows[i].record(t.callCount, o)
	}
	if o == Hit {
		t.hitCount++
	}
	t.callCount++
}

// Report returns the current statistics.
func (t *Tracker) Report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Report{
		LastCacheHit:      t.lastHit,
		LastCacheMiss:     t.lastMiss,
		CallCount:         t.callCount,
		HitCount:          t.hitCount,
		MissCount:         t.callCount - t.hitCount,
		HitRate:           ratio(t.hitCount, t.callCount),
		HitRateLast100:    t.windows[0].rate(),
		HitRateLast1000:   t.windows[1].rate(),
		HitRateLast10000:  t.windows[2].rate(),
		HitRateLast100000: t.windows[3].rate(),
	}
}

func ratio(hits, total uint64) *float64 {
	if total == 0 {
		return nil
	}
	r := float64(hits) / float64(total)
	return &r
}

// Noop discards every event. Used when performance tracking is off.
type Noop struct{}

var _ Recorder = Noop{}

// Hit implements Recorder.
func (Noop) Hit(string) {}

// Miss implements Recorder.
func (Noop) Miss(string) {}

// Report implements Recorder and always returns an empty Report.
func (Noop) Report() Report { return Report{} }
