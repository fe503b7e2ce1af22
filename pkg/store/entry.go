package store

import (
	"net/http"
	"time"
)

// Entry represents a captured HTTP response.
type Entry struct {
	// Status is the HTTP status code of the captured response
	Status int `msgpack:"status" json:"status"`

	// Header holds the response headers, already filtered by the engine
	Header http.Header `msgpack:"headers" json:"headers"`

	// Body is the response body
	Body []byte `msgpack:"data" json:"data"`

	// Timestamp is when the response was captured, in seconds since the epoch
	Timestamp float64 `msgpack:"timestamp" json:"timestamp"`
}

// NewEntry builds an Entry stamped with the current time.
func NewEntry(status int, header http.Header, body []byte) *Entry {
	return &Entry{
		Status:    status,
		Header:    header,
		Body:      body,
		Timestamp: epochSeconds(time.Now()),
	}
}

// ETag returns the stored ETag header, if any.
func (e *Entry) ETag() string {
	if e == nil {
		return ""
	}
	return e.Header.Get("ETag")
}

// CachedAt returns the capture time.
func (e *Entry) CachedAt() time.Time {
	sec := int64(e.Timestamp)
	nsec := int64((e.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// Remaining returns how much of ttl is left at now.
// Returns 0 if already elapsed.
func (e *Entry) Remaining(ttl time.Duration, now time.Time) time.Duration {
	left := ttl - now.Sub(e.CachedAt())
	if left < 0 {
		return 0
	}
	return left
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
