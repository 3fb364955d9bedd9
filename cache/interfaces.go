// Package cache provides an on-disk store for HTTP responses with
// TTL-based expiration, keyed by request identity.
package cache

import (
	"io"
	"net/http"
	"time"
)

// Entry holds the metadata of a cached response. The body is stored
// alongside it and handed out as a stream.
type Entry struct {
	Key        string        `json:"key"`
	StoredAt   time.Time     `json:"stored_at"`
	TTL        time.Duration `json:"ttl"`
	StatusCode int           `json:"status_code"`
	Status     string        `json:"status,omitempty"`
	Header     http.Header   `json:"header,omitempty"`
}

// Valid reports whether the entry is still fresh at now. A TTL of zero or
// less never expires.
func (e *Entry) Valid(now time.Time) bool {
	if e.TTL <= 0 {
		return true
	}
	return now.Sub(e.StoredAt) < e.TTL
}

// Reader defines the interface for reading cache entries
type Reader interface {
	// Read returns the entry and its body when a valid entry exists for key.
	// The caller must close the body.
	Read(key string) (*Entry, io.ReadCloser, bool)
}

// Writer defines the interface for writing cache entries
type Writer interface {
	// Write stores entry and the full contents of body under key.
	Write(key string, entry *Entry, body io.Reader) error
}

// KeyGenerator generates cache keys from request identity
type KeyGenerator interface {
	// KeyFor generates a stable cache key from a method and resolved URL
	KeyFor(method, rawURL string) string
}

// Cache is the main interface that combines all cache operations
type Cache interface {
	Reader
	Writer
	KeyGenerator
}
