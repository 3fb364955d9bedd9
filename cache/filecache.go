package cache

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	lockTimeout    = 30 * time.Second
	lockRetryDelay = 100 * time.Millisecond
)

// FileCache implements the Cache interface using filesystem storage. Each
// key is one file: a single line of JSON metadata followed by the raw body.
type FileCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// Option configures a FileCache.
type Option func(*FileCache)

// WithTTL sets the time-to-live applied to entries written without one.
func WithTTL(ttl time.Duration) Option {
	return func(fc *FileCache) { fc.ttl = ttl }
}

// WithClock replaces the clock used for expiry checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(fc *FileCache) { fc.now = now }
}

// NewFileCache creates a file-based cache rooted at dir, creating it if needed.
func NewFileCache(dir string, opts ...Option) (*FileCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory required")
	}
	fc := &FileCache{dir: dir, now: time.Now}
	for _, o := range opts {
		o(fc)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return fc, nil
}

// Dir returns the directory backing the cache.
func (fc *FileCache) Dir() string {
	return fc.dir
}

// Read implements Reader interface. Expired entries are reported as absent
// and stay on disk until a newer write replaces them.
func (fc *FileCache) Read(key string) (*Entry, io.ReadCloser, bool) {
	f, err := os.Open(fc.path(key))
	if err != nil {
		return nil, nil, false
	}

	br := bufio.NewReader(f)
	line, err := br.ReadBytes('\n')
	if err != nil {
		_ = f.Close()
		return nil, nil, false
	}

	var entry Entry
	if err := json.Unmarshal(line, &entry); err != nil {
		_ = f.Close()
		return nil, nil, false
	}

	if !entry.Valid(fc.now()) {
		_ = f.Close()
		return nil, nil, false
	}

	return &entry, &entryBody{Reader: br, f: f}, true
}

// Write implements Writer interface. The body is streamed into a temporary
// file which is then renamed over the previous entry, so readers never see
// a partial write. Writers on the same key are serialised by a lock file;
// the last one to finish wins.
func (fc *FileCache) Write(key string, entry *Entry, body io.Reader) error {
	if err := os.MkdirAll(fc.dir, 0o700); err != nil {
		return err
	}
	path := fc.path(key)

	lock := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock cache entry %s: %w", key, err)
	}
	if locked {
		defer func() { _ = lock.Unlock() }()
	}

	e := *entry
	e.Key = key
	e.StoredAt = fc.now()
	if e.TTL == 0 {
		e.TTL = fc.ttl
	}
	meta, err := json.Marshal(&e)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp." + uuid.NewString()
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := writeEntry(f, meta, body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}

// Clear removes every entry in the cache directory.
func (fc *FileCache) Clear() error {
	return os.RemoveAll(fc.dir)
}

func writeEntry(w io.Writer, meta []byte, body io.Reader) error {
	if _, err := w.Write(append(meta, '\n')); err != nil {
		return err
	}
	if body == nil {
		return nil
	}
	_, err := io.Copy(w, body)
	return err
}

// path generates the full filesystem path for a cache key
func (fc *FileCache) path(key string) string {
	return filepath.Join(fc.dir, key)
}

type entryBody struct {
	io.Reader
	f *os.File
}

func (b *entryBody) Close() error {
	return b.f.Close()
}
