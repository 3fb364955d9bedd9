// Package download streams remote artifacts to disk, optionally through a
// disk cache and an archive extractor.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/appfetch/pkg/fetch"
)

// CacheTTL is how long downloaded artifacts stay in the disk cache.
const CacheTTL = 7 * 24 * time.Hour

// Spec describes one download.
type Spec struct {
	URL        string
	OutputPath string

	// CacheDirectory names the cache namespace. Empty disables caching.
	CacheDirectory string

	// Extract unpacks the downloaded archive into OutputPath instead of
	// writing the raw bytes there.
	Extract bool

	OnProgress fetch.ProgressFunc
}

// CachedFunc returns a request function backed by a cache namespace.
type CachedFunc func(namespace string, ttl time.Duration) (fetch.RequestFunc, error)

// Downloader fetches artifacts. Fetch must not add credentials; artifact
// hosts are public.
type Downloader struct {
	Fetch     fetch.RequestFunc
	Cached    CachedFunc
	Extractor Extractor

	// TempDir is where archives are staged before extraction. Empty means
	// os.TempDir().
	TempDir string
}

// New returns a Downloader using fn for requests and the tar extractor.
func New(fn fetch.RequestFunc, cached CachedFunc) *Downloader {
	return &Downloader{Fetch: fn, Cached: cached, Extractor: TarExtractor{}}
}

// Download fetches spec.URL and writes it to spec.OutputPath. A non-ok
// response returns *Error and leaves nothing at OutputPath.
func (d *Downloader) Download(ctx context.Context, spec Spec) error {
	log := zerolog.Ctx(ctx).With().Str("url", spec.URL).Str("output", spec.OutputPath).Logger()

	fn, err := d.pipeline(spec)
	if err != nil {
		return err
	}

	req := fetch.NewRequest(http.MethodGet, spec.URL)
	req.OnProgress = spec.OnProgress
	resp, err := fn(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !resp.OK() {
		return &Error{StatusCode: resp.StatusCode, Status: resp.Status, URL: spec.URL}
	}

	if !spec.Extract {
		log.Debug().Msg("writing download")
		return writeFile(spec.OutputPath, resp.Body)
	}

	if d.Extractor == nil {
		return errors.New("download: extract requested without an extractor")
	}
	tmp := d.TempDir
	if tmp == "" {
		tmp = os.TempDir()
	}
	stage := filepath.Join(tmp, uuid.NewString())
	defer os.RemoveAll(stage)

	tempPath := filepath.Join(stage, filepath.Base(spec.OutputPath))
	if err := writeFile(tempPath, resp.Body); err != nil {
		return err
	}
	log.Debug().Str("archive", tempPath).Msg("extracting download")
	return d.Extractor.Extract(ctx, tempPath, spec.OutputPath)
}

func (d *Downloader) pipeline(spec Spec) (fetch.RequestFunc, error) {
	fn := d.Fetch
	if spec.CacheDirectory != "" && d.Cached != nil {
		cached, err := d.Cached(spec.CacheDirectory, CacheTTL)
		if err != nil {
			return nil, err
		}
		fn = cached
	}
	if fn == nil {
		return nil, errors.New("download: no request function configured")
	}
	return fetch.WithProgress()(fn), nil
}

// writeFile streams r to path, creating parent directories. A partial
// file is removed when the copy fails.
func writeFile(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
