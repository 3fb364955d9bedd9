package fetch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/appfetch/cache"
)

// WithCache serves GET requests from store while a valid entry exists and
// stores ok responses on a miss. The key is built from the request target,
// so the layer must sit inside the URL resolver. A nil store disables it.
//
// On a miss the body is written to the store before the response is
// returned; the caller then reads the stored copy. Non-ok responses and
// errors from next are passed through untouched.
func WithCache(store cache.Cache) Middleware {
	return func(next RequestFunc) RequestFunc {
		if store == nil {
			return next
		}
		return func(ctx context.Context, req *Request) (*Response, error) {
			method := req.method()
			if method != http.MethodGet {
				return next(ctx, req)
			}
			log := zerolog.Ctx(ctx)
			key := store.KeyFor(method, req.Target)

			if resp, ok := fromCache(store, key, req.Target); ok {
				log.Debug().Str("url", req.Target).Str("key", key).Msg("cache hit")
				return resp, nil
			}
			log.Debug().Str("url", req.Target).Str("key", key).Msg("cache miss")

			resp, err := next(ctx, req)
			if err != nil {
				return nil, err
			}
			if !resp.OK() {
				return resp, nil
			}

			entry := &cache.Entry{
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Header:     resp.Header.Clone(),
			}
			werr := store.Write(key, entry, resp.Body)
			_ = resp.Body.Close()
			if werr != nil {
				return nil, fmt.Errorf("cache response from %s: %w", req.Target, werr)
			}

			stored, ok := fromCache(store, key, req.Target)
			if !ok {
				return nil, fmt.Errorf("cache response from %s: entry not readable after write", req.Target)
			}
			return stored, nil
		}
	}
}

func fromCache(store cache.Reader, key, target string) (*Response, bool) {
	entry, body, ok := store.Read(key)
	if !ok {
		return nil, false
	}
	header := entry.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &Response{
		StatusCode: entry.StatusCode,
		Status:     entry.Status,
		Header:     header,
		Body:       body,
		URL:        target,
	}, true
}
