// Package api composes the request pipelines used to talk to the remote
// service and wraps its endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/briangreenhill/appfetch/cache"
	"github.com/briangreenhill/appfetch/internal/config"
	"github.com/briangreenhill/appfetch/pkg/fetch"
)

// APIVersionPath is appended to the API root for every relative request.
const APIVersionPath = "/v2"

// Client holds the composed pipelines for one configuration.
type Client struct {
	cfg       *config.Config
	creds     fetch.Credentials
	http      *http.Client
	transport fetch.RequestFunc

	// Fetch resolves relative paths, injects credentials and translates API
	// errors. It never caches.
	Fetch fetch.RequestFunc
}

type Option func(*Client)

// WithHTTPClient sets the HTTP client used by the transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTransport replaces the network transport entirely.
func WithTransport(fn fetch.RequestFunc) Option {
	return func(c *Client) { c.transport = fn }
}

// NewClient builds the pipelines for cfg. creds may be nil for anonymous
// access.
func NewClient(cfg *config.Config, creds fetch.Credentials, opts ...Option) *Client {
	c := &Client{cfg: cfg, creds: creds}
	for _, o := range opts {
		o(c)
	}
	if c.transport == nil {
		c.transport = fetch.NewTransport(c.http, fetch.WithTimeout(cfg.HTTPTimeout)).Do
	}

	c.Fetch = fetch.Chain(
		fetch.WithBaseURL(c.BaseURL()),
		fetch.WithCredentials(c.creds),
		fetch.WithErrorTranslation(),
	)(c.transport)
	return c
}

// BaseURL returns the versioned API root.
func (c *Client) BaseURL() string {
	return c.cfg.APIBaseURL() + APIVersionPath
}

// Config returns the configuration the client was built with.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Transport returns the bare transport, without any pipeline layers.
func (c *Client) Transport() fetch.RequestFunc {
	return c.transport
}

// CachedFetch returns Fetch with a disk cache under Home/namespace. When
// the beta channel or the no-cache switch is on, Fetch is returned as is.
func (c *Client) CachedFetch(namespace string, ttl time.Duration) (fetch.RequestFunc, error) {
	if !c.cfg.CacheEnabled() {
		return c.Fetch, nil
	}
	store, err := c.openCache(namespace, ttl)
	if err != nil {
		return nil, err
	}

	return fetch.Chain(
		fetch.WithBaseURL(c.BaseURL()),
		fetch.WithCache(store),
		fetch.WithCredentials(c.creds),
		fetch.WithErrorTranslation(),
	)(c.transport), nil
}

// CachedTransport returns the bare transport behind a disk cache, for
// artifact hosts that must not receive credentials. The cache switches
// apply as for CachedFetch.
func (c *Client) CachedTransport(namespace string, ttl time.Duration) (fetch.RequestFunc, error) {
	if !c.cfg.CacheEnabled() {
		return c.transport, nil
	}
	store, err := c.openCache(namespace, ttl)
	if err != nil {
		return nil, err
	}
	return fetch.WithCache(store)(c.transport), nil
}

func (c *Client) openCache(namespace string, ttl time.Duration) (*cache.FileCache, error) {
	store, err := cache.NewFileCache(c.cfg.CacheDir(namespace), cache.WithTTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", namespace, err)
	}
	return store, nil
}

// GetJSON fetches path with fn and decodes the response into out. Non-ok
// responses that survive error translation become a CommandError.
func GetJSON(ctx context.Context, fn fetch.RequestFunc, path string, out any) error {
	resp, err := fn(ctx, fetch.NewRequest(http.MethodGet, path))
	if err != nil {
		return err
	}
	if !resp.OK() {
		_ = resp.Body.Close()
		return &CommandError{Code: "API", Message: fmt.Sprintf("Unexpected response from %s: %s.", resp.URL, resp.StatusText())}
	}
	return resp.JSON(out)
}
