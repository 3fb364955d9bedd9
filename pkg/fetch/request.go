// Package fetch implements a layered HTTP request pipeline. Each layer is a
// Middleware that wraps a RequestFunc; layers are composed explicitly with
// Chain around a Transport.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HeaderPair is one entry of a list-shaped header set.
type HeaderPair struct {
	Name  string
	Value string
}

// QueryParam is one ordered query parameter.
type QueryParam struct {
	Key   string
	Value string
}

// Request describes a single call through the pipeline. Target may be an
// absolute URL or a path relative to the configured base URL.
type Request struct {
	Target string
	Method string
	Header map[string]string

	// HeaderPairs is the list form of headers. It is accepted by the
	// transport but rejected by layers that need map semantics.
	HeaderPairs []HeaderPair

	SearchParams []QueryParam
	Body         io.Reader

	// Timeout overrides the transport's fixed timeout when non-zero.
	Timeout time.Duration

	// OnProgress receives download progress when the progress layer is in
	// the pipeline.
	OnProgress ProgressFunc
}

// NewRequest returns a request for target with an empty header map.
func NewRequest(method, target string) *Request {
	return &Request{Method: method, Target: target, Header: map[string]string{}}
}

// Clone returns a shallow copy of r with its own header map and slices, so
// a layer can change headers without touching the caller's request.
func (r *Request) Clone() *Request {
	c := *r
	c.Header = make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		c.Header[k] = v
	}
	if r.HeaderPairs != nil {
		c.HeaderPairs = append([]HeaderPair(nil), r.HeaderPairs...)
	}
	if r.SearchParams != nil {
		c.SearchParams = append([]QueryParam(nil), r.SearchParams...)
	}
	return &c
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// Response is the result of a pipeline call. Body is single-pass; callers
// that need to inspect it more than once must buffer it themselves.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       io.ReadCloser
	URL        string
}

// OK reports whether the status is in [200, 400).
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 400
}

// StatusText returns the reason phrase for the response status.
func (r *Response) StatusText() string {
	if text := http.StatusText(r.StatusCode); text != "" {
		return text
	}
	return r.Status
}

// Text reads and closes the body.
func (r *Response) Text() (string, error) {
	defer func() { _ = r.Body.Close() }()
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// JSON decodes the body into out and closes it.
func (r *Response) JSON(out any) error {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", r.URL, err)
	}
	return nil
}

// bufferBody replaces the body with an in-memory copy of b.
func (r *Response) bufferBody(b []byte) {
	r.Body = io.NopCloser(bytes.NewReader(b))
}

// RequestFunc performs a request and returns its response.
type RequestFunc func(ctx context.Context, req *Request) (*Response, error)

// Middleware augments a RequestFunc.
type Middleware func(next RequestFunc) RequestFunc

// Chain composes layers so that the first one is outermost:
// Chain(a, b)(t) behaves like a(b(t)). Nil layers are skipped.
func Chain(layers ...Middleware) Middleware {
	return func(next RequestFunc) RequestFunc {
		for i := len(layers) - 1; i >= 0; i-- {
			if layers[i] == nil {
				continue
			}
			next = layers[i](next)
		}
		return next
	}
}
