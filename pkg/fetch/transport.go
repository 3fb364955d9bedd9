package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds the wait for response headers and for each body
// read.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent identifies the CLI to the remote service.
const DefaultUserAgent = "appfetch"

// TimeoutError is returned when response headers do not arrive, or a body
// read stalls, within the transport's timeout.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after %s", e.URL, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Transport performs a single HTTP exchange.
type Transport struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithTimeout sets the header and idle-read timeout.
func WithTimeout(d time.Duration) TransportOption {
	return func(t *Transport) { t.timeout = d }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) TransportOption {
	return func(t *Transport) { t.userAgent = ua }
}

// NewTransport returns a Transport using client, or http.DefaultClient
// when client is nil.
func NewTransport(client *http.Client, opts ...TransportOption) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	t := &Transport{
		client:    client,
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Do implements RequestFunc. The timeout bounds the exchange up to the
// response headers. While the body is read it becomes an idle deadline:
// a single Read blocking for longer than the timeout fails the stream.
// The request context is released when the body is closed.
func (t *Transport) Do(ctx context.Context, req *Request) (*Response, error) {
	u, err := url.Parse(req.Target)
	if err != nil {
		return nil, err
	}

	timeout := t.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithCancel(ctx)
	expired := &atomic.Bool{}
	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, func() {
			expired.Store(true)
			cancel()
		})
	}

	hreq, err := http.NewRequestWithContext(ctx, req.method(), u.String(), req.Body)
	if err != nil {
		stopTimer(timer)
		cancel()
		return nil, err
	}
	if t.userAgent != "" {
		hreq.Header.Set("User-Agent", t.userAgent)
	}
	for _, p := range req.HeaderPairs {
		hreq.Header.Add(p.Name, p.Value)
	}
	for k, v := range req.Header {
		hreq.Header.Set(k, v)
	}
	target := hreq.URL.String()

	zerolog.Ctx(ctx).Debug().Str("method", hreq.Method).Str("url", target).Msg("http request")

	resp, err := t.client.Do(hreq)
	fired := timer != nil && !timer.Stop()
	if err != nil {
		cancel()
		if fired || expired.Load() {
			return nil, &TimeoutError{URL: target, Timeout: timeout, Err: context.DeadlineExceeded}
		}
		return nil, err
	}
	if fired {
		_ = resp.Body.Close()
		cancel()
		return nil, &TimeoutError{URL: target, Timeout: timeout, Err: context.DeadlineExceeded}
	}

	zerolog.Ctx(ctx).Debug().Str("url", target).Int("status", resp.StatusCode).Msg("http response")

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body: &idleBody{
			ReadCloser: resp.Body,
			cancel:     cancel,
			idle:       timer,
			expired:    expired,
			url:        target,
			timeout:    timeout,
		},
		URL: target,
	}, nil
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// RequestFunc returns t.Do as a RequestFunc.
func (t *Transport) RequestFunc() RequestFunc {
	return t.Do
}

// idleBody rearms the request timer around every Read, so only a stalled
// stream times out.
type idleBody struct {
	io.ReadCloser
	cancel  context.CancelFunc
	idle    *time.Timer
	expired *atomic.Bool
	url     string
	timeout time.Duration
}

func (b *idleBody) Read(p []byte) (int, error) {
	if b.idle != nil && !b.expired.Load() {
		b.idle.Reset(b.timeout)
	}
	n, err := b.ReadCloser.Read(p)
	stopTimer(b.idle)
	if err != nil && !errors.Is(err, io.EOF) && b.expired.Load() {
		return n, &TimeoutError{URL: b.url, Timeout: b.timeout, Err: context.DeadlineExceeded}
	}
	return n, err
}

func (b *idleBody) Close() error {
	stopTimer(b.idle)
	defer b.cancel()
	return b.ReadCloser.Close()
}
