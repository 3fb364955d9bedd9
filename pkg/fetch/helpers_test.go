package fetch

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// fakeTransport records requests and answers them with respond.
type fakeTransport struct {
	mu       sync.Mutex
	requests []*Request
	respond  func(req *Request) (*Response, error)
}

func (f *fakeTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(req)
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTransport) last() *Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func respondWith(status int, body string) func(*Request) (*Response, error) {
	return func(req *Request) (*Response, error) {
		return textResponse(req.Target, status, body), nil
	}
}

func textResponse(target string, status int, body string) *Response {
	return &Response{
		StatusCode: status,
		Status:     strconv.Itoa(status) + " " + http.StatusText(status),
		Header: http.Header{
			"Content-Length": {strconv.Itoa(len(body))},
		},
		Body: io.NopCloser(strings.NewReader(body)),
		URL:  target,
	}
}
