package fetch

import (
	"context"
	"errors"
	"io"
	"math"
	"strconv"
)

// ProgressEvent reports bytes read so far. Total is zero when the size is
// unknown, in which case Progress is NaN and must not be used.
type ProgressEvent struct {
	Loaded   int64
	Total    int64
	Progress float64
}

// Known reports whether Total was available.
func (e ProgressEvent) Known() bool {
	return e.Total > 0 && !math.IsNaN(e.Progress) && !math.IsInf(e.Progress, 0)
}

// ProgressFunc receives progress events.
type ProgressFunc func(ProgressEvent)

// WithProgress reports progress through req.OnProgress while the caller
// reads an ok response body. Bytes are forwarded unchanged.
func WithProgress() Middleware {
	return func(next RequestFunc) RequestFunc {
		return func(ctx context.Context, req *Request) (*Response, error) {
			resp, err := next(ctx, req)
			if err != nil {
				return nil, err
			}
			if !resp.OK() || req.OnProgress == nil {
				return resp, nil
			}

			total, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
			if total < 0 {
				total = 0
			}
			resp.Body = NewProgressReader(resp.Body, total, req.OnProgress)
			return resp, nil
		}
	}
}

// ProgressReader wraps a body and emits an event for every read that
// returns data, then one final event at end of stream.
type ProgressReader struct {
	rc     io.ReadCloser
	total  int64
	loaded int64
	fn     ProgressFunc
	done   bool
}

// NewProgressReader returns rc wrapped to report progress to fn.
func NewProgressReader(rc io.ReadCloser, total int64, fn ProgressFunc) *ProgressReader {
	return &ProgressReader{rc: rc, total: total, fn: fn}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.rc.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		p.emit()
	}
	if errors.Is(err, io.EOF) && !p.done {
		p.done = true
		p.emit()
	}
	return n, err
}

func (p *ProgressReader) Close() error {
	return p.rc.Close()
}

func (p *ProgressReader) emit() {
	p.fn(ProgressEvent{
		Loaded:   p.loaded,
		Total:    p.total,
		Progress: progressOf(p.loaded, p.total),
	})
}

func progressOf(loaded, total int64) float64 {
	if total <= 0 {
		return math.NaN()
	}
	return float64(loaded) / float64(total)
}
