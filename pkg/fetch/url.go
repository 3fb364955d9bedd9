package fetch

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

var absoluteURL = regexp.MustCompile(`^https?://`)

// IsURL reports whether s is an absolute http(s) URL.
func IsURL(s string) bool {
	return absoluteURL.MatchString(s)
}

// ValidateURL reports whether s parses as a URL. When protocols is
// non-empty, a present scheme must be one of them; a missing scheme is
// accepted unless requireProtocol is set.
func ValidateURL(s string, protocols []string, requireProtocol bool) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme == "" {
		return !requireProtocol
	}
	if len(protocols) == 0 {
		return true
	}
	for _, p := range protocols {
		if strings.EqualFold(p, u.Scheme) {
			return true
		}
	}
	return false
}

// ResolveURL joins target onto base unless target is already absolute,
// then replaces the query with params when any are given.
func ResolveURL(base, target string, params []QueryParam) (string, error) {
	full := target
	if !IsURL(target) {
		full = base + target
	}
	if len(params) == 0 {
		return full, nil
	}

	u, err := url.Parse(full)
	if err != nil {
		return "", err
	}
	u.RawQuery = encodeParams(params)
	return u.String(), nil
}

// encodeParams encodes params in the order given, unlike url.Values which
// sorts by key.
func encodeParams(params []QueryParam) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// WithBaseURL resolves relative request targets against base.
func WithBaseURL(base string) Middleware {
	return func(next RequestFunc) RequestFunc {
		return func(ctx context.Context, req *Request) (*Response, error) {
			resolved, err := ResolveURL(base, req.Target, req.SearchParams)
			if err != nil {
				return nil, err
			}
			r := req.Clone()
			r.Target = resolved
			r.SearchParams = nil
			return next(ctx, r)
		}
	}
}
