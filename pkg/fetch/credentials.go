package fetch

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// HeaderAuthorization carries the bearer access token.
	HeaderAuthorization = "authorization"
	// HeaderSession carries the session secret when no token is available.
	HeaderSession = "expo-session"
)

// Credentials looks up the caller's authentication material. Both lookups
// report false when the value is absent.
type Credentials interface {
	AccessToken() (string, bool)
	SessionSecret() (string, bool)
}

// StaticCredentials is a fixed set of credentials.
type StaticCredentials struct {
	Token  string
	Secret string
}

func (c StaticCredentials) AccessToken() (string, bool)   { return c.Token, c.Token != "" }
func (c StaticCredentials) SessionSecret() (string, bool) { return c.Secret, c.Secret != "" }

// WithCredentials injects the access token as a bearer authorization
// header, or the session secret when there is no token. A present token
// always suppresses the session header.
func WithCredentials(creds Credentials) Middleware {
	return func(next RequestFunc) RequestFunc {
		return func(ctx context.Context, req *Request) (*Response, error) {
			if len(req.HeaderPairs) > 0 {
				return nil, &ConfigError{Msg: "request headers must be in map form"}
			}
			if creds == nil {
				return next(ctx, req)
			}

			r := req.Clone()
			if token, ok := creds.AccessToken(); ok {
				deleteHeader(r.Header, HeaderSession)
				deleteHeader(r.Header, HeaderAuthorization)
				r.Header[HeaderAuthorization] = "Bearer " + token
				zerolog.Ctx(ctx).Debug().Str("url", r.Target).Msg("using access token")
			} else if secret, ok := creds.SessionSecret(); ok {
				deleteHeader(r.Header, HeaderSession)
				r.Header[HeaderSession] = secret
				zerolog.Ctx(ctx).Debug().Str("url", r.Target).Msg("using session secret")
			}
			return next(ctx, r)
		}
	}
}

func deleteHeader(h map[string]string, name string) {
	for k := range h {
		if strings.EqualFold(k, name) {
			delete(h, k)
		}
	}
}
