package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
)

// KeyFor builds a file-safe key from the method and URL. GET is the
// default method and is left out of the hashed identity so that keys stay
// stable for the common case.
func (fc *FileCache) KeyFor(method, rawURL string) string {
	return URLToKey(method, rawURL)
}

// URLToKey converts a request identity to a deterministic cache key.
func URLToKey(method, rawURL string) string {
	method = strings.ToUpper(method)
	identity := normalizeURL(rawURL)
	if method != "" && method != http.MethodGet {
		identity = method + " " + identity
	}

	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}

// normalizeURL lowercases scheme and host so equivalent URLs share a key.
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}
