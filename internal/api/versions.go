package api

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/appfetch/pkg/fetch"
)

const (
	versionsCacheNamespace = "versions-cache"
	// A week is long enough to spare the API and short enough that
	// retired SDK versions eventually drop out.
	versionsCacheTTL = 7 * 24 * time.Hour
)

// SDKVersion describes one SDK release and its matching client builds.
type SDKVersion struct {
	IOSVersion           string            `json:"iosVersion,omitempty"`
	ReleaseNoteURL       string            `json:"releaseNoteUrl,omitempty"`
	IOSClientURL         string            `json:"iosClientUrl,omitempty"`
	IOSClientVersion     string            `json:"iosClientVersion,omitempty"`
	AndroidClientURL     string            `json:"androidClientUrl,omitempty"`
	AndroidClientVersion string            `json:"androidClientVersion,omitempty"`
	RelatedPackages      map[string]string `json:"relatedPackages,omitempty"`
	Beta                 bool              `json:"beta,omitempty"`
}

// Versions is the payload of the versions endpoint.
type Versions struct {
	AndroidURL     string                `json:"androidUrl"`
	AndroidVersion string                `json:"androidVersion"`
	IOSURL         string                `json:"iosUrl"`
	IOSVersion     string                `json:"iosVersion"`
	SDKVersions    map[string]SDKVersion `json:"sdkVersions"`
}

// GetVersions fetches the latest version manifest. Responses are cached on
// disk for a week unless caching is switched off.
func (c *Client) GetVersions(ctx context.Context) (*Versions, error) {
	fn, err := c.CachedFetch(versionsCacheNamespace, versionsCacheTTL)
	if err != nil {
		return nil, err
	}

	resp, err := fn(ctx, fetch.NewRequest("GET", "/versions/latest"))
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		_ = resp.Body.Close()
		return nil, &CommandError{
			Code:    "API",
			Message: fmt.Sprintf("Unexpected response when fetching version info from Expo servers: %s.", resp.StatusText()),
		}
	}

	var payload struct {
		Data Versions `json:"data"`
	}
	if err := resp.JSON(&payload); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Int("sdks", len(payload.Data.SDKVersions)).Msg("loaded versions")
	return &payload.Data, nil
}

// ReleasedVersions returns the SDK versions that have shipped. An
// unreleased version may already be listed by the endpoint; it is kept only
// when it is a beta and the beta channel is on.
func (c *Client) ReleasedVersions(ctx context.Context) (map[string]SDKVersion, error) {
	v, err := c.GetVersions(ctx)
	if err != nil {
		return nil, err
	}
	return FilterReleased(v.SDKVersions, c.cfg.Beta), nil
}

// FilterReleased keeps versions with release notes, and betas when
// includeBeta is set.
func FilterReleased(all map[string]SDKVersion, includeBeta bool) map[string]SDKVersion {
	out := make(map[string]SDKVersion, len(all))
	for k, v := range all {
		if v.ReleaseNoteURL != "" || (includeBeta && v.Beta) {
			out[k] = v
		}
	}
	return out
}

// LatestReleasedSDK returns the highest released SDK version.
func (c *Client) LatestReleasedSDK(ctx context.Context) (string, error) {
	released, err := c.ReleasedVersions(ctx)
	if err != nil {
		return "", err
	}
	return LatestVersion(released)
}

// LatestVersion returns the key with the highest semantic version. Keys
// that do not parse are ignored.
func LatestVersion(sdks map[string]SDKVersion) (string, error) {
	var best *semver.Version
	var bestKey string
	for k := range sdks {
		v, err := semver.NewVersion(k)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestKey = v, k
		}
	}
	if best == nil {
		return "", &CommandError{Code: "NO_SDK", Message: "No released SDK versions found."}
	}
	return bestKey, nil
}
