// Package expogo downloads the Expo Go client build for a platform.
package expogo

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/appfetch/internal/api"
	"github.com/briangreenhill/appfetch/internal/download"
	"github.com/briangreenhill/appfetch/pkg/fetch"
)

// CacheNamespace is the cache directory shared by all client downloads.
const CacheNamespace = "expo-go"

type Platform string

const (
	IOS     Platform = "ios"
	Android Platform = "android"
)

// VersionSource returns the current version manifest.
type VersionSource interface {
	GetVersions(ctx context.Context) (*api.Versions, error)
}

// Downloader picks the client artifact for a platform and installs it
// under Home.
type Downloader struct {
	Versions   VersionSource
	Download   *download.Downloader
	Home       string
	OnProgress fetch.ProgressFunc
}

type artifact struct {
	url     string
	version string
	output  string
	extract bool
}

// Install downloads the client for platform and returns the installed
// path.
func (d *Downloader) Install(ctx context.Context, platform Platform) (string, error) {
	versions, err := d.Versions.GetVersions(ctx)
	if err != nil {
		return "", err
	}
	a, err := d.resolve(platform, versions)
	if err != nil {
		return "", err
	}

	zerolog.Ctx(ctx).Debug().
		Str("platform", string(platform)).
		Str("version", a.version).
		Str("output", a.output).
		Msg("downloading Expo Go")

	err = d.Download.Download(ctx, download.Spec{
		URL:            a.url,
		OutputPath:     a.output,
		CacheDirectory: CacheNamespace,
		Extract:        a.extract,
		OnProgress:     d.OnProgress,
	})
	if err != nil {
		return "", err
	}
	return a.output, nil
}

func (d *Downloader) resolve(platform Platform, v *api.Versions) (*artifact, error) {
	switch platform {
	case IOS:
		if v.IOSURL == "" {
			return nil, missingURL(platform)
		}
		base := urlBase(v.IOSURL)
		name := strings.TrimSuffix(base, path.Ext(base)) + ".app"
		return &artifact{
			url:     v.IOSURL,
			version: v.IOSVersion,
			output:  filepath.Join(d.Home, "ios-simulator-app-cache", name),
			extract: true,
		}, nil
	case Android:
		if v.AndroidURL == "" {
			return nil, missingURL(platform)
		}
		return &artifact{
			url:     v.AndroidURL,
			version: v.AndroidVersion,
			output:  filepath.Join(d.Home, "android-apk-cache", urlBase(v.AndroidURL)),
		}, nil
	default:
		return nil, &api.CommandError{
			Code:    "BAD_ARGS",
			Message: fmt.Sprintf("Unsupported platform %q, expected ios or android.", platform),
		}
	}
}

func missingURL(platform Platform) error {
	return &api.CommandError{
		Code:    "NO_CLIENT",
		Message: fmt.Sprintf("No Expo Go build is available for %s.", platform),
	}
}

// urlBase returns the last path segment of rawURL, ignoring any query.
func urlBase(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	return path.Base(rawURL)
}
