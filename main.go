package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/appfetch/internal/api"
	"github.com/briangreenhill/appfetch/internal/config"
	"github.com/briangreenhill/appfetch/internal/download"
	"github.com/briangreenhill/appfetch/internal/expogo"
	"github.com/briangreenhill/appfetch/internal/session"
	"github.com/briangreenhill/appfetch/pkg/fetch"
)

const version = "v0.1.0"

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load configuration")
	}
	if cfg.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx := logger.WithContext(context.Background())
	if err := runCLI(ctx, cfg, os.Args[1:], os.Stdout); err != nil {
		var cmdErr *api.CommandError
		if errors.As(err, &cmdErr) {
			logger.Fatal().Str("code", cmdErr.Code).Msg(cmdErr.Message)
		}
		logger.Fatal().Err(err).Msg("command failed")
	}
}

func runCLI(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return nil
	}

	switch args[0] {
	case "help", "--help", "-h":
		printUsage(out)
		return nil
	case "version", "--version", "-v":
		fmt.Fprintf(out, "appfetch %s\n", version)
		return nil
	}

	store := session.New(cfg.StatePath(), cfg.Token)
	client := api.NewClient(cfg, store)

	switch args[0] {
	case "versions":
		return runVersions(ctx, client, out)
	case "fetch":
		if len(args) != 2 {
			return usageError("fetch <path>")
		}
		return runFetch(ctx, client, args[1], out)
	case "download":
		return runDownload(ctx, client, args[1:], out)
	case "expo-go":
		if len(args) != 2 {
			return usageError("expo-go <ios|android>")
		}
		return runExpoGo(ctx, client, expogo.Platform(args[1]), out)
	case "logout":
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Logged out")
		return nil
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: appfetch <command> [args]")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  versions                         Show the latest SDK and Expo Go versions")
	fmt.Fprintln(out, "  fetch <path>                     GET an API path and print the body")
	fmt.Fprintln(out, "  download <url> <output> [--extract]  Download a file, optionally unpacking a tarball")
	fmt.Fprintln(out, "  expo-go <ios|android>            Install the Expo Go client build")
	fmt.Fprintln(out, "  logout                           Remove the saved session")
	fmt.Fprintln(out, "  help, version")
	fmt.Fprintln(out, "Environment:")
	fmt.Fprintln(out, "  EXPO_TOKEN         Access token sent as a bearer header")
	fmt.Fprintln(out, "  EXPO_HOME          State and cache directory (default ~/.expo)")
	fmt.Fprintln(out, "  EXPO_BETA          Include beta SDKs and bypass the cache")
	fmt.Fprintln(out, "  EXPO_NO_CACHE      Bypass the disk cache")
	fmt.Fprintln(out, "  EXPO_STAGING, EXPO_LOCAL, EXPO_API_URL  Select the API host")
	fmt.Fprintln(out, "  EXPO_HTTP_TIMEOUT  Per-request timeout (default 30s)")
	fmt.Fprintln(out, "  EXPO_DEBUG         Verbose logging")
}

func usageError(usage string) error {
	return &api.CommandError{Code: "BAD_ARGS", Message: "usage: appfetch " + usage}
}


func runVersions(ctx context.Context, client *api.Client, out io.Writer) error {
	v, err := client.GetVersions(ctx)
	if err != nil {
		return err
	}
	released := api.FilterReleased(v.SDKVersions, client.Config().Beta)
	latest, err := api.LatestVersion(released)
	if err != nil {
		return err
	}

	sdks := make([]string, 0, len(released))
	for k := range released {
		sdks = append(sdks, k)
	}
	sort.Strings(sdks)

	fmt.Fprintf(out, "Latest SDK: %s\n", latest)
	fmt.Fprintf(out, "Released SDKs: %s\n", strings.Join(sdks, ", "))
	fmt.Fprintf(out, "Expo Go iOS: %s\n", v.IOSVersion)
	fmt.Fprintf(out, "Expo Go Android: %s\n", v.AndroidVersion)
	return nil
}

func runFetch(ctx context.Context, client *api.Client, path string, out io.Writer) error {
	resp, err := client.Fetch(ctx, fetch.NewRequest("GET", path))
	if err != nil {
		return err
	}
	text, err := resp.Text()
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &api.CommandError{Code: "API", Message: fmt.Sprintf("Unexpected response from %s: %s.", resp.URL, resp.StatusText())}
	}
	fmt.Fprint(out, text)
	return nil
}

func runDownload(ctx context.Context, client *api.Client, args []string, out io.Writer) error {
	var positional []string
	extract := false
	for _, a := range args {
		if a == "--extract" {
			extract = true
			continue
		}
		positional = append(positional, a)
	}
	if len(positional) != 2 {
		return usageError("download <url> <output> [--extract]")
	}
	if !fetch.ValidateURL(positional[0], []string{"http", "https"}, true) {
		return &api.CommandError{Code: "BAD_ARGS", Message: fmt.Sprintf("Invalid URL: %s", positional[0])}
	}

	d := download.New(client.Transport(), nil)
	err := d.Download(ctx, download.Spec{
		URL:        positional[0],
		OutputPath: positional[1],
		Extract:    extract,
		OnProgress: progressLogger(ctx, positional[0]),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Downloaded %s\n", positional[1])
	return nil
}

func runExpoGo(ctx context.Context, client *api.Client, platform expogo.Platform, out io.Writer) error {
	d := &expogo.Downloader{
		Versions:   client,
		Download:   download.New(client.Transport(), client.CachedTransport),
		Home:       client.Config().Home,
		OnProgress: progressLogger(ctx, "Expo Go"),
	}
	path, err := d.Install(ctx, platform)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Installed Expo Go at %s\n", path)
	return nil
}

// progressLogger logs each time a download crosses another tenth of its
// total. Downloads of unknown size are not reported.
func progressLogger(ctx context.Context, label string) fetch.ProgressFunc {
	log := zerolog.Ctx(ctx)
	lastStep := -1
	return func(e fetch.ProgressEvent) {
		if !e.Known() {
			return
		}
		step := int(math.Floor(e.Progress * 10))
		if step <= lastStep {
			return
		}
		lastStep = step
		log.Info().Str("download", label).Int64("loaded", e.Loaded).Int64("total", e.Total).
			Msgf("%d%%", step*10)
	}
}
