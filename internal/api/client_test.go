package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/appfetch/internal/config"
	"github.com/briangreenhill/appfetch/pkg/fetch"
)

type mockAPI struct {
	srv          *httptest.Server
	versionCalls atomic.Int32
	status       atomic.Int32
}

func newMockAPI(t *testing.T) *mockAPI {
	t.Helper()
	fixture, err := os.ReadFile("testdata/versions-latest.json")
	require.NoError(t, err)

	m := &mockAPI{}
	m.status.Store(http.StatusOK)

	r := chi.NewRouter()
	r.Get("/v2/versions/latest", func(w http.ResponseWriter, r *http.Request) {
		m.versionCalls.Add(1)
		if status := int(m.status.Load()); status != http.StatusOK {
			http.Error(w, "something went wrong", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixture)
	})
	r.Get("/v2/auth/whoami", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" && r.Header.Get("Expo-Session") == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors":[{"code":"UNAUTHENTICATED","message":"Not logged in"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"username":"bacon"}}`))
	})

	m.srv = httptest.NewServer(r)
	t.Cleanup(m.srv.Close)
	return m
}

func testConfig(t *testing.T, srvURL string, extra map[string]string) *config.Config {
	t.Helper()
	vars := map[string]string{
		"EXPO_HOME":    t.TempDir(),
		"EXPO_API_URL": srvURL,
	}
	for k, v := range extra {
		vars[k] = v
	}
	cfg, err := config.LoadFrom(vars)
	require.NoError(t, err)
	return cfg
}

func TestClientBaseURL(t *testing.T) {
	cfg := testConfig(t, "https://api.example.com", nil)
	c := NewClient(cfg, nil)
	assert.Equal(t, "https://api.example.com/v2", c.BaseURL())
}

func TestFetchInjectsCredentials(t *testing.T) {
	m := newMockAPI(t)
	cfg := testConfig(t, m.srv.URL, nil)

	var out struct {
		Data struct {
			Username string `json:"username"`
		} `json:"data"`
	}
	c := NewClient(cfg, fetch.StaticCredentials{Secret: "my-secret-token"})
	require.NoError(t, GetJSON(context.Background(), c.Fetch, "/auth/whoami", &out))
	assert.Equal(t, "bacon", out.Data.Username)

	anon := NewClient(cfg, nil)
	err := GetJSON(context.Background(), anon.Fetch, "/auth/whoami", &out)
	var apiErr *fetch.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "UNAUTHENTICATED", apiErr.Code)
}

func TestGetVersionsUsesCache(t *testing.T) {
	m := newMockAPI(t)
	c := NewClient(testConfig(t, m.srv.URL, nil), nil)

	for i := 0; i < 2; i++ {
		v, err := c.GetVersions(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "2.23.2", v.IOSVersion)
		assert.Equal(t, "https://d1ahtucjixef4r.cloudfront.net/Exponent-2.23.2.apk", v.AndroidURL)
		assert.Len(t, v.SDKVersions, 4)
	}
	assert.Equal(t, int32(1), m.versionCalls.Load())

	_, err := os.Stat(c.Config().CacheDir("versions-cache"))
	assert.NoError(t, err)
}

func TestGetVersionsCacheSwitches(t *testing.T) {
	for _, flag := range []string{"EXPO_NO_CACHE", "EXPO_BETA"} {
		t.Run(flag, func(t *testing.T) {
			m := newMockAPI(t)
			c := NewClient(testConfig(t, m.srv.URL, map[string]string{flag: "1"}), nil)

			for i := 0; i < 2; i++ {
				_, err := c.GetVersions(context.Background())
				require.NoError(t, err)
			}
			assert.Equal(t, int32(2), m.versionCalls.Load())

			_, err := os.Stat(c.Config().CacheDir("versions-cache"))
			assert.True(t, os.IsNotExist(err), "no cache directory should be created")
		})
	}
}

func TestGetVersionsServerError(t *testing.T) {
	m := newMockAPI(t)
	m.status.Store(http.StatusInternalServerError)
	c := NewClient(testConfig(t, m.srv.URL, nil), nil)

	_, err := c.GetVersions(context.Background())
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "API", cmdErr.Code)
	assert.Equal(t, "Unexpected response when fetching version info from Expo servers: Internal Server Error.", cmdErr.Error())

	// Failures are not cached.
	m.status.Store(http.StatusOK)
	_, err = c.GetVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), m.versionCalls.Load())
}

func TestCachedTransportBypassesCredentials(t *testing.T) {
	var sawAuth atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			sawAuth.Store(true)
		}
		_, _ = w.Write([]byte("artifact"))
	}))
	defer srv.Close()

	c := NewClient(testConfig(t, "https://api.example.com", nil), fetch.StaticCredentials{Token: "tok"})
	fn, err := c.CachedTransport("expo-go", 0)
	require.NoError(t, err)

	resp, err := fn(context.Background(), fetch.NewRequest("GET", srv.URL+"/Exponent.apk"))
	require.NoError(t, err)
	text, err := resp.Text()
	require.NoError(t, err)
	assert.Equal(t, "artifact", text)
	assert.False(t, sawAuth.Load())
}
