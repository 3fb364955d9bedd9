package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromDefaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := LoadFrom(map[string]string{"EXPO_HOME": home})
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	if cfg.Home != home {
		t.Errorf("Expected Home %q, got %q", home, cfg.Home)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %s", cfg.HTTPTimeout)
	}
	if !cfg.CacheEnabled() {
		t.Error("Cache should be enabled by default")
	}
	if got := cfg.APIBaseURL(); got != "https://api.expo.dev" {
		t.Errorf("Expected production API, got %s", got)
	}
	if got := cfg.CacheDir("versions-cache"); got != filepath.Join(home, "versions-cache") {
		t.Errorf("Unexpected cache dir %s", got)
	}
	if got := cfg.StatePath(); got != filepath.Join(home, "state.json") {
		t.Errorf("Unexpected state path %s", got)
	}
}

func TestLoadDefaultHome(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if filepath.Base(cfg.Home) != ".expo" {
		t.Errorf("Expected home to end in .expo, got %s", cfg.Home)
	}
}

func TestCacheSwitches(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want bool
	}{
		{"beta disables cache", map[string]string{"EXPO_BETA": "1"}, false},
		{"no cache disables cache", map[string]string{"EXPO_NO_CACHE": "true"}, false},
		{"explicit false keeps cache", map[string]string{"EXPO_NO_CACHE": "false"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.vars["EXPO_HOME"] = t.TempDir()
			cfg, err := LoadFrom(tt.vars)
			if err != nil {
				t.Fatalf("LoadFrom() failed: %v", err)
			}
			if cfg.CacheEnabled() != tt.want {
				t.Errorf("CacheEnabled() = %v, want %v", cfg.CacheEnabled(), tt.want)
			}
		})
	}
}

func TestAPIBaseURL(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{}, "https://api.expo.dev"},
		{Config{Staging: true}, "https://staging-api.expo.dev"},
		{Config{Local: true}, "http://127.0.0.1:3000"},
		{Config{Staging: true, APIURL: "http://localhost:8080/"}, "http://localhost:8080"},
	}

	for _, tt := range tests {
		if got := tt.cfg.APIBaseURL(); got != tt.want {
			t.Errorf("APIBaseURL() = %s, want %s", got, tt.want)
		}
	}
}

func TestLoadInvalid(t *testing.T) {
	home := t.TempDir()

	if _, err := LoadFrom(map[string]string{"EXPO_HOME": home, "EXPO_HTTP_TIMEOUT": "soon"}); err == nil {
		t.Error("Expected error for unparsable EXPO_HTTP_TIMEOUT")
	}
	if _, err := LoadFrom(map[string]string{"EXPO_HOME": home, "EXPO_HTTP_TIMEOUT": "0s"}); err == nil {
		t.Error("Expected error for zero EXPO_HTTP_TIMEOUT")
	}
	if _, err := LoadFrom(map[string]string{"EXPO_HOME": home, "EXPO_BETA": "maybe"}); err == nil {
		t.Error("Expected error for invalid EXPO_BETA")
	}
	if _, err := LoadFrom(map[string]string{"EXPO_HOME": home, "EXPO_LOCAL": "1", "EXPO_STAGING": "1"}); err == nil {
		t.Error("Expected error when both EXPO_LOCAL and EXPO_STAGING are set")
	}
}

func TestLoadFromProcessEnvironment(t *testing.T) {
	t.Setenv("EXPO_HOME", t.TempDir())
	t.Setenv("EXPO_TOKEN", "env-token")
	t.Setenv("EXPO_DEBUG", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Token != "env-token" {
		t.Errorf("Expected token from environment, got %q", cfg.Token)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
}
