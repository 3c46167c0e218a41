package shellserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kingrea/invoicepro/internal/assetcache"
	"github.com/kingrea/invoicepro/internal/config"
)

func TestSettingsFromConfigHonorsEnv(t *testing.T) {
	t.Setenv("INVOICEPRO_SHELL_PORT", "9001")
	t.Setenv("INVOICEPRO_SHELL_HOST", "0.0.0.0")
	t.Setenv("INVOICEPRO_SHELL_ORIGIN", "https://example.test/app/")
	cfg := &config.Config{}
	settings := SettingsFromConfig(cfg)
	if settings.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", settings.Port)
	}
	if settings.Host != "0.0.0.0" {
		t.Fatalf("expected host override, got %s", settings.Host)
	}
	if settings.Origin != "https://example.test/app" {
		t.Fatalf("expected trimmed origin, got %s", settings.Origin)
	}
	if settings.CacheVersion != assetcache.DefaultVersion || len(settings.Manifest) != 4 {
		t.Fatalf("expected cache defaults, got %+v", settings)
	}
}

func TestSettingsFromConfigReadsShellSection(t *testing.T) {
	t.Setenv("INVOICEPRO_SHELL_ORIGIN", "")
	cfg := &config.Config{}
	cfg.Project.Shell = config.ShellConfig{Host: "localhost", Port: 7000, Origin: "http://shell.local", CacheVersion: "v9", Manifest: []string{"/a.js"}}
	settings := SettingsFromConfig(cfg)
	if settings.Address() != "localhost:7000" || settings.Origin != "http://shell.local" {
		t.Fatalf("unexpected settings %+v", settings)
	}
	if settings.CacheVersion != "v9" || len(settings.Manifest) != 1 {
		t.Fatalf("unexpected cache settings %+v", settings)
	}
}

func TestStartRequiresOrigin(t *testing.T) {
	srv := NewServer(Settings{Host: "127.0.0.1"})
	if err := srv.Start(context.Background()); err != ErrNoOrigin {
		t.Fatalf("expected ErrNoOrigin, got %v", err)
	}
}

func testSettings(origin string) Settings {
	s := Settings{Host: "127.0.0.1", Port: 0, Origin: origin}
	s.normalize()
	s.Port = 0
	return s
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestServerServesShellOffline(t *testing.T) {
	var hits atomic.Int64
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, "asset "+r.URL.Path)
	}))
	t.Cleanup(origin.Close)

	srv := NewServer(testSettings(origin.URL))
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	if srv.Status() != StatusReady {
		t.Fatalf("expected ready, got %s", srv.Status())
	}
	if got := hits.Load(); got != 4 {
		t.Fatalf("expected 4 manifest fetches on install, got %d", got)
	}
	base := srv.BaseURL()

	status, body := get(t, base+"/health")
	if status != http.StatusOK {
		t.Fatalf("expected 200 health, got %d", status)
	}
	var health healthResponse
	if err := json.Unmarshal([]byte(body), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !health.CacheActive || health.CachedAssets != 4 || health.CacheVersion != assetcache.DefaultVersion {
		t.Fatalf("unexpected health %+v", health)
	}

	origin.Close()
	status, body = get(t, base+"/index.tsx")
	if status != http.StatusOK || body != "asset /index.tsx" {
		t.Fatalf("expected cached asset, got %d %q", status, body)
	}
	status, _ = get(t, base+"/not-cached")
	if status != http.StatusBadGateway {
		t.Fatalf("expected 502 for uncached asset offline, got %d", status)
	}
}

func TestShutdownDrains(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	t.Cleanup(origin.Close)
	srv := NewServer(testSettings(origin.URL))
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if srv.Status() != StatusDraining || srv.Addr() != "" {
		t.Fatalf("expected drained server, got %s at %q", srv.Status(), srv.Addr())
	}
}

func TestStartFailsWhenInstallFails(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/manifest.json" {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	t.Cleanup(origin.Close)
	storage := assetcache.NewStorage()
	storage.Put("invoice-pro-cache-v1", "GET "+origin.URL+"/", &assetcache.Entry{StatusCode: http.StatusOK, Body: []byte("old")})

	srv := NewServer(testSettings(origin.URL), WithStorage(storage))
	if err := srv.Start(context.Background()); err == nil {
		_ = srv.Shutdown(context.Background())
		t.Fatalf("expected install failure to fail start")
	}
	if srv.Addr() != "" {
		t.Fatalf("server must not listen after a failed install")
	}
	if names := storage.Namespaces(); len(names) != 1 || names[0] != "invoice-pro-cache-v1" {
		t.Fatalf("older namespace must survive, got %v", names)
	}
}
