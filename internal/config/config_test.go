package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/invoicepro/internal/assetcache"
)

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.Project.Store.Backend != BackendFile {
		t.Fatalf("expected file backend, got %q", c.Project.Store.Backend)
	}
	if c.Project.Shell.CacheVersion != assetcache.DefaultVersion {
		t.Fatalf("cache version = %q", c.Project.Shell.CacheVersion)
	}
	if len(c.Project.Shell.Manifest) != len(assetcache.DefaultManifest) {
		t.Fatalf("manifest = %v", c.Project.Shell.Manifest)
	}
	if got, want := c.ExportDir(), filepath.Join(projectDir, Dir, "exports"); got != want {
		t.Fatalf("ExportDir = %s, want %s", got, want)
	}
}

func TestInitDirWritesDefaultConfigThatParses(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("InitDir: %v", err)
	}
	for _, sub := range []string{"state", "logs", "exports", "config.yaml"} {
		if _, err := os.Stat(filepath.Join(projectDir, Dir, sub)); err != nil {
			t.Fatalf("expected %s to exist: %v", sub, err)
		}
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if c.Company().Name != "RIZWAN ENGINEERING WORKS" {
		t.Fatalf("company name = %q", c.Company().Name)
	}
	if c.Project.Store.Timeout != 5*time.Second {
		t.Fatalf("store timeout = %s", c.Project.Store.Timeout)
	}
}

func TestLoadProjectConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	appDir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
company:
  name: ACME
store:
  backend: Memory
  timeout: 250ms
export:
  dir: /tmp/invoices
shell:
  port: 9100
  origin: https://example.com/app/
  cache_version: invoice-pro-cache-v3
  manifest:
    - index.html
    - /index.html
    - /manifest.json
`)
	if err := os.WriteFile(filepath.Join(appDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Project.Store.Backend != BackendMemory {
		t.Fatalf("backend = %q", c.Project.Store.Backend)
	}
	if c.Project.Store.Timeout != 250*time.Millisecond {
		t.Fatalf("timeout = %s", c.Project.Store.Timeout)
	}
	if c.ExportDir() != "/tmp/invoices" {
		t.Fatalf("ExportDir = %s", c.ExportDir())
	}
	if c.Project.Shell.Origin != "https://example.com/app" {
		t.Fatalf("origin not normalized: %s", c.Project.Shell.Origin)
	}
	if got := strings.Join(c.Project.Shell.Manifest, ","); got != "/index.html,/manifest.json" {
		t.Fatalf("manifest = %s", got)
	}
	if c.Project.Shell.Host != defaultShellHost {
		t.Fatalf("host default not applied: %q", c.Project.Shell.Host)
	}
}

func TestNewConfigValidation(t *testing.T) {
	projectDir := t.TempDir()
	appDir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
store:
  backend: redis
`)
	if err := os.WriteFile(filepath.Join(appDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewConfig(projectDir); err == nil {
		t.Fatalf("expected validation error but got none")
	}
	t.Setenv("INVOICEPRO_REDIS_ADDR", "localhost:6379")
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("env override should satisfy validation: %v", err)
	}
	if c.Project.Store.Redis.Addr != "localhost:6379" {
		t.Fatalf("redis addr = %q", c.Project.Store.Redis.Addr)
	}
}

func TestSetShellOriginPersists(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetShellOrigin("https://shell.example.com"); err != nil {
		t.Fatalf("SetShellOrigin: %v", err)
	}
	reloaded, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Project.Shell.Origin != "https://shell.example.com" {
		t.Fatalf("origin = %q", reloaded.Project.Shell.Origin)
	}
	if err := c.SetShellOrigin(" "); err == nil {
		t.Fatalf("expected error for blank origin")
	}
}
