// internal/config/config.go
//
// This package handles configuration and the .invoicepro directory structure.
// Every directory invoicepro runs in gets a .invoicepro/ folder holding the
// config file, the persisted invoices, logs, and exported PDFs.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/invoicepro/internal/assetcache"
)

const (
	// Dir is the name of the directory we create in each working directory
	Dir = ".invoicepro"

	// Store backends
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"

	defaultShellHost    = "127.0.0.1"
	defaultShellPort    = 8787
	defaultStoreTimeout = 5 * time.Second
)

const defaultProjectConfigYAML = `# invoicepro configuration
version: 1

# Printed at the top of every exported invoice.
company:
  name: RIZWAN ENGINEERING WORKS
  subtitle: All Kinds of Machineries Parts Manufacturers.
  address: Plot # L-3, 48/B, Korangi 2½ Karachi.
  contact: 0312-2528003
  email: kqureshi12@gmail.com

# Where invoices are kept. backend: file | memory | redis
store:
  backend: file
  timeout: 5s
  # redis:
  #   addr: localhost:6379
  #   db: 0
  #   prefix: "invoicepro:"

export:
  dir: exports

# Offline shell server (invoicepro serve).
shell:
  host: 127.0.0.1
  port: 8787
  # origin: https://example.github.io/invoice-pro
  cache_version: invoice-pro-cache-v2
  manifest:
    - /
    - /index.html
    - /index.tsx
    - /manifest.json
`

// CompanyConfig is the letterhead printed on exports.
type CompanyConfig struct {
	Name     string `yaml:"name"`
	Subtitle string `yaml:"subtitle"`
	Address  string `yaml:"address"`
	Contact  string `yaml:"contact"`
	Email    string `yaml:"email"`
}

// RedisConfig holds connection details for the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// StoreConfig selects and tunes the key-value backend.
type StoreConfig struct {
	Backend string        `yaml:"backend"`
	Timeout time.Duration `yaml:"timeout"`
	Redis   RedisConfig   `yaml:"redis,omitempty"`
}

// ExportConfig controls where PDFs land.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// ShellConfig configures the offline shell server.
type ShellConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	Origin       string   `yaml:"origin,omitempty"`
	CacheVersion string   `yaml:"cache_version"`
	Manifest     []string `yaml:"manifest"`
}

// ProjectConfig models .invoicepro/config.yaml.
type ProjectConfig struct {
	Version int           `yaml:"version"`
	Company CompanyConfig `yaml:"company"`
	Store   StoreConfig   `yaml:"store"`
	Export  ExportConfig  `yaml:"export"`
	Shell   ShellConfig   `yaml:"shell"`
}

// Config holds the runtime configuration.
type Config struct {
	// ProjectDir is the directory where the user ran `invoicepro` from
	ProjectDir string

	// AppDir is ProjectDir/.invoicepro
	AppDir string

	Project ProjectConfig
}

// InitDir creates the .invoicepro directory structure in the given directory.
//
// Structure created:
// .invoicepro/
// ├── config.yaml
// ├── state/    <- persisted invoices (file backend)
// ├── logs/     <- journey.log and invoicepro.log
// └── exports/  <- generated PDFs
func InitDir(projectDir string) error {
	appDir := filepath.Join(projectDir, Dir)
	dirs := []string{
		filepath.Join(appDir, "state"),
		filepath.Join(appDir, "logs"),
		filepath.Join(appDir, "exports"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(appDir, "config.yaml"))
}

// NewConfig creates a Config populated with project settings. A .env file in
// the project directory is loaded first so its values can override the yaml.
func NewConfig(projectDir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(projectDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	cfg := &Config{
		ProjectDir: projectDir,
		AppDir:     filepath.Join(projectDir, Dir),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.Project.applyEnvOverrides()
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.AppDir, "logs")
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.AppDir, "state")
}

// ExportDir returns the resolved export directory.
func (c *Config) ExportDir() string {
	dir := strings.TrimSpace(c.Project.Export.Dir)
	if dir == "" {
		dir = "exports"
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(c.AppDir, dir)
}

// ProjectConfigPath returns the on-disk location for the config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.AppDir, "config.yaml")
}

// Company returns the letterhead details.
func (c *Config) Company() CompanyConfig {
	return c.Project.Company
}

// SetShellOrigin updates the origin the shell server proxies and persists it.
func (c *Config) SetShellOrigin(origin string) error {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return fmt.Errorf("config: origin is required")
	}
	c.Project.Shell.Origin = origin
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Store: StoreConfig{
			Backend: BackendFile,
			Timeout: defaultStoreTimeout,
		},
		Export: ExportConfig{Dir: "exports"},
		Shell: ShellConfig{
			Host:         defaultShellHost,
			Port:         defaultShellPort,
			CacheVersion: assetcache.DefaultVersion,
			Manifest:     append([]string(nil), assetcache.DefaultManifest...),
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Store.Timeout <= 0 {
		pc.Store.Timeout = defaultStoreTimeout
	}
	if strings.TrimSpace(pc.Shell.Host) == "" {
		pc.Shell.Host = defaultShellHost
	}
	if pc.Shell.Port == 0 {
		pc.Shell.Port = defaultShellPort
	}
	if strings.TrimSpace(pc.Shell.CacheVersion) == "" {
		pc.Shell.CacheVersion = assetcache.DefaultVersion
	}
	if len(pc.Shell.Manifest) == 0 {
		pc.Shell.Manifest = append([]string(nil), assetcache.DefaultManifest...)
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Store.Backend = strings.ToLower(strings.TrimSpace(pc.Store.Backend))
	if pc.Store.Backend == "" {
		pc.Store.Backend = BackendFile
	}
	pc.Store.Redis.Addr = strings.TrimSpace(pc.Store.Redis.Addr)
	pc.Shell.Host = strings.TrimSpace(pc.Shell.Host)
	pc.Shell.Origin = strings.TrimRight(strings.TrimSpace(pc.Shell.Origin), "/")
	pc.Shell.CacheVersion = strings.TrimSpace(pc.Shell.CacheVersion)
	manifest := make([]string, 0, len(pc.Shell.Manifest))
	for _, asset := range pc.Shell.Manifest {
		asset = strings.TrimSpace(asset)
		if asset == "" {
			continue
		}
		if !strings.HasPrefix(asset, "/") {
			asset = "/" + asset
		}
		if !contains(manifest, asset) {
			manifest = append(manifest, asset)
		}
	}
	pc.Shell.Manifest = manifest
}

func (pc *ProjectConfig) applyEnvOverrides() {
	if backend := strings.TrimSpace(os.Getenv("INVOICEPRO_STORE_BACKEND")); backend != "" {
		pc.Store.Backend = strings.ToLower(backend)
	}
	if addr := strings.TrimSpace(os.Getenv("INVOICEPRO_REDIS_ADDR")); addr != "" {
		pc.Store.Redis.Addr = addr
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.Store.Backend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if pc.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("store.backend must be 'file', 'memory' or 'redis'")
	}
	if pc.Shell.Port < 0 || pc.Shell.Port > 65535 {
		return fmt.Errorf("shell.port must be between 0 and 65535")
	}
	if pc.Shell.CacheVersion == "" {
		return fmt.Errorf("shell.cache_version is required")
	}
	if pc.Shell.Origin != "" {
		u, err := url.Parse(pc.Shell.Origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("shell.origin must be an absolute URL")
		}
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.AppDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure app dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
