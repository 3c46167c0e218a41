package shellserver

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/invoicepro/internal/assetcache"
	"github.com/kingrea/invoicepro/internal/config"
)

const (
	// DefaultHost is the loopback interface used when no host override is provided.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the default TCP port for the shell server.
	DefaultPort = 8787
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 30 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
	// DefaultInstallTimeout bounds the manifest pre-fetch on start.
	DefaultInstallTimeout = 30 * time.Second
)

// Settings captures runtime configuration for the shell server.
type Settings struct {
	Host           string
	Port           int
	Origin         string
	CacheVersion   string
	Manifest       []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	InstallTimeout time.Duration
}

// SettingsFromConfig builds Settings from .invoicepro/config.yaml and
// environment overrides.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := Settings{
		Host:           DefaultHost,
		Port:           DefaultPort,
		CacheVersion:   assetcache.DefaultVersion,
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		IdleTimeout:    DefaultIdleTimeout,
		InstallTimeout: DefaultInstallTimeout,
	}
	if cfg != nil {
		raw := cfg.Project.Shell
		if host := strings.TrimSpace(raw.Host); host != "" {
			settings.Host = host
		}
		if isValidPort(raw.Port) {
			settings.Port = raw.Port
		}
		settings.Origin = raw.Origin
		if v := strings.TrimSpace(raw.CacheVersion); v != "" {
			settings.CacheVersion = v
		}
		settings.Manifest = append([]string(nil), raw.Manifest...)
	}
	settings.applyEnvOverrides()
	settings.normalize()
	return settings
}

func (s *Settings) applyEnvOverrides() {
	if host := strings.TrimSpace(os.Getenv("INVOICEPRO_SHELL_HOST")); host != "" {
		s.Host = host
	}
	if port := strings.TrimSpace(os.Getenv("INVOICEPRO_SHELL_PORT")); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && isValidPort(parsed) {
			s.Port = parsed
		}
	}
	if origin := strings.TrimSpace(os.Getenv("INVOICEPRO_SHELL_ORIGIN")); origin != "" {
		s.Origin = origin
	}
}

func (s *Settings) normalize() {
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port < 0 || s.Port > 65535 {
		s.Port = DefaultPort
	}
	s.Origin = strings.TrimRight(strings.TrimSpace(s.Origin), "/")
	if s.CacheVersion == "" {
		s.CacheVersion = assetcache.DefaultVersion
	}
	if len(s.Manifest) == 0 {
		s.Manifest = append([]string(nil), assetcache.DefaultManifest...)
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.InstallTimeout <= 0 {
		s.InstallTimeout = DefaultInstallTimeout
	}
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}
