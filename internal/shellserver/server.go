// Package shellserver serves the web shell locally through the offline asset
// cache, so the shell keeps loading when the origin is unreachable.
package shellserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/kingrea/invoicepro/internal/assetcache"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// ErrNoOrigin is returned by Start when no shell origin is configured.
var ErrNoOrigin = errors.New("shellserver: shell origin not configured")

// Logger receives server activity.
type Logger interface {
	Printf(format string, args ...any)
}

// Server proxies the shell origin through an asset cache.
type Server struct {
	settings  Settings
	logger    Logger
	transport http.RoundTripper
	storage   *assetcache.Storage

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	cache     *assetcache.Cache
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTransport sets the network transport used to reach the origin.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Server) {
		if rt != nil {
			s.transport = rt
		}
	}
}

// WithStorage sets the cache storage, e.g. one holding an older version.
func WithStorage(st *assetcache.Storage) Option {
	return func(s *Server) {
		if st != nil {
			s.storage = st
		}
	}
}

// NewServer prepares a shell server using the provided settings.
func NewServer(settings Settings, opts ...Option) *Server {
	s := &Server{
		settings:  settings,
		logger:    nopLogger{},
		transport: http.DefaultTransport,
		storage:   assetcache.NewStorage(),
		status:    StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start installs and activates the asset cache, binds the TCP listener and
// begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("shellserver: server is nil")
	}
	if s.settings.Origin == "" {
		return ErrNoOrigin
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("shellserver: server already started")
	}
	origin, err := url.Parse(s.settings.Origin)
	if err != nil {
		return fmt.Errorf("shellserver: parse origin: %w", err)
	}
	cache, err := assetcache.New(s.settings.Origin,
		assetcache.WithVersion(s.settings.CacheVersion),
		assetcache.WithManifest(s.settings.Manifest),
		assetcache.WithStorage(s.storage),
		assetcache.WithTransport(s.transport),
		assetcache.WithLogger(s.logger))
	if err != nil {
		return err
	}
	installCtx, cancel := context.WithTimeout(ctx, s.settings.InstallTimeout)
	defer cancel()
	if err := cache.Install(installCtx); err != nil {
		return fmt.Errorf("shellserver: install shell assets: %w", err)
	}
	if err := cache.Activate(ctx); err != nil {
		return fmt.Errorf("shellserver: activate cache: %w", err)
	}

	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("shellserver: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.cache = cache
	s.startTime = time.Now()

	proxy := httputil.NewSingleHostReverseProxy(origin)
	proxy.Transport = cache
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.Host = origin.Host
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.logger.Printf("shellserver: %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "origin unreachable and not cached"})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/", proxy)
	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("shellserver: serve error: %v", err)
		}
	}()
	s.logger.Printf("shellserver: serving %s on %s", s.settings.Origin, listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL (scheme + host:port) for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

type healthResponse struct {
	Status        string `json:"status"`
	CacheVersion  string `json:"cache_version"`
	CacheActive   bool   `json:"cache_active"`
	CachedAssets  int    `json:"cached_assets"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodHead))
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	s.mu.RLock()
	cache := s.cache
	started := s.startTime
	status := s.status
	s.mu.RUnlock()
	resp := healthResponse{Status: string(status), CacheVersion: s.settings.CacheVersion}
	if cache != nil {
		resp.CacheActive = cache.Active()
		resp.CachedAssets = cache.Storage().Len(cache.Version())
	}
	if !started.IsZero() {
		resp.UptimeSeconds = int64(time.Since(started).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
