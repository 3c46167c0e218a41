// Package assetcache keeps the application shell available offline. It sits
// at the HTTP transport boundary: once installed and activated, GET requests
// are answered from a versioned namespace first and from the network second.
package assetcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultVersion is the namespace used when none is configured.
const DefaultVersion = "invoice-pro-cache-v2"

var (
	// ErrNotActive is returned by lookups made before Activate.
	ErrNotActive = errors.New("assetcache: worker not active")
	// ErrNotInstalled is returned by Activate before a successful Install.
	ErrNotInstalled = errors.New("assetcache: version not installed")
)

// DefaultManifest lists the shell assets fetched on install.
var DefaultManifest = []string{"/", "/index.html", "/index.tsx", "/manifest.json"}

// Logger receives cache activity.
type Logger interface {
	Printf(format string, args ...any)
}

// Cache is the cache-then-network worker.
type Cache struct {
	origin   *url.URL
	version  string
	manifest []string
	storage  *Storage
	next     http.RoundTripper
	logger   Logger

	installMu sync.Mutex
	installed atomic.Bool
	active    atomic.Bool
}

// Option customizes a Cache.
type Option func(*Cache)

// WithVersion sets the namespace name.
func WithVersion(version string) Option {
	return func(c *Cache) {
		if v := strings.TrimSpace(version); v != "" {
			c.version = v
		}
	}
}

// WithManifest sets the asset paths fetched on install.
func WithManifest(paths []string) Option {
	return func(c *Cache) {
		if len(paths) > 0 {
			c.manifest = append([]string(nil), paths...)
		}
	}
}

// WithStorage shares storage between workers, e.g. an old and a new version.
func WithStorage(s *Storage) Option {
	return func(c *Cache) {
		if s != nil {
			c.storage = s
		}
	}
}

// WithTransport sets the network transport. Defaults to http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Cache) {
		if rt != nil {
			c.next = rt
		}
	}
}

// WithLogger sets the activity logger.
func WithLogger(l Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a worker for the shell served at origin.
func New(origin string, opts ...Option) (*Cache, error) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return nil, fmt.Errorf("assetcache: parse origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("assetcache: origin %q must be an absolute URL", origin)
	}
	c := &Cache{
		origin:   u,
		version:  DefaultVersion,
		manifest: append([]string(nil), DefaultManifest...),
		storage:  NewStorage(),
		next:     http.DefaultTransport,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Version returns the namespace name.
func (c *Cache) Version() string { return c.version }

// Storage exposes the backing storage.
func (c *Cache) Storage() *Storage { return c.storage }

// Active reports whether requests are being intercepted.
func (c *Cache) Active() bool { return c.active.Load() }

// Install fetches every manifest asset concurrently. If any fetch fails the
// namespace is left untouched.
func (c *Cache) Install(ctx context.Context) error {
	c.installMu.Lock()
	defer c.installMu.Unlock()

	var mu sync.Mutex
	entries := make(map[string]*Entry, len(c.manifest))
	g, gctx := errgroup.WithContext(ctx)
	for _, path := range c.manifest {
		target := c.resolve(path)
		g.Go(func() error {
			req, err := http.NewRequestWithContext(gctx, http.MethodGet, target.String(), nil)
			if err != nil {
				return fmt.Errorf("assetcache: request %s: %w", target, err)
			}
			resp, err := c.next.RoundTrip(req)
			if err != nil {
				return fmt.Errorf("assetcache: fetch %s: %w", target, err)
			}
			entry, err := readEntry(resp)
			if err != nil {
				return fmt.Errorf("assetcache: read %s: %w", target, err)
			}
			if entry.StatusCode < 200 || entry.StatusCode > 299 {
				return fmt.Errorf("assetcache: fetch %s: status %d", target, entry.StatusCode)
			}
			mu.Lock()
			entries[cacheKey(req)] = entry
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Printf("assetcache: install %s failed: %v", c.version, err)
		return err
	}
	c.storage.PutAll(c.version, entries)
	c.installed.Store(true)
	c.logger.Printf("assetcache: installed %d assets into %s", len(entries), c.version)
	return nil
}

// Activate removes every namespace except the current one and starts
// intercepting requests. The version must have been installed.
func (c *Cache) Activate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.installed.Load() {
		return ErrNotInstalled
	}
	for _, name := range c.storage.Namespaces() {
		if name == c.version {
			continue
		}
		c.storage.Delete(name)
		c.logger.Printf("assetcache: deleted stale namespace %s", name)
	}
	c.active.Store(true)
	return nil
}

// Lookup returns the cached response for a GET of rawURL.
func (c *Cache) Lookup(rawURL string) (*Entry, bool, error) {
	if !c.Active() {
		return nil, false, ErrNotActive
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false, fmt.Errorf("assetcache: parse %q: %w", rawURL, err)
	}
	if !u.IsAbs() {
		u = c.resolve(rawURL)
	}
	entry, ok := c.storage.Match(c.version, keyFor(http.MethodGet, u))
	return entry, ok, nil
}

// RoundTrip implements http.RoundTripper.
func (c *Cache) RoundTrip(req *http.Request) (*http.Response, error) {
	if !c.Active() || req.Method != http.MethodGet {
		return c.next.RoundTrip(req)
	}
	key := cacheKey(req)
	if entry, ok := c.storage.Match(c.version, key); ok {
		return entry.Response(req), nil
	}
	resp, err := c.next.RoundTrip(req)
	if err != nil {
		c.logger.Printf("assetcache: fetching %s failed: %v", req.URL, err)
		return nil, err
	}
	if !c.complete(req, resp) {
		return resp, nil
	}
	entry, err := readEntry(resp)
	if err != nil {
		return nil, fmt.Errorf("assetcache: read %s: %w", req.URL, err)
	}
	c.storage.Put(c.version, key, entry)
	return entry.Response(req), nil
}

// complete reports whether resp is a full, readable response that may be
// stored. Cross-origin responses without CORS headers are opaque.
func (c *Cache) complete(req *http.Request, resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusPartialContent, http.StatusNotModified:
		return false
	}
	// A conditional request may be answered relative to the client's copy.
	if req.Header.Get("If-None-Match") != "" || req.Header.Get("If-Modified-Since") != "" {
		return false
	}
	if sameOrigin(c.origin, req.URL) {
		return true
	}
	return resp.Header.Get("Access-Control-Allow-Origin") != ""
}

// resolve maps a manifest path onto the origin. Absolute paths are taken
// relative to the origin's own path so a shell hosted under a prefix keeps it.
func (c *Cache) resolve(path string) *url.URL {
	ref, err := url.Parse(path)
	if err != nil {
		ref = &url.URL{Path: path}
	}
	if ref.IsAbs() {
		return ref
	}
	if strings.HasPrefix(ref.Path, "/") {
		ref.Path = strings.TrimRight(c.origin.Path, "/") + ref.Path
	}
	return c.origin.ResolveReference(ref)
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

func cacheKey(req *http.Request) string {
	return keyFor(req.Method, req.URL)
}

func keyFor(method string, u *url.URL) string {
	clean := *u
	clean.Fragment = ""
	clean.RawFragment = ""
	return method + " " + clean.String()
}

func readEntry(resp *http.Response) (*Entry, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Entry{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: body}, nil
}

func newBody(b []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b))
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
