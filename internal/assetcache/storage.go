package assetcache

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// Entry is a stored response. Bodies are kept whole so a hit can be replayed
// any number of times.
type Entry struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Response rebuilds an *http.Response for req from the entry.
func (e *Entry) Response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode)),
		StatusCode:    e.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.Header.Clone(),
		Body:          newBody(e.Body),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// Storage holds named namespaces of entries. Each namespace is a go-cache
// instance with no expiration; a put replaces the whole entry.
type Storage struct {
	mu         sync.RWMutex
	namespaces map[string]*gocache.Cache
}

// NewStorage returns empty storage.
func NewStorage() *Storage {
	return &Storage{namespaces: make(map[string]*gocache.Cache)}
}

func (s *Storage) open(name string) *gocache.Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[name]
	if !ok {
		ns = gocache.New(gocache.NoExpiration, 0)
		s.namespaces[name] = ns
	}
	return ns
}

// Put stores entry under key in namespace name, creating the namespace.
func (s *Storage) Put(name, key string, entry *Entry) {
	s.open(name).Set(key, entry, gocache.NoExpiration)
}

// PutAll stores every entry in one namespace.
func (s *Storage) PutAll(name string, entries map[string]*Entry) {
	ns := s.open(name)
	for key, entry := range entries {
		ns.Set(key, entry, gocache.NoExpiration)
	}
}

// Match looks key up in namespace name.
func (s *Storage) Match(name, key string) (*Entry, bool) {
	s.mu.RLock()
	ns, ok := s.namespaces[name]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	v, found := ns.Get(key)
	if !found {
		return nil, false
	}
	entry, ok := v.(*Entry)
	return entry, ok
}

// Namespaces lists namespace names in sorted order.
func (s *Storage) Namespaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of entries in namespace name.
func (s *Storage) Len(name string) int {
	s.mu.RLock()
	ns, ok := s.namespaces[name]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return ns.ItemCount()
}

// Delete drops namespace name and everything in it.
func (s *Storage) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[name]
	if !ok {
		return false
	}
	ns.Flush()
	delete(s.namespaces, name)
	return true
}
