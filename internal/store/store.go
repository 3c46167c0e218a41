// internal/store/store.go
//
// The key-value contract the persistence layer writes through, plus the
// backends selectable from .invoicepro/config.yaml.

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/invoicepro/internal/config"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("store: key not found")

// DefaultTimeout bounds a single Get or Set when the config omits one.
const DefaultTimeout = 5 * time.Second

// KV is a small synchronous key-value store. Implementations must return
// within the context deadline.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open builds the backend named in the store config.
func Open(cfg *config.Config) (KV, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store: config is required")
	}
	settings := cfg.Project.Store
	switch strings.ToLower(strings.TrimSpace(settings.Backend)) {
	case "", config.BackendFile:
		return NewFileKV(cfg.StateDir())
	case config.BackendMemory:
		return NewMemoryKV(), nil
	case config.BackendRedis:
		return NewRedisKV(RedisOptions{
			Addr:     settings.Redis.Addr,
			Password: settings.Redis.Password,
			DB:       settings.Redis.DB,
			Prefix:   settings.Redis.Prefix,
			Timeout:  settings.Timeout,
		})
	default:
		return nil, fmt.Errorf("store: unknown backend %q", settings.Backend)
	}
}

// WithTimeout derives a bounded context for one store call.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("store: key is required")
	}
	return nil
}
