package store

import (
	"context"
	"errors"
	"sync"
)

// ErrQuotaExceeded is what MemoryKV returns once a write limit is hit.
var ErrQuotaExceeded = errors.New("store: quota exceeded")

// MemoryKV is an in-process store. It is used for tests and for the
// "memory" backend, which keeps nothing across runs.
type MemoryKV struct {
	mu       sync.Mutex
	values   map[string]string
	maxBytes int
	writes   int
}

// MemoryOption customizes a MemoryKV.
type MemoryOption func(*MemoryKV)

// WithQuota rejects any value longer than maxBytes, like a full browser store.
func WithQuota(maxBytes int) MemoryOption {
	return func(m *MemoryKV) {
		m.maxBytes = maxBytes
	}
}

// NewMemoryKV returns an empty store.
func NewMemoryKV(opts ...MemoryOption) *MemoryKV {
	m := &MemoryKV{values: map[string]string{}}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Get returns the stored value or ErrNotFound.
func (m *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores value under key.
func (m *MemoryKV) Set(ctx context.Context, key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxBytes > 0 && len(value) > m.maxBytes {
		return ErrQuotaExceeded
	}
	m.values[key] = value
	m.writes++
	return nil
}

// Writes reports how many successful Set calls happened.
func (m *MemoryKV) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Close is a no-op.
func (m *MemoryKV) Close() error { return nil }
