package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/invoicepro/internal/config"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "invoices")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "invoices", `{"version":1,"invoices":[]}`))
	got, err := kv.Get(ctx, "invoices")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1,"invoices":[]}`, got)

	require.NoError(t, kv.Set(ctx, "invoices", "second"))
	got, err = kv.Get(ctx, "invoices")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	assert.Error(t, kv.Set(ctx, " ", "x"))
	_, err = kv.Get(ctx, "")
	assert.Error(t, err)
}

func TestFileKV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	kv, err := NewFileKV(dir)
	require.NoError(t, err)
	exerciseKV(t, kv)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "invoices.json", entries[0].Name())
	assert.NoError(t, kv.Close())
}

func TestFileKVSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "__etc_passwd.json"), kv.Path("../etc/passwd"))
}

func TestFileKVHonorsCancelledContext(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, kv.Set(ctx, "invoices", "x"), context.Canceled)
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	exerciseKV(t, kv)
	assert.Equal(t, 2, kv.Writes())
}

func TestMemoryKVQuota(t *testing.T) {
	kv := NewMemoryKV(WithQuota(4))
	require.NoError(t, kv.Set(context.Background(), "k", "1234"))
	assert.ErrorIs(t, kv.Set(context.Background(), "k", "12345"), ErrQuotaExceeded)
	got, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "1234", got, "a rejected write must leave the old value")
}

func TestOpenSelectsBackend(t *testing.T) {
	projectDir := t.TempDir()
	cfg, err := config.NewConfig(projectDir)
	require.NoError(t, err)

	kv, err := Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileKV{}, kv)

	cfg.Project.Store.Backend = config.BackendMemory
	kv, err = Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryKV{}, kv)

	cfg.Project.Store.Backend = "etcd"
	_, err = Open(cfg)
	assert.Error(t, err)

	_, err = Open(nil)
	assert.Error(t, err)
}

func TestRedisKV(t *testing.T) {
	addr := os.Getenv("INVOICEPRO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("INVOICEPRO_TEST_REDIS_ADDR not set")
	}
	kv, err := NewRedisKV(RedisOptions{
		Addr:    addr,
		Prefix:  "invoicepro-test:" + time.Now().Format("150405.000000") + ":",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	exerciseKV(t, kv)
}

func TestRedisKVRequiresAddress(t *testing.T) {
	_, err := NewRedisKV(RedisOptions{})
	assert.Error(t, err)
}
