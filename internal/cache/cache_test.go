package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/entail/internal/model"
)

func TestCacheKey(t *testing.T) {
	a := CacheKey("rerank", "prompt", "context")

	assert.Equal(t, a, CacheKey("rerank", "prompt", "context"))
	assert.NotEqual(t, a, CacheKey("entailment", "prompt", "context"))
	assert.NotEqual(t, CacheKey("k", "ab", "c"), CacheKey("k", "a", "bc"))
}

func TestMemoryCache_TTL(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	require.NoError(t, c.Set("short", []byte("v"), 20*time.Millisecond))
	require.NoError(t, c.Set("default", []byte("v"), 0))

	_, ok := c.Get("short")
	assert.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	_, ok = c.Get("short")
	assert.False(t, ok, "entry should expire after its TTL")
	_, ok = c.Get("default")
	assert.True(t, ok)
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)

	require.NoError(t, c.Set("key", []byte("payload"), 0))
	val, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), val)

	require.NoError(t, c.Set("stale", []byte("old"), time.Nanosecond))
	time.Sleep(time.Millisecond)
	_, ok = c.Get("stale")
	assert.False(t, ok)

	require.NoError(t, c.Delete("key"))
	require.NoError(t, c.Delete("key"), "deleting a missing entry is not an error")
}

func TestDiskCache_Prune(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	require.NoError(t, c.Set(CacheKey("rerank", "a", "m"), []byte("1"), time.Minute))
	require.NoError(t, c.Set(CacheKey("rerank", "b", "m"), []byte("2"), 2*time.Hour))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entry-123.tmp"), []byte("torn"), 0o644))

	clock = clock.Add(time.Hour)
	removed, kept, err := c.Prune()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, kept)

	_, ok := c.Get(CacheKey("rerank", "b", "m"))
	assert.True(t, ok)
}

func TestDiskCache_PruneMissingDir(t *testing.T) {
	c := NewDiskCache(filepath.Join(t.TempDir(), "absent"), time.Hour)
	removed, kept, err := c.Prune()
	require.NoError(t, err)
	assert.Zero(t, removed+kept)
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()

	first := NewLayeredCache(time.Hour, dir, time.Hour)
	require.NoError(t, first.Set("key", []byte("value"), 0))

	// A fresh process sees the entry through the disk layer
	second := NewLayeredCache(time.Hour, dir, time.Hour)
	val, ok := second.Get("key")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), val)

	mem, ok := second.memory.Get("key")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), mem)
}

func TestNew(t *testing.T) {
	assert.Nil(t, New(model.CacheConfig{Enabled: false}))

	_, isMemory := New(model.CacheConfig{Enabled: true, TTL: time.Minute}).(*MemoryCache)
	assert.True(t, isMemory)

	_, isLayered := New(model.CacheConfig{Enabled: true, Dir: t.TempDir()}).(*LayeredCache)
	assert.True(t, isLayered)
}
