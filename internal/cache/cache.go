// Package cache stores external inference responses for a bounded time.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ppiankov/entail/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey derives the key of an inference request from its kind, prompt and
// context. Fields are separated so that ("ab", "c") and ("a", "bc") differ.
func CacheKey(kind, prompt, context string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(context))
	return "entail-v1-" + hex.EncodeToString(h.Sum(nil))
}

// New builds the cache described by config: memory only, or memory backed by
// disk when a directory is set. It returns nil when caching is disabled.
func New(config model.CacheConfig) Cache {
	if !config.Enabled {
		return nil
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if config.Dir == "" {
		return NewMemoryCache(ttl, cleanupInterval(ttl))
	}
	return NewLayeredCache(ttl, config.Dir, ttl)
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < 10*time.Minute {
		return ttl
	}
	return 10 * time.Minute
}
