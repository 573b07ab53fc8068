package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	entryExt = ".json"
	tempExt  = ".tmp"
)

// DiskCache persists inference responses as one JSON file per key, sharded
// into subdirectories by the last two characters of the key
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewDiskCache creates a new disk cache rooted at dir
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now}
}

type diskEntry struct {
	Value   []byte    `json:"value"`
	Expires time.Time `json:"expires"`
}

// Get returns a live entry. Expired entries are removed on read.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)
	entry, err := readEntry(path)
	if err != nil {
		return nil, false
	}
	if !c.now().Before(entry.Expires) {
		_ = os.Remove(path)
		return nil, false
	}
	return entry.Value, true
}

// Set writes an entry with the given TTL (0 uses the default TTL). The file
// is written under a temporary name and renamed into place.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(diskEntry{Value: value, Expires: c.now().Add(ttl)})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	path := c.path(key)
	shard := filepath.Dir(path)
	if err := os.MkdirAll(shard, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(shard, "entry-*"+tempExt)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// Delete removes an entry. Missing entries are not an error.
func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

// Clear removes the whole cache directory
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Prune removes expired or unreadable entries and leftover temporary files,
// returning how many files were removed and how many live entries remain
func (c *DiskCache) Prune() (removed, kept int, err error) {
	now := c.now()
	walkErr := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		switch filepath.Ext(path) {
		case tempExt:
		case entryExt:
			if entry, err := readEntry(path); err == nil && now.Before(entry.Expires) {
				kept++
				return nil
			}
		default:
			return nil
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	if walkErr != nil {
		return removed, kept, fmt.Errorf("prune %s: %w", c.dir, walkErr)
	}
	return removed, kept, nil
}

func (c *DiskCache) path(key string) string {
	shard := "00"
	if len(key) >= 2 {
		shard = strings.ToLower(key[len(key)-2:])
	}
	return filepath.Join(c.dir, shard, key+entryExt)
}

func readEntry(path string) (diskEntry, error) {
	var entry diskEntry
	data, err := os.ReadFile(path)
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, err
	}
	return entry, nil
}
