// Package cache keeps upstream responses on disk so repeated refreshes can
// revalidate instead of re-downloading.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/everstacklabs/modelprice/internal/fsutil"
)

// entrySuffix marks cache files, so Prune never touches anything else in dir.
const entrySuffix = ".entry"

// Entry represents a cached HTTP response.
type Entry struct {
	Body       []byte    `json:"body"`
	ETag       string    `json:"etag,omitempty"`
	LastMod    string    `json:"last_modified,omitempty"`
	StatusCode int       `json:"status_code"`
	CachedAt   time.Time `json:"cached_at"`
}

// FileCache stores one JSON file per key. Entries older than ttl are stale
// but still served to callers for conditional requests.
type FileCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// New creates the cache directory if needed.
func New(dir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &FileCache{dir: dir, ttl: ttl, now: time.Now}, nil
}

// Get returns the entry for key and whether it is still fresh. A stale
// entry is returned too, for its ETag and Last-Modified validators.
// Unreadable entries are discarded.
func (c *FileCache) Get(key string) (*Entry, bool) {
	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Warn("discarding corrupt cache entry", "path", path, "error", err)
		_ = os.Remove(path)
		return nil, false
	}
	return &entry, c.now().Sub(entry.CachedAt) <= c.ttl
}

// Set stamps entry with the current time and stores it under key.
func (c *FileCache) Set(key string, entry *Entry) error {
	entry.CachedAt = c.now()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	if err := fsutil.WriteFileAtomic(c.path(key), data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Delete removes a cached entry. Deleting a missing entry is not an error.
func (c *FileCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Prune removes entries cached longer than maxAge ago, along with any that
// cannot be decoded. It returns how many files were removed.
func (c *FileCache) Prune(maxAge time.Duration) (int, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("reading cache dir: %w", err)
	}

	cutoff := c.now().Add(-maxAge)
	removed := 0
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), entrySuffix) {
			continue
		}
		path := filepath.Join(c.dir, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry Entry
		if json.Unmarshal(data, &entry) == nil && entry.CachedAt.After(cutoff) {
			continue
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("pruned cache", "dir", c.dir, "removed", removed)
	}
	return removed, nil
}

func (c *FileCache) path(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(h[:])+entrySuffix)
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }
