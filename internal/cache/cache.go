// Package cache implements the two-tier response cache used for remote
// catalog lookups and downloaded images. Values live in an in-process map
// and in a content-addressed directory that survives restarts.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// Cache is safe for concurrent use.
type Cache struct {
	mem    *memoryTier
	disk   *diskTier
	policy Policy
	now    func() time.Time

	// expireMu lets disk writes run concurrently while an expiry holds
	// the tier exclusively.
	expireMu sync.RWMutex

	// diskCount approximates the number of files on disk; only maintained
	// under PolicyMaxEntries.
	diskCount atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithPolicy sets the eviction policy.
func WithPolicy(p Policy) Option {
	return func(c *Cache) {
		c.policy = p
	}
}

// Stats describes the cache contents.
type Stats struct {
	MemoryEntries int
	DiskEntries   int
	DiskBytes     int64
	Policy        Policy
	Dir           string
}

// DefaultDir returns the per-user cache location.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", errors.Join(err, homeErr)
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "shelf", "cache"), nil
}

// New opens a cache rooted at dir, creating it when needed. An empty dir
// gives a memory-only cache.
func New(dir string, opts ...Option) (*Cache, error) {
	c := &Cache{policy: Unbounded(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.mem = newMemoryTier(c.policy.memoryLimit())

	if dir == "" {
		return c, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	c.disk = &diskTier{dir: dir}

	if c.policy.Kind == PolicyMaxEntries {
		files, err := c.disk.files()
		if err != nil {
			slog.Warn("Failed to count cache files", "dir", dir, "error", err)
		}
		c.diskCount.Store(int64(len(files)))
	}
	return c, nil
}

// Dir returns the on-disk location, or "" for a memory-only cache.
func (c *Cache) Dir() string {
	if c.disk == nil {
		return ""
	}
	return c.disk.dir
}

// Get returns the value stored under key. Memory is consulted first; a
// disk hit is promoted into memory.
func (c *Cache) Get(key string) ([]byte, bool) {
	now := c.now()

	if entry, ok := c.mem.get(key); ok {
		if !c.policy.expired(entry.storedAt, now) {
			slog.Debug("Cache hit", "tier", "memory", "key", key)
			return cloneBytes(entry.value), true
		}
		slog.Debug("Cache entry expired", "tier", "memory", "key", key)
		c.mem.deleteIfStoredAt(key, entry.storedAt)
	}

	if c.disk == nil {
		return nil, false
	}

	data, modTime, err := c.disk.read(key)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to read cache file", "key", key, "error", err)
		}
		return nil, false
	}
	if c.policy.expired(modTime, now) {
		slog.Debug("Cache entry expired", "tier", "disk", "key", key)
		c.expireDisk(key, modTime)
		return nil, false
	}

	c.mem.put(key, data, modTime)
	slog.Debug("Cache hit", "tier", "disk", "key", key)
	return cloneBytes(data), true
}

// Put stores value in both tiers. Disk failures are logged and ignored.
func (c *Cache) Put(key string, value []byte) {
	c.mem.put(key, cloneBytes(value), c.now())

	if c.disk == nil {
		return
	}
	c.expireMu.RLock()
	created, err := c.disk.write(key, value)
	c.expireMu.RUnlock()
	if err != nil {
		slog.Warn("Failed to write cache file", "key", key, "error", err)
		return
	}

	if created && c.policy.Kind == PolicyMaxEntries {
		if c.diskCount.Add(1) > int64(c.policy.MaxEntries) {
			if _, err := c.Prune(); err != nil {
				slog.Warn("Failed to prune cache", "error", err)
			}
		}
	}
}

// expireDisk removes the file read at modTime unless it has been rewritten
// since.
func (c *Cache) expireDisk(key string, modTime time.Time) {
	c.expireMu.Lock()
	defer c.expireMu.Unlock()

	removed, err := c.disk.removeIfModTime(key, modTime)
	if err != nil {
		slog.Warn("Failed to remove cache file", "key", key, "error", err)
		return
	}
	if removed && c.policy.Kind == PolicyMaxEntries {
		c.diskCount.Add(-1)
	}
}

// Delete removes key from both tiers.
func (c *Cache) Delete(key string) {
	c.mem.delete(key)
	if c.disk == nil {
		return
	}
	if err := c.disk.remove(key); err != nil {
		slog.Warn("Failed to remove cache file", "key", key, "error", err)
	}
}

// Clear empties both tiers.
func (c *Cache) Clear() error {
	c.mem.clear()
	if c.disk == nil {
		return nil
	}
	c.diskCount.Store(0)
	if err := c.disk.clear(); err != nil {
		return fmt.Errorf("failed to clear cache directory: %w", err)
	}
	return nil
}

// Prune applies the eviction policy to the disk tier and returns the
// number of removed files. The memory tier evicts on its own.
func (c *Cache) Prune() (int, error) {
	if c.disk == nil || c.policy.Kind == PolicyUnbounded {
		return 0, nil
	}

	c.expireMu.Lock()
	defer c.expireMu.Unlock()

	files, err := c.disk.files()
	if err != nil {
		return 0, fmt.Errorf("failed to list cache files: %w", err)
	}

	var victims []diskFile
	switch c.policy.Kind {
	case PolicyMaxEntries:
		if len(files) > c.policy.MaxEntries {
			victims = files[c.policy.MaxEntries:]
		}
	case PolicyMaxAge:
		now := c.now()
		for _, f := range files {
			if c.policy.expired(f.modTime, now) {
				victims = append(victims, f)
			}
		}
	}

	removed := 0
	var errs []error
	for _, f := range victims {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	c.diskCount.Store(int64(len(files) - removed))

	if removed > 0 {
		slog.Debug("Pruned cache", "policy", c.policy.String(), "removed", removed)
	}
	return removed, errors.Join(errs...)
}

// Stats reports entry counts and disk usage.
func (c *Cache) Stats() (Stats, error) {
	s := Stats{MemoryEntries: c.mem.len(), Policy: c.policy, Dir: c.Dir()}
	if c.disk == nil {
		return s, nil
	}
	files, err := c.disk.files()
	if err != nil {
		return s, fmt.Errorf("failed to list cache files: %w", err)
	}
	s.DiskEntries = len(files)
	for _, f := range files {
		s.DiskBytes += f.size
	}
	return s, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
