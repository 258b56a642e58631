// Package cache is the content-addressed artifact cache. It maps a request
// fingerprint to a previously accepted artifact through two tiers: an
// in-process map for hot hits within a run, backed by one compressed file
// per entry plus an index file for fast expiry scans. Cache faults never
// propagate as hard failures; every error path degrades to a miss.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/longform-ai/longform/pkg/models"
	"github.com/longform-ai/longform/pkg/zlog"
)

const indexFile = "index.json"

// Cache is a two-tier artifact cache rooted at a directory.
type Cache struct {
	dir         string
	ttl         time.Duration
	lockTimeout time.Duration
	locker      Locker

	mu     sync.Mutex
	memory map[string]string
	index  map[string]models.IndexEntry

	hits   atomic.Int64
	misses atomic.Int64
}

// New opens (or creates) a cache directory. The locker guards durable reads
// and writes; pass NewMemLocker for single-process deployments.
func New(dir string, ttl, lockTimeout time.Duration, locker Locker) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c := &Cache{
		dir:         dir,
		ttl:         ttl,
		lockTimeout: lockTimeout,
		locker:      locker,
		memory:      make(map[string]string),
	}
	c.index = c.loadIndex()
	return c, nil
}

// Get returns the cached text for a prompt+params pair. Entries past the TTL
// are treated as absent and proactively deleted. Whether an in-TTL value
// satisfies the caller's acceptance window is the caller's decision; a
// mismatch there must not delete the entry.
func (c *Cache) Get(prompt string, params models.GenerationParams) (string, bool) {
	key := Fingerprint(prompt, params)

	c.mu.Lock()
	if text, ok := c.memory[key]; ok {
		c.mu.Unlock()
		c.hits.Add(1)
		return text, true
	}
	c.mu.Unlock()

	entry, err := c.readEntry(key)
	if err != nil {
		if !os.IsNotExist(err) {
			zlog.Warn("cache read degraded to miss", zap.String("fingerprint", key[:12]), zap.Error(err))
		}
		c.misses.Add(1)
		return "", false
	}

	if time.Since(entry.CreatedAt) > c.ttl {
		c.deleteEntry(key)
		c.misses.Add(1)
		return "", false
	}

	if entry.Digest != contentDigest(entry.Text) {
		zlog.Warn("cache entry failed integrity check", zap.String("fingerprint", key[:12]))
		c.deleteEntry(key)
		c.misses.Add(1)
		return "", false
	}

	c.mu.Lock()
	c.memory[key] = entry.Text
	c.mu.Unlock()
	c.hits.Add(1)
	return entry.Text, true
}

// Set stores text for a prompt+params pair. The durable entry is written to
// a temp file and renamed, so readers see either the old or the new value,
// never a partial write. Errors are returned for logging but are not fatal
// to the pipeline.
func (c *Cache) Set(prompt string, params models.GenerationParams, text string) error {
	key := Fingerprint(prompt, params)

	c.mu.Lock()
	c.memory[key] = text
	c.mu.Unlock()

	entry := models.CacheEntry{
		Fingerprint: key,
		CreatedAt:   time.Now().UTC(),
		Digest:      contentDigest(text),
		Text:        text,
	}
	if err := c.writeEntry(key, entry); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}

	c.mu.Lock()
	c.index[key] = models.IndexEntry{CreatedAt: entry.CreatedAt, Size: len(text)}
	err := c.saveIndexLocked()
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("cache index update: %w", err)
	}
	return nil
}

// EvictOlderThan removes every entry older than maxAge and returns how many
// were deleted. The index makes this a metadata-only scan.
func (c *Cache) EvictOlderThan(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, info := range c.index {
		if info.CreatedAt.After(cutoff) {
			continue
		}
		if err := os.Remove(c.entryPath(key)); err != nil && !os.IsNotExist(err) {
			zlog.Warn("cache evict: remove failed", zap.String("fingerprint", key[:12]), zap.Error(err))
			continue
		}
		delete(c.index, key)
		delete(c.memory, key)
		removed++
	}

	if removed > 0 {
		if err := c.saveIndexLocked(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Clear removes every entry and the index.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.index {
		if err := os.Remove(c.entryPath(key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("cache clear: %w", err)
		}
	}
	c.index = make(map[string]models.IndexEntry)
	c.memory = make(map[string]string)
	return c.saveIndexLocked()
}

// Stats reports entry count and hit/miss counters for this process.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	entries := int64(len(c.index))
	c.mu.Unlock()
	return models.CacheStats{
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".gz")
}

// readEntry loads and decompresses one durable entry under its file lock.
// Lock failure falls back to an unlocked read rather than blocking the run.
func (c *Cache) readEntry(key string) (models.CacheEntry, error) {
	path := c.entryPath(key)

	release, err := c.locker.Acquire(path, c.lockTimeout)
	if err == nil {
		defer release()
	} else {
		zlog.Debug("cache lock unavailable, unlocked read", zap.String("fingerprint", key[:12]), zap.Error(err))
	}

	f, err := os.Open(path)
	if err != nil {
		return models.CacheEntry{}, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return models.CacheEntry{}, fmt.Errorf("decompress entry: %w", err)
	}
	defer zr.Close()

	var entry models.CacheEntry
	if err := json.NewDecoder(zr).Decode(&entry); err != nil {
		return models.CacheEntry{}, fmt.Errorf("decode entry: %w", err)
	}
	return entry, nil
}

// writeEntry compresses and writes one durable entry atomically.
func (c *Cache) writeEntry(key string, entry models.CacheEntry) error {
	path := c.entryPath(key)

	release, err := c.locker.Acquire(path, c.lockTimeout)
	if err == nil {
		defer release()
	} else {
		zlog.Debug("cache lock unavailable, unlocked write", zap.String("fingerprint", key[:12]), zap.Error(err))
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(entry); err != nil {
		zw.Close()
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// deleteEntry removes an expired or corrupt entry and its index row.
func (c *Cache) deleteEntry(key string) {
	if err := os.Remove(c.entryPath(key)); err != nil && !os.IsNotExist(err) {
		zlog.Warn("cache delete failed", zap.String("fingerprint", key[:12]), zap.Error(err))
	}
	c.mu.Lock()
	delete(c.memory, key)
	if _, ok := c.index[key]; ok {
		delete(c.index, key)
		if err := c.saveIndexLocked(); err != nil {
			zlog.Warn("cache index save failed", zap.Error(err))
		}
	}
	c.mu.Unlock()
}

// loadIndex reads the index file; a missing or corrupt index degrades to
// empty rather than failing the run.
func (c *Cache) loadIndex() map[string]models.IndexEntry {
	path := filepath.Join(c.dir, indexFile)

	release, err := c.locker.Acquire(path, c.lockTimeout)
	if err == nil {
		defer release()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return make(map[string]models.IndexEntry)
	}
	index := make(map[string]models.IndexEntry)
	if err := json.Unmarshal(data, &index); err != nil {
		zlog.Warn("cache index corrupt, starting empty", zap.Error(err))
		return make(map[string]models.IndexEntry)
	}
	return index
}

// saveIndexLocked writes the index atomically. Caller holds c.mu.
func (c *Cache) saveIndexLocked() error {
	path := filepath.Join(c.dir, indexFile)

	release, err := c.locker.Acquire(path, c.lockTimeout)
	if err == nil {
		defer release()
	}

	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
