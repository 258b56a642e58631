package models

import "time"

// CacheEntry is the durable payload stored for one fingerprint. Entries are
// replaced wholesale, never mutated in place.
type CacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	Digest      string    `json:"digest"`
	Text        string    `json:"text"`
}

// IndexEntry is the per-fingerprint record kept in the cache index file so
// expiry scans never decompress payloads.
type IndexEntry struct {
	CreatedAt time.Time `json:"created_at"`
	Size      int       `json:"size"`
}

// CacheStats reports cache performance for the current process.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}
