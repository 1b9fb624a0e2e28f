// Package contentcache implements the thread-safe TTL cache of file
// metadata, directory listings, and small file contents shared between
// the host bridge and the ProjFS engine.
package contentcache

import (
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juergengeck/one.projfs/pkg/model"
)

// Config holds the cache's fixed tuning constants, exposed so a host can
// override them; the defaults match the values this engine was designed
// against.
type Config struct {
	TTL                   time.Duration
	MaxContentBytes       int
	FileInfoEvictionEvery int
	DirectoryEvictionSize int
	ContentEvictionSize   int
}

// DefaultConfig returns the engine's original fixed constants.
func DefaultConfig() Config {
	return Config{
		TTL:                   3600 * time.Second,
		MaxContentBytes:       1 << 20,
		FileInfoEvictionEvery: 100,
		DirectoryEvictionSize: 1000,
		ContentEvictionSize:   100,
	}
}

// Cache is three independently keyed TTL stores guarded by a single
// readers-writer lock.
type Cache struct {
	cfg Config

	mu              sync.RWMutex
	fileInfo        map[string]model.CacheEntry[model.FileInfo]
	directory       map[string]model.CacheEntry[model.DirectoryListing]
	content         map[string]model.CacheEntry[model.FileContent]
	fileInfoInserts int

	hits   atomic.Uint64
	misses atomic.Uint64

	now func() time.Time
}

// New constructs an empty cache with the given configuration.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:       cfg,
		fileInfo:  make(map[string]model.CacheEntry[model.FileInfo]),
		directory: make(map[string]model.CacheEntry[model.DirectoryListing]),
		content:   make(map[string]model.CacheEntry[model.FileContent]),
		now:       time.Now,
	}
}

// GetFileInfo returns the cached FileInfo for p if present and unexpired.
func (c *Cache) GetFileInfo(p string) (model.FileInfo, bool) {
	c.mu.RLock()
	e, ok := c.fileInfo[p]
	c.mu.RUnlock()
	if !ok || !e.Valid(c.now(), c.cfg.TTL) {
		c.misses.Add(1)
		cacheOperationsTotalMiss.Inc()
		return model.FileInfo{}, false
	}
	c.hits.Add(1)
	cacheOperationsTotalHit.Inc()
	return e.Value, true
}

// SetFileInfo inserts or replaces the cached FileInfo for p, triggering
// opportunistic eviction every FileInfoEvictionEvery inserts.
func (c *Cache) SetFileInfo(p string, fi model.FileInfo) {
	c.mu.Lock()
	c.fileInfo[p] = model.CacheEntry[model.FileInfo]{Value: fi, InsertedAt: c.now()}
	c.fileInfoInserts++
	evictFileInfo := c.cfg.FileInfoEvictionEvery > 0 && c.fileInfoInserts%c.cfg.FileInfoEvictionEvery == 0
	c.mu.Unlock()
	if evictFileInfo {
		c.evictExpiredFileInfo()
	}
}

// GetDirectoryListing returns the cached listing for p if present and
// unexpired.
func (c *Cache) GetDirectoryListing(p string) (model.DirectoryListing, bool) {
	c.mu.RLock()
	e, ok := c.directory[p]
	c.mu.RUnlock()
	if !ok || !e.Valid(c.now(), c.cfg.TTL) {
		c.misses.Add(1)
		cacheOperationsTotalMiss.Inc()
		return model.DirectoryListing{}, false
	}
	c.hits.Add(1)
	cacheOperationsTotalHit.Inc()
	return e.Value, true
}

// SetDirectoryListing inserts or replaces the cached listing for p.
func (c *Cache) SetDirectoryListing(p string, dl model.DirectoryListing) {
	c.mu.Lock()
	c.directory[p] = model.CacheEntry[model.DirectoryListing]{Value: dl, InsertedAt: c.now()}
	over := len(c.directory) > c.cfg.DirectoryEvictionSize
	c.mu.Unlock()
	if over {
		c.evictExpiredDirectories()
	}
}

// GetFileContent returns the cached content for p if present and
// unexpired.
func (c *Cache) GetFileContent(p string) (model.FileContent, bool) {
	c.mu.RLock()
	e, ok := c.content[p]
	c.mu.RUnlock()
	if !ok || !e.Valid(c.now(), c.cfg.TTL) {
		c.misses.Add(1)
		cacheOperationsTotalMiss.Inc()
		return model.FileContent{}, false
	}
	c.hits.Add(1)
	cacheOperationsTotalHit.Inc()
	return e.Value, true
}

// SetFileContent inserts the content for p, subject to the configured
// size limit; payloads over the limit are silently dropped.
func (c *Cache) SetFileContent(p string, fc model.FileContent) {
	if len(fc.Bytes) > c.cfg.MaxContentBytes {
		return
	}
	c.mu.Lock()
	c.content[p] = model.CacheEntry[model.FileContent]{Value: fc, InsertedAt: c.now()}
	over := len(c.content) > c.cfg.ContentEvictionSize
	c.mu.Unlock()
	if over {
		c.evictExpiredContent()
	}
}

// InvalidatePath removes p from all three stores and also evicts the
// directory listing of p's parent, so a stale parent listing cannot
// survive a child invalidation.
func (c *Cache) InvalidatePath(p string) {
	parent := path.Dir(p)
	c.mu.Lock()
	delete(c.fileInfo, p)
	delete(c.directory, p)
	delete(c.content, p)
	delete(c.directory, parent)
	c.mu.Unlock()
}

// InvalidateAll drops every entry from all three stores, leaving hit/miss
// counters untouched.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.fileInfo = make(map[string]model.CacheEntry[model.FileInfo])
	c.directory = make(map[string]model.CacheEntry[model.DirectoryListing])
	c.content = make(map[string]model.CacheEntry[model.FileContent])
	c.fileInfoInserts = 0
	c.mu.Unlock()
}

// SetTTL changes the cache's expiry window for every entry, including
// those already stored: each read compares the entry's stored insertion
// time against the new ttl, since no deadline is fixed at insert.
func (c *Cache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	c.cfg.TTL = ttl
	c.mu.Unlock()
}

func (c *Cache) evictExpiredFileInfo() {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.fileInfo {
		if !e.Valid(now, c.cfg.TTL) {
			delete(c.fileInfo, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) evictExpiredDirectories() {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.directory {
		if !e.Valid(now, c.cfg.TTL) {
			delete(c.directory, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) evictExpiredContent() {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.content {
		if !e.Valid(now, c.cfg.TTL) {
			delete(c.content, k)
		}
	}
	c.mu.Unlock()
}

// Stats is a snapshot of running cache statistics.
type Stats struct {
	Hits             uint64
	Misses           uint64
	TotalEntries     int
	ApproxMemoryUsed uint64
}

// GetStats returns a snapshot of hit/miss counters, total entry count
// across all three stores, and an approximate memory-usage estimate.
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var mem uint64
	for k, e := range c.fileInfo {
		mem += uint64(len(k)) + uint64(len(e.Value.Name)) + uint64(len(e.Value.ContentHash))
	}
	for k, e := range c.directory {
		mem += uint64(len(k))
		for _, fi := range e.Value.Entries {
			mem += uint64(len(fi.Name)) + uint64(len(fi.ContentHash))
		}
	}
	for k, e := range c.content {
		mem += uint64(len(k)) + uint64(len(e.Value.Bytes))
	}
	return Stats{
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		TotalEntries:     len(c.fileInfo) + len(c.directory) + len(c.content),
		ApproxMemoryUsed: mem,
	}
}
