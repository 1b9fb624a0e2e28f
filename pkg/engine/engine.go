package engine

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/juergengeck/one.projfs/pkg/contentcache"
	"github.com/juergengeck/one.projfs/pkg/enumeration"
	"github.com/juergengeck/one.projfs/pkg/hostbridge"
	"github.com/juergengeck/one.projfs/pkg/model"
	"github.com/juergengeck/one.projfs/pkg/objectstore"
)

// rootMountpoints names the top-level entries of the virtual root.
// "objects" is synthesized by the ObjectStore; the rest are host-supplied
// subtrees. No engine code reads this list: the root listing itself
// comes from the host, like any other non-/objects directory.
var rootMountpoints = []string{"objects", "chats", "debug", "invites", "types"}

// Engine owns ProjFS registration and dispatches the six callback kinds
// against the ContentCache, ObjectStore, HostBridge, and EnumerationTable.
// It exclusively owns all four of those; ProjFS owns its own context
// handle, which the engine only borrows inside callbacks.
type Engine struct {
	cache   *contentcache.Cache
	store   *objectstore.Store
	bridge  *hostbridge.Bridge
	enumTbl *enumeration.Table
	mounter Mounter

	pendingMu sync.Mutex
	pending   map[int32]model.PendingFileRequest

	statsMu sync.Mutex
	stats   Stats
	lastErr error

	logger *log.Logger
}

// Stats mirrors the host-facing getStats() surface.
type Stats struct {
	PlaceholderRequests   uint64
	FileDataRequests      uint64
	DirectoryEnumerations uint64
	EnumerationCallbacks  uint64
	ActiveEnumerations    uint64
	BytesRead             uint64
	CacheHits             uint64
	CacheMisses           uint64
}

// New constructs an engine bound to the given cache, store, bridge, and
// mounter. The engine subscribes itself to the bridge's
// directory-listing-updated notification through a bound method rather
// than handing the bridge a back-pointer, keeping ownership acyclic.
func New(cache *contentcache.Cache, store *objectstore.Store, bridge *hostbridge.Bridge, mounter Mounter, logger *log.Logger) *Engine {
	e := &Engine{
		cache:   cache,
		store:   store,
		bridge:  bridge,
		enumTbl: enumeration.New(),
		mounter: mounter,
		pending: make(map[int32]model.PendingFileRequest),
		logger:  logger,
	}
	bridge.Subscribe(e.onDirectoryListingUpdated)
	return e
}

// SetMounter installs the platform mounter after construction, so that
// a Mounter implementation needing a reference back to the engine (as
// pkg/winprojfs's Provider does, to dispatch callbacks into it) can be
// built from an already-constructed Engine without a circular
// constructor dependency.
func (e *Engine) SetMounter(m Mounter) {
	e.mounter = m
}

// onDirectoryListingUpdated is the bound method the HostBridge invokes
// after a successful FetchDirectoryListing. The poll loop in
// GetDirectoryEnumeration observes the resulting cache entry on its own
// schedule; this hook exists only to surface the event on the debug
// channel without the bridge holding a reference back to the engine.
func (e *Engine) onDirectoryListingUpdated(path string) {
	e.debugf("engine: directory listing updated for %s", path)
}

func (e *Engine) debugf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// CanonicalPath converts a Windows-style relative path (backslash
// separated, no leading slash) into the engine's canonical forward-slash
// form with a leading slash. An empty input becomes "/".
func CanonicalPath(winPath string) string {
	if winPath == "" {
		return "/"
	}
	p := strings.ReplaceAll(winPath, `\`, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func parentAndLeaf(p string) (parent, leaf string) {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/", strings.TrimPrefix(p, "/")
	}
	return p[:i], p[i+1:]
}

func (e *Engine) objectMetadata(p string) model.ObjectMetadata {
	return e.store.GetMetadata(p, func(s string) { e.debugf("%s", s) })
}

// GetStats returns a snapshot of the engine's running counters.
// CacheHits and CacheMisses are sourced from the ContentCache's own
// counters rather than tracked a second time here, since the cache
// already observes every read across all six callback paths.
func (e *Engine) GetStats() Stats {
	e.statsMu.Lock()
	s := e.stats
	e.statsMu.Unlock()
	cs := e.cache.GetStats()
	s.CacheHits = cs.Hits
	s.CacheMisses = cs.Misses
	return s
}

// SetCachedDirectory installs a host-supplied directory listing. This is
// the host surface's setCachedDirectory.
func (e *Engine) SetCachedDirectory(path string, entries []model.FileInfo) {
	e.cache.SetDirectoryListing(path, model.DirectoryListing{Entries: entries})
}

// SetCachedContent installs host-supplied file bytes. This is the host
// surface's setCachedContent.
func (e *Engine) SetCachedContent(path string, data []byte) {
	e.cache.SetFileContent(path, model.FileContent{Bytes: data})
}

// SetCachedFileInfo installs host-supplied file metadata. This is the
// host surface's setCachedFileInfo.
func (e *Engine) SetCachedFileInfo(path string, fi model.FileInfo) {
	e.cache.SetFileInfo(path, fi)
}

// InvalidateAllCached drops every cached file-info, directory, and
// content entry, forcing the next request for any path to round-trip
// through the host again.
func (e *Engine) InvalidateAllCached() {
	e.cache.InvalidateAll()
}

// SetCacheTTL changes how long cached entries remain valid after
// insertion.
func (e *Engine) SetCacheTTL(ttl time.Duration) {
	e.cache.SetTTL(ttl)
}
