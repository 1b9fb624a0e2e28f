// Package hostbridge is the boundary between the ProjFS engine and the
// asynchronous, out-of-process host. It accepts registered host callback
// handles, dispatches non-blocking metadata/content/directory fetches,
// and runs a background write-drain worker for the (currently
// unreachable) write path.
package hostbridge

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juergengeck/one.projfs/pkg/contentcache"
	"github.com/juergengeck/one.projfs/pkg/model"
)

// GetFileInfoFunc fetches metadata for a single virtual path.
type GetFileInfoFunc func(ctx context.Context, path string) (model.FileInfo, error)

// ReadFileFunc fetches the full contents of a virtual path.
type ReadFileFunc func(ctx context.Context, path string) ([]byte, error)

// ReadDirectoryFunc fetches the listing of a virtual directory.
type ReadDirectoryFunc func(ctx context.Context, path string) ([]model.FileInfo, error)

// CreateFileFunc delivers a queued create-file write to the host.
type CreateFileFunc func(ctx context.Context, path string, data []byte) error

// UpdateFileFunc delivers a queued update-file write to the host.
type UpdateFileFunc func(ctx context.Context, path string, data []byte) error

// DeleteFileFunc delivers a queued delete-file write to the host.
type DeleteFileFunc func(ctx context.Context, path string) error

// DebugMessageFunc receives internal diagnostics from the engine.
type DebugMessageFunc func(text string)

// Callbacks holds the host-supplied operations. Only non-nil fields are
// registered. UpdateFile and DeleteFile mirror CreateFile for symmetry
// with the three-way write split the host boundary was modeled on. The
// engine never queues a write of any kind, so in practice only
// GetFileInfo, ReadFile, ReadDirectory, and OnDebugMessage ever fire;
// CreateFile, UpdateFile, and DeleteFile are reached only through the
// Queue* methods.
type Callbacks struct {
	GetFileInfo    GetFileInfoFunc
	ReadFile       ReadFileFunc
	ReadDirectory  ReadDirectoryFunc
	CreateFile     CreateFileFunc
	UpdateFile     UpdateFileFunc
	DeleteFile     DeleteFileFunc
	OnDebugMessage DebugMessageFunc
}

// DirectoryListingUpdatedFunc is invoked whenever FetchDirectoryListing
// succeeds, so that subscribers can act without the bridge holding a
// back-pointer to the engine. The engine registers a bound method here
// instead of the bridge referencing the engine directly, which keeps
// ownership acyclic.
type DirectoryListingUpdatedFunc func(path string)

type writeEntry struct {
	op   model.WriteOp
	path string
	data []byte
}

// Bridge is the asynchronous host boundary shared by the engine and the
// content cache.
type Bridge struct {
	cache *contentcache.Cache

	mu        sync.RWMutex
	callbacks Callbacks

	subMu       sync.Mutex
	onDirUpdate DirectoryListingUpdatedFunc

	queueMu sync.Mutex
	queue   []writeEntry

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	log func(string)
}

// New constructs a bridge bound to cache. The bridge writes its internal
// diagnostics to the standard log package and also forwards them to the
// registered OnDebugMessage callback, if any.
func New(cache *contentcache.Cache) *Bridge {
	return &Bridge{
		cache: cache,
		log:   func(s string) { log.Print(s) },
	}
}

// RegisterCallbacks installs the host's async operations. Unset fields
// leave any previously registered operation of that kind in place only
// if explicitly carried over by the caller; this call replaces the whole
// set.
func (b *Bridge) RegisterCallbacks(cb Callbacks) {
	b.mu.Lock()
	b.callbacks = cb
	b.mu.Unlock()
}

// Subscribe registers fn to be called after every successful
// FetchDirectoryListing. Only one subscriber is supported, matching the
// single ProjFSEngine owner of a Bridge.
func (b *Bridge) Subscribe(fn DirectoryListingUpdatedFunc) {
	b.subMu.Lock()
	b.onDirUpdate = fn
	b.subMu.Unlock()
}

func (b *Bridge) debug(format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	b.log(msg)
	b.mu.RLock()
	cb := b.callbacks.OnDebugMessage
	b.mu.RUnlock()
	if cb != nil {
		cb(msg)
	}
}

// FetchFileInfo issues a non-blocking request for path's metadata. On
// success the result is stored in the cache under path; on failure
// nothing is stored, so the next request simply retries.
func (b *Bridge) FetchFileInfo(path string) {
	b.mu.RLock()
	fn := b.callbacks.GetFileInfo
	b.mu.RUnlock()
	if fn == nil {
		return
	}
	go func() {
		fi, err := fn(context.Background(), path)
		if err != nil {
			b.debug("hostbridge: getFileInfo(%s): %v", path, err)
			return
		}
		b.cache.SetFileInfo(path, fi)
	}()
}

// FetchDirectoryListing issues a non-blocking request for path's
// listing. It deliberately does not populate the cache itself — the host
// is expected to call SetCachedDirectory to avoid a double-insertion
// race — and instead notifies the subscriber once the host's own
// original call resolves.
func (b *Bridge) FetchDirectoryListing(path string) {
	b.mu.RLock()
	fn := b.callbacks.ReadDirectory
	b.mu.RUnlock()
	if fn == nil {
		return
	}
	go func() {
		_, err := fn(context.Background(), path)
		if err != nil {
			b.debug("hostbridge: readDirectory(%s): %v", path, err)
			return
		}
		b.subMu.Lock()
		sub := b.onDirUpdate
		b.subMu.Unlock()
		if sub != nil {
			sub(path)
		}
	}()
}

// FetchFileContent issues a non-blocking request for path's bytes. On
// success the content is cached (subject to the size limit).
func (b *Bridge) FetchFileContent(path string) {
	b.mu.RLock()
	fn := b.callbacks.ReadFile
	b.mu.RUnlock()
	if fn == nil {
		return
	}
	go func() {
		data, err := fn(context.Background(), path)
		if err != nil {
			b.debug("hostbridge: readFile(%s): %v", path, err)
			return
		}
		b.cache.SetFileContent(path, model.FileContent{Bytes: data})
	}()
}

// QueueCreateFile appends a create-file write to the drain queue.
// Forward-compatibility scaffolding: the engine's notification policy
// denies every write before it would ever call this, so in normal
// operation the queue never receives an entry.
func (b *Bridge) QueueCreateFile(path string, data []byte) {
	b.enqueue(writeEntry{op: model.WriteOpCreate, path: path, data: data})
}

// QueueUpdateFile appends an update-file write to the drain queue.
// Forward-compatibility scaffolding: unreachable while the notification
// policy denies overwrite.
func (b *Bridge) QueueUpdateFile(path string, data []byte) {
	b.enqueue(writeEntry{op: model.WriteOpUpdate, path: path, data: data})
}

// QueueDeleteFile appends a delete-file write to the drain queue.
// Forward-compatibility scaffolding: unreachable while the notification
// policy denies pre-delete.
func (b *Bridge) QueueDeleteFile(path string) {
	b.enqueue(writeEntry{op: model.WriteOpDelete, path: path})
}

func (b *Bridge) enqueue(e writeEntry) {
	b.queueMu.Lock()
	b.queue = append(b.queue, e)
	b.queueMu.Unlock()
}

// Start spawns the background write-drain worker, firing every 100ms.
func (b *Bridge) Start() {
	b.running.Store(true)
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	go b.drainLoop()
}

func (b *Bridge) drainLoop() {
	defer close(b.doneCh)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.drainOnce()
		}
	}
}

func (b *Bridge) drainOnce() {
	b.queueMu.Lock()
	entries := b.queue
	b.queue = nil
	b.queueMu.Unlock()
	if len(entries) == 0 {
		return
	}
	b.mu.RLock()
	create := b.callbacks.CreateFile
	update := b.callbacks.UpdateFile
	del := b.callbacks.DeleteFile
	b.mu.RUnlock()
	for _, e := range entries {
		switch e.op {
		case model.WriteOpCreate:
			if create == nil {
				continue
			}
			if err := create(context.Background(), e.path, e.data); err != nil {
				b.debug("hostbridge: createFile(%s): %v", e.path, err)
			}
		case model.WriteOpUpdate:
			if update == nil {
				continue
			}
			if err := update(context.Background(), e.path, e.data); err != nil {
				b.debug("hostbridge: updateFile(%s): %v", e.path, err)
			}
		case model.WriteOpDelete:
			if del == nil {
				continue
			}
			if err := del(context.Background(), e.path); err != nil {
				b.debug("hostbridge: deleteFile(%s): %v", e.path, err)
			}
		}
	}
}

// Stop halts the drain worker, releases the registered host handles, and
// waits for the worker to exit.
func (b *Bridge) Stop() {
	if !b.running.Load() {
		return
	}
	b.running.Store(false)
	close(b.stopCh)
	<-b.doneCh
	b.mu.Lock()
	b.callbacks = Callbacks{}
	b.mu.Unlock()
}

// IsRunning reports whether the drain worker is active.
func (b *Bridge) IsRunning() bool {
	return b.running.Load()
}
