package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/juergengeck/one.projfs/pkg/model"
)

const directoryFetchTimeout = 5 * time.Second
const directoryFetchPollInterval = 100 * time.Millisecond

// StartDirectoryEnumeration atomically inserts a fresh EnumerationState
// for id. A Start for an already-known identifier overwrites the state
// and is logged rather than rejected; ProjFS occasionally reuses
// identifiers across enumerations.
func (e *Engine) StartDirectoryEnumeration(id uuid.UUID) {
	e.statsMu.Lock()
	e.stats.DirectoryEnumerations++
	e.stats.ActiveEnumerations++
	e.statsMu.Unlock()
	directoryEnumerationsTotal.Inc()
	activeEnumerations.Inc()
	e.enumTbl.Start(id, func() {
		e.debugf("engine: StartDirectoryEnumeration reused identifier %s", id)
	})
}

// EndDirectoryEnumeration removes the state for id.
func (e *Engine) EndDirectoryEnumeration(id uuid.UUID) {
	e.enumTbl.End(id)
	e.statsMu.Lock()
	if e.stats.ActiveEnumerations > 0 {
		e.stats.ActiveEnumerations--
		e.statsMu.Unlock()
		activeEnumerations.Dec()
		return
	}
	e.statsMu.Unlock()
}

// GetDirectoryEnumeration services one kernel poll of a directory
// enumeration: it populates the entry list on first call (consulting the
// cache, the object store, or the host in turn) and then fills as much
// of the kernel's output buffer as fits, without advancing the cursor
// past an entry the buffer had no room for.
func (e *Engine) GetDirectoryEnumeration(id uuid.UUID, virtualPath, searchExpression string, restartScan bool, filler DirEntryFiller, matcher NameMatcher) model.Status {
	e.statsMu.Lock()
	e.stats.EnumerationCallbacks++
	e.statsMu.Unlock()
	enumerationCallbacksTotal.Inc()

	p := CanonicalPath(virtualPath)
	state := e.enumTbl.LookupOrCreate(id, func() {
		e.debugf("engine: GetDirectoryEnumeration for unknown identifier %s", id)
	})

	e.enumTbl.Lock()
	defer e.enumTbl.Unlock()

	state.CallCount++
	if state.CallCount > model.MaxCallsPerEnumeration {
		e.debugf("engine: enumeration %s exceeded call-count guard, breaking loop", id)
		return model.StatusOK
	}

	if restartScan {
		state.Entries = nil
		state.NextIndex = 0
		state.IsLoading = false
		state.IsComplete = false
		state.CallCount = 1
	}

	if len(state.Entries) == 0 && !state.IsComplete {
		if state.IsLoading {
			for state.IsLoading {
				e.enumTbl.Wait()
			}
		} else {
			state.IsLoading = true
			e.enumTbl.Unlock()
			entries := e.populateDirectory(p)
			e.enumTbl.Lock()
			state.Entries = entries
			state.IsLoading = false
			state.IsComplete = true
			e.enumTbl.Broadcast()
		}
	}

	return e.processEnumeration(state, searchExpression, filler, matcher)
}

// populateDirectory resolves p's entries, in order: the content cache,
// then the object store for /objects/* paths, then the host (via a
// bounded poll of the cache after firing an async fetch). It must be
// called without the enumeration table lock held.
func (e *Engine) populateDirectory(p string) []model.FileInfo {
	if listing, ok := e.cache.GetDirectoryListing(p); ok {
		return listing.Entries
	}

	if isObjectsPath(p) {
		entries, ok := e.store.ListDirectory(p, func(s string) { e.debugf("%s", s) })
		if !ok {
			return nil
		}
		return entries
	}

	e.bridge.FetchDirectoryListing(p)
	deadline := time.Now().Add(directoryFetchTimeout)
	for time.Now().Before(deadline) {
		time.Sleep(directoryFetchPollInterval)
		if listing, ok := e.cache.GetDirectoryListing(p); ok {
			return listing.Entries
		}
	}
	e.debugf("engine: directory fetch timed out for %s", p)
	return nil
}

// processEnumeration fills the kernel output buffer from state.Entries
// starting at the cursor, honoring the ProjFS search expression and the
// buffer-full retry contract. Callers must hold the enumeration table
// lock.
func (e *Engine) processEnumeration(state *model.EnumerationState, searchExpression string, filler DirEntryFiller, matcher NameMatcher) model.Status {
	for state.NextIndex < uint64(len(state.Entries)) {
		entry := state.Entries[state.NextIndex]
		if entry.Name == "" {
			state.NextIndex++
			continue
		}
		if matcher != nil && searchExpression != "" && !matcher.Match(entry.Name, searchExpression) {
			state.NextIndex++
			continue
		}

		switch filler.FillDirEntryBuffer(entry.Name, FileBasicInfo{IsDirectory: entry.IsDirectory, FileSize: entry.Size}) {
		case FillBufferFull:
			return model.StatusOK
		case FillOtherError:
			state.NextIndex++
		default:
			state.NextIndex++
		}
	}
	state.IsComplete = true
	return model.StatusOK
}
