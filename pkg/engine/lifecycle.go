package engine

import (
	"fmt"
	"os"
	"path/filepath"
)

// Start brings the virtual root up: ensures the directory exists, clears
// stale virtualization markers left by a crashed predecessor, registers
// with ProjFS through the mounter (which marks the directory as a
// placeholder root with a fresh instance identifier and begins
// virtualization), and starts the host bridge's write-drain worker.
// Failure tears the bridge back down and returns the originating error.
func (e *Engine) Start(virtualRoot string) error {
	if err := os.MkdirAll(virtualRoot, 0o755); err != nil {
		e.bridge.Stop()
		return e.setLastError(fmt.Errorf("engine: create virtualization root: %w", err))
	}
	removeStaleMarkers(virtualRoot)

	if err := e.mounter.Start(virtualRoot); err != nil {
		e.bridge.Stop()
		return e.setLastError(fmt.Errorf("engine: start virtualization: %w", err))
	}
	e.bridge.Start()
	return nil
}

func (e *Engine) setLastError(err error) error {
	e.statsMu.Lock()
	e.lastErr = err
	e.statsMu.Unlock()
	return err
}

// GetLastError returns the most recent error Start has reported, or nil
// if none has occurred yet.
func (e *Engine) GetLastError() error {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.lastErr
}

// Stop stops virtualization and the host bridge. It does not interrupt
// in-flight callbacks; callers must drain before relying on this to have
// fully quiesced the engine.
func (e *Engine) Stop() {
	e.mounter.Stop()
	e.bridge.Stop()
}

// removeStaleMarkers deletes the placeholder marker and .projfs
// bookkeeping directory a crashed predecessor may have left under root.
func removeStaleMarkers(root string) {
	projfsDir := filepath.Join(root, ".projfs")
	os.Remove(filepath.Join(projfsDir, "placeholder"))
	os.RemoveAll(projfsDir)
}

// InvalidateTombstone clears a ProjFS tombstone for virtualPath so a
// previously deleted name can be re-projected. A not-found response from
// the kernel is treated as success (there was nothing to tombstone); any
// other failure reports false without touching the cache. On success the
// engine also invalidates the cache entry, so the next placeholder query
// goes through the normal cache/host path rather than serving stale
// negative state.
func (e *Engine) InvalidateTombstone(virtualPath string) bool {
	p := CanonicalPath(virtualPath)
	notFound, err := e.mounter.DeleteFile(p)
	if notFound {
		e.cache.InvalidatePath(p)
		return true
	}
	if err != nil {
		return false
	}
	e.cache.InvalidatePath(p)
	return true
}

// IsRunning reports whether the host bridge's drain worker is active, as
// a proxy for whether Start has completed successfully and Stop has not
// yet run.
func (e *Engine) IsRunning() bool {
	return e.bridge.IsRunning()
}
