package engine

import (
	"github.com/juergengeck/one.projfs/pkg/model"
)

// PlaceholderResult is the outcome of GetPlaceholderInfo: either a
// FileBasicInfo to materialize, or a not-found/fetch-pending disposition.
type PlaceholderResult struct {
	Found bool
	Info  FileBasicInfo
}

// GetPlaceholderInfo answers a kernel request for one path's placeholder
// metadata. It never blocks on external I/O; a miss fires an async
// HostBridge fetch for the next caller and replies file-not-found to this
// one, since returning "pending" here would hang Explorer.
func (e *Engine) GetPlaceholderInfo(virtualPath string) PlaceholderResult {
	e.statsMu.Lock()
	e.stats.PlaceholderRequests++
	e.statsMu.Unlock()
	placeholderRequestsTotal.Inc()

	p := CanonicalPath(virtualPath)

	// Step 1: preserve root-level mountpoints even when no placeholder
	// entry for them was ever individually cached.
	if isSingleSegment(p) {
		if root, ok := e.cache.GetDirectoryListing("/"); ok {
			name := p[1:]
			if fi, found := root.ByName(name); found && fi.IsDirectory {
				return PlaceholderResult{Found: true, Info: FileBasicInfo{IsDirectory: true, FileSize: 0}}
			}
		}
	}

	// Step 2: direct FileInfo cache hit.
	if fi, ok := e.cache.GetFileInfo(p); ok {
		return PlaceholderResult{Found: true, Info: fileBasicInfoFrom(fi)}
	}

	// Step 3: served from the parent directory's cached listing.
	parent, leaf := parentAndLeaf(p)
	if listing, ok := e.cache.GetDirectoryListing(parent); ok {
		if fi, found := listing.ByName(leaf); found {
			return PlaceholderResult{Found: true, Info: fileBasicInfoFrom(fi)}
		}
	}

	// Step 4: object-store subtree.
	if isObjectsPath(p) {
		md := e.objectMetadata(p)
		if md.Exists {
			return PlaceholderResult{Found: true, Info: FileBasicInfo{IsDirectory: md.IsDirectory, FileSize: md.Size}}
		}
	}

	// Step 5: miss everywhere. Fire an async fetch for next time and
	// answer file-not-found now.
	e.bridge.FetchFileInfo(p)
	return PlaceholderResult{Found: false}
}

func isSingleSegment(p string) bool {
	if p == "/" || len(p) < 2 {
		return false
	}
	return !containsRune(p[1:], '/')
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}

func isObjectsPath(p string) bool {
	return p == "/objects" || len(p) > len("/objects/") && p[:len("/objects/")] == "/objects/"
}

func fileBasicInfoFrom(fi model.FileInfo) FileBasicInfo {
	return FileBasicInfo{IsDirectory: fi.IsDirectory, FileSize: fi.Size}
}
