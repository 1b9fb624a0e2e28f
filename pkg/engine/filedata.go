package engine

import (
	"github.com/juergengeck/one.projfs/pkg/model"
)

// GetFileData answers a kernel request for a byte range of path. A cache
// or object-store hit is served synchronously; an /objects path the
// object store cannot read answers not-found; anything else parks the
// request and returns io-pending, never blocking the calling callback.
func (e *Engine) GetFileData(commandID int32, virtualPath string, offset uint64, length uint32, virtualizationCtx uintptr, dataStreamID [16]byte, writer FileDataWriter) model.Status {
	e.statsMu.Lock()
	e.stats.FileDataRequests++
	e.statsMu.Unlock()
	fileDataRequestsTotal.Inc()

	p := CanonicalPath(virtualPath)

	if fc, ok := e.cache.GetFileContent(p); ok {
		return e.serveContent(fc.Bytes, offset, length, dataStreamID, writer)
	}

	if isObjectsPath(p) {
		data, ok := e.store.ReadFile(p, func(s string) { e.debugf("%s", s) })
		if !ok {
			return model.StatusErrNoEnt
		}
		return e.serveContent(data, offset, length, dataStreamID, writer)
	}

	e.pendingMu.Lock()
	e.pending[commandID] = model.PendingFileRequest{
		Path:              p,
		Offset:            offset,
		Length:            length,
		VirtualizationCtx: virtualizationCtx,
		DataStreamID:      dataStreamID,
	}
	e.pendingMu.Unlock()
	e.bridge.FetchFileContent(p)
	return model.StatusErrPending
}

// serveContent slices data to [offset, min(offset+length, len(data))) and
// writes it back via writer. A request with offset beyond the end of the
// data succeeds with zero bytes written.
func (e *Engine) serveContent(data []byte, offset uint64, length uint32, dataStreamID [16]byte, writer FileDataWriter) model.Status {
	var slice []byte
	if offset < uint64(len(data)) {
		end := offset + uint64(length)
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		slice = data[offset:end]
	}
	if err := writer.WriteFileData(dataStreamID, slice, offset); err != nil {
		return model.StatusErrIO
	}
	e.statsMu.Lock()
	e.stats.BytesRead += uint64(len(slice))
	e.statsMu.Unlock()
	bytesReadTotal.Add(float64(len(slice)))
	return model.StatusOK
}

// CompletePendingFileRequests is invoked by the host after it populates
// the content cache for path via SetCachedContent. It walks the pending
// table, completes every matching parked GetFileData with the
// now-cached content (or ERROR_FILE_NOT_FOUND if the host never
// populated the cache), and removes the matched entries.
func (e *Engine) CompletePendingFileRequests(virtualPath string, writer FileDataWriter, completer CommandCompleter) {
	p := CanonicalPath(virtualPath)

	e.pendingMu.Lock()
	var matched []int32
	for id, req := range e.pending {
		if req.Path == p {
			matched = append(matched, id)
		}
	}
	e.pendingMu.Unlock()

	fc, ok := e.cache.GetFileContent(p)

	for _, id := range matched {
		e.pendingMu.Lock()
		req, stillPending := e.pending[id]
		delete(e.pending, id)
		e.pendingMu.Unlock()
		if !stillPending {
			continue
		}

		if !ok {
			if err := completer.CompleteCommand(id, model.StatusErrNoEnt); err != nil {
				e.debugf("engine: completing %d with not-found failed: %v", id, err)
			}
			continue
		}
		status := e.serveContent(fc.Bytes, req.Offset, req.Length, req.DataStreamID, writer)
		if err := completer.CompleteCommand(id, status); err != nil {
			e.debugf("engine: completing %d failed: %v", id, err)
		}
	}
}
