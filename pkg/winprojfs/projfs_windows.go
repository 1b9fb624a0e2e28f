//go:build windows
// +build windows

// Package winprojfs binds the engine's Mounter, DirEntryFiller,
// NameMatcher, FileDataWriter, and CommandCompleter interfaces onto the
// real Windows Projected File System API (ProjectedFSLib.h), the way the
// teacher's winfsp package binds its virtual.Directory tree onto WinFSP.
package winprojfs

/*
#cgo LDFLAGS: -lProjectedFSLib -lole32
#include <windows.h>
#include <ProjectedFSLib.h>
#include <stdlib.h>

HRESULT go_startVirtualizing(
	PCWSTR virtualizationRootPath,
	const PRJ_CALLBACKS *callbacks,
	const PRJ_STARTVIRTUALIZING_OPTIONS *options,
	PRJ_NAMESPACE_VIRTUALIZATION_CONTEXT *instanceContext
);
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/juergengeck/one.projfs/pkg/engine"
	"github.com/juergengeck/one.projfs/pkg/model"
)

// Provider implements engine.Mounter, engine.DirEntryFiller,
// engine.NameMatcher, engine.FileDataWriter, and engine.CommandCompleter
// against a real ProjFS virtualization instance. Exactly one Provider is
// pinned for the lifetime of virtualization, matching the design notes'
// requirement that the callback context pointer stay stable.
type Provider struct {
	mu       sync.Mutex
	ctx      C.PRJ_NAMESPACE_VIRTUALIZATION_CONTEXT
	started  bool
	eng      *engine.Engine
	instance windows.GUID
}

// NewProvider returns a Provider that will dispatch ProjFS callbacks
// into eng once started.
func NewProvider(eng *engine.Engine) *Provider {
	return &Provider{eng: eng}
}

// Start marks virtualRoot as a placeholder with a fresh instance
// identifier and registers the callback table with ProjFS.
func (p *Provider) Start(virtualRoot string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	instance, err := windows.GenerateGUID()
	if err != nil {
		return fmt.Errorf("winprojfs: generate instance id: %w", err)
	}
	p.instance = instance

	rootUTF16, err := windows.UTF16PtrFromString(virtualRoot)
	if err != nil {
		return fmt.Errorf("winprojfs: encode root path: %w", err)
	}

	if hr := C.PrjMarkDirectoryAsPlaceholder(
		(*C.WCHAR)(unsafe.Pointer(rootUTF16)),
		nil, nil,
		(*C.GUID)(unsafe.Pointer(&instance)),
	); hr != C.S_OK {
		return fmt.Errorf("winprojfs: PrjMarkDirectoryAsPlaceholder: 0x%x", uint32(hr))
	}

	callbacks := buildCallbackTable(p)
	var ctx C.PRJ_NAMESPACE_VIRTUALIZATION_CONTEXT
	if hr := C.go_startVirtualizing(
		(*C.WCHAR)(unsafe.Pointer(rootUTF16)),
		&callbacks,
		nil,
		&ctx,
	); hr != C.S_OK {
		return fmt.Errorf("winprojfs: PrjStartVirtualizing: 0x%x", uint32(hr))
	}

	p.ctx = ctx
	p.started = true
	return nil
}

// Stop ends virtualization. It does not interrupt in-flight callbacks.
func (p *Provider) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	C.PrjStopVirtualizing(p.ctx)
	p.started = false
}

// DeleteFile calls PrjDeleteFile with flags allowing removal of dirty
// placeholders and tombstones, as InvalidateTombstone requires.
func (p *Provider) DeleteFile(virtualPath string) (notFound bool, err error) {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()

	winPath, werr := windows.UTF16PtrFromString(toWindowsPath(virtualPath))
	if werr != nil {
		return false, werr
	}
	var failureReason C.PRJ_UPDATE_FAILURE_CAUSES
	hr := C.PrjDeleteFile(
		ctx,
		(*C.WCHAR)(unsafe.Pointer(winPath)),
		C.PRJ_UPDATE_ALLOW_DIRTY_METADATA|C.PRJ_UPDATE_ALLOW_DIRTY_DATA|C.PRJ_UPDATE_ALLOW_TOMBSTONE,
		&failureReason,
	)
	if hr == C.HRESULT_FROM_WIN32(C.ERROR_FILE_NOT_FOUND) || hr == C.HRESULT_FROM_WIN32(C.ERROR_PATH_NOT_FOUND) {
		return true, nil
	}
	if hr != C.S_OK {
		return false, fmt.Errorf("winprojfs: PrjDeleteFile: 0x%x", uint32(hr))
	}
	return false, nil
}

// FillDirEntryBuffer adapts onto PrjFillDirEntryBuffer for the
// PRJ_DIR_ENTRY_BUFFER_HANDLE captured by the current
// GetDirectoryEnumeration callback. The handle is passed in by the
// boundFiller that callbacks.go's dirEntryFillerFor builds for each
// callback before invoking the engine.
func (p *Provider) FillDirEntryBuffer(handle C.PRJ_DIR_ENTRY_BUFFER_HANDLE, name string, info engine.FileBasicInfo) engine.FillResult {
	nameUTF16, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return engine.FillOtherError
	}
	var basicInfo C.PRJ_FILE_BASIC_INFO
	basicInfo.IsDirectory = boolToBOOL(info.IsDirectory)
	basicInfo.FileSize = C.INT64(info.FileSize)
	setAllTimestampsNow(&basicInfo)

	hr := C.PrjFillDirEntryBuffer((*C.WCHAR)(unsafe.Pointer(nameUTF16)), &basicInfo, handle)
	switch {
	case hr == C.S_OK:
		return engine.FillOK
	case hr == C.HRESULT_FROM_WIN32(C.ERROR_INSUFFICIENT_BUFFER):
		return engine.FillBufferFull
	default:
		return engine.FillOtherError
	}
}

// Match adapts onto PrjFileNameMatch.
func (p *Provider) Match(name, searchExpression string) bool {
	nameUTF16, err1 := windows.UTF16PtrFromString(name)
	exprUTF16, err2 := windows.UTF16PtrFromString(searchExpression)
	if err1 != nil || err2 != nil {
		return false
	}
	return C.PrjFileNameMatch((*C.WCHAR)(unsafe.Pointer(nameUTF16)), (*C.WCHAR)(unsafe.Pointer(exprUTF16))) != 0
}

// WriteFileData adapts onto PrjWriteFileData, allocating an
// alignment-compliant buffer via PrjAllocateAlignedBuffer as the API
// requires.
func (p *Provider) WriteFileData(dataStreamID [16]byte, buffer []byte, byteOffset uint64) error {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()

	if len(buffer) == 0 {
		return nil
	}
	aligned := C.PrjAllocateAlignedBuffer(ctx, C.SIZE_T(len(buffer)))
	if aligned == nil {
		return fmt.Errorf("winprojfs: PrjAllocateAlignedBuffer failed")
	}
	defer C.PrjFreeAlignedBuffer(aligned)
	copyToC(aligned, buffer)

	guid := (*C.GUID)(unsafe.Pointer(&dataStreamID[0]))
	hr := C.PrjWriteFileData(ctx, guid, aligned, C.UINT64(byteOffset), C.UINT32(len(buffer)))
	if hr != C.S_OK {
		return fmt.Errorf("winprojfs: PrjWriteFileData: 0x%x", uint32(hr))
	}
	return nil
}

// CompleteCommand adapts onto PrjCompleteCommand.
func (p *Provider) CompleteCommand(commandID int32, status model.Status) error {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	hr := C.PrjCompleteCommand(ctx, C.INT32(commandID), toNTStatus(status), nil)
	if hr != C.S_OK {
		return fmt.Errorf("winprojfs: PrjCompleteCommand: 0x%x", uint32(hr))
	}
	return nil
}

func boolToBOOL(b bool) C.BOOLEAN {
	if b {
		return 1
	}
	return 0
}

func copyToC(dst unsafe.Pointer, src []byte) {
	if len(src) == 0 {
		return
	}
	C.memcpy(dst, unsafe.Pointer(&src[0]), C.size_t(len(src)))
}

// toWindowsPath converts the engine's canonical forward-slash path back
// into a backslash-separated relative path, the inverse of
// engine.CanonicalPath.
func toWindowsPath(virtualPath string) string {
	if virtualPath == "/" {
		return ""
	}
	out := make([]byte, 0, len(virtualPath))
	for i := 0; i < len(virtualPath); i++ {
		c := virtualPath[i]
		if c == '/' {
			c = '\\'
		}
		out = append(out, c)
	}
	if len(out) > 0 && out[0] == '\\' {
		out = out[1:]
	}
	return string(out)
}
