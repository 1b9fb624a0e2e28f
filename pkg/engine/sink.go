// Package engine implements the ProjFS callback state machines: the
// platform-independent logic is exercised through four narrow
// interfaces that the Windows frontend (pkg/winprojfs) adapts onto the
// real PrjFillDirEntryBuffer, PrjWriteFileData, PrjCompleteCommand, and
// PrjFileNameMatch calls, and that tests adapt onto an in-process fake.
package engine

import "github.com/juergengeck/one.projfs/pkg/model"

// FileBasicInfo is the placeholder metadata ProjFS needs to materialize a
// kernel-side record: directory flag and size. It carries no timestamps;
// the Windows frontend sets all four (creation/last-write/last-access/
// change) to the current time when it converts this into ProjFS's own
// basic-info struct.
type FileBasicInfo struct {
	IsDirectory bool
	FileSize    uint64
}

// FillResult is the outcome of one PrjFillDirEntryBuffer call.
type FillResult int

const (
	// FillOK means the entry was written to the output buffer.
	FillOK FillResult = iota
	// FillBufferFull means the buffer had no room; the entry must be
	// retried on the next callback without advancing the cursor.
	FillBufferFull
	// FillOtherError means the fill failed for a reason other than a
	// full buffer; the cursor still advances and enumeration continues.
	FillOtherError
)

// DirEntryFiller writes one directory entry into the kernel-owned output
// buffer for a single GetDirectoryEnumeration call.
type DirEntryFiller interface {
	FillDirEntryBuffer(name string, info FileBasicInfo) FillResult
}

// NameMatcher implements ProjFS's own search-expression matching
// (PrjFileNameMatch) so that enumeration filtering uses the platform's
// wildcard semantics rather than a hand-rolled one.
type NameMatcher interface {
	Match(name, searchExpression string) bool
}

// FileDataWriter writes one slice of file content back to the kernel for
// a parked or synchronous GetFileData reply.
type FileDataWriter interface {
	WriteFileData(dataStreamID [16]byte, buffer []byte, byteOffset uint64) error
}

// CommandCompleter completes a previously parked ProjFS command.
type CommandCompleter interface {
	CompleteCommand(commandID int32, status model.Status) error
}

// Mounter is the platform boundary for registering with ProjFS and
// tearing the registration down. pkg/winprojfs implements this for
// Windows; non-Windows builds link a stub that always fails to start.
type Mounter interface {
	Start(virtualRoot string) error
	Stop()
	DeleteFile(virtualPath string) (notFound bool, err error)
}
