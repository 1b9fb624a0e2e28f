package engine

import (
	"strings"
	"sync"

	"github.com/juergengeck/one.projfs/pkg/model"
)

// fakeFiller is an in-process stand-in for PrjFillDirEntryBuffer with a
// configurable capacity, used to exercise the buffer-full retry path
// without a real ProjFS kernel driver.
type fakeFiller struct {
	mu       sync.Mutex
	Capacity int
	filled   []string
}

func (f *fakeFiller) FillDirEntryBuffer(name string, info FileBasicInfo) FillResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Capacity > 0 && len(f.filled) >= f.Capacity {
		return FillBufferFull
	}
	f.filled = append(f.filled, name)
	return FillOK
}

func (f *fakeFiller) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.filled))
	copy(out, f.filled)
	return out
}

// fakeMatcher implements ProjFS's PrjFileNameMatch with a simple rule
// sufficient for tests: "" and "*" match everything, any other
// expression matches only the same name ignoring letter case.
type fakeMatcher struct{}

func (fakeMatcher) Match(name, searchExpression string) bool {
	if searchExpression == "" || searchExpression == "*" {
		return true
	}
	return strings.EqualFold(name, searchExpression)
}

// fakeWriter is an in-process stand-in for PrjWriteFileData.
type fakeWriter struct {
	mu      sync.Mutex
	written map[[16]byte][]byte
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{written: make(map[[16]byte][]byte)}
}

func (w *fakeWriter) WriteFileData(dataStreamID [16]byte, buffer []byte, byteOffset uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := make([]byte, len(buffer))
	copy(cp, buffer)
	w.written[dataStreamID] = cp
	return nil
}

func (w *fakeWriter) bytesFor(id [16]byte) []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written[id]
}

// fakeCompleter is an in-process stand-in for PrjCompleteCommand.
type fakeCompleter struct {
	mu        sync.Mutex
	completed map[int32]model.Status
}

func newFakeCompleter() *fakeCompleter {
	return &fakeCompleter{completed: make(map[int32]model.Status)}
}

func (c *fakeCompleter) CompleteCommand(commandID int32, status model.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed[commandID] = status
	return nil
}

func (c *fakeCompleter) statusFor(id int32) (model.Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.completed[id]
	return s, ok
}

// fakeMounter is an in-process stand-in for the Windows ProjFS
// registration boundary.
type fakeMounter struct {
	startErr    error
	deleteNoEnt bool
	deleteErr   error
	stopped     bool
}

func (m *fakeMounter) Start(virtualRoot string) error { return m.startErr }
func (m *fakeMounter) Stop()                          { m.stopped = true }
func (m *fakeMounter) DeleteFile(virtualPath string) (notFound bool, err error) {
	return m.deleteNoEnt, m.deleteErr
}
