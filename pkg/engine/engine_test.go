package engine

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/juergengeck/one.projfs/pkg/contentcache"
	"github.com/juergengeck/one.projfs/pkg/hostbridge"
	"github.com/juergengeck/one.projfs/pkg/model"
	"github.com/juergengeck/one.projfs/pkg/objectstore"
)

var assertErr = errors.New("engine test: forced mounter failure")

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestEngine(t *testing.T) (*Engine, *contentcache.Cache, *hostbridge.Bridge, string) {
	t.Helper()
	root := t.TempDir()
	cache := contentcache.New(contentcache.DefaultConfig())
	store, err := objectstore.New(root)
	require.NoError(t, err)
	bridge := hostbridge.New(cache)
	e := New(cache, store, bridge, &fakeMounter{}, log.New(nopWriter{}, "", 0))
	return e, cache, bridge, root
}

// Scenario 1: root enumeration from empty cache.
func TestScenarioRootEnumerationFromEmptyCache(t *testing.T) {
	e, _, bridge, _ := newTestEngine(t)
	bridge.RegisterCallbacks(hostbridge.Callbacks{
		ReadDirectory: func(ctx context.Context, path string) ([]model.FileInfo, error) {
			time.Sleep(80 * time.Millisecond)
			e.SetCachedDirectory("/", []model.FileInfo{
				{Name: "objects", IsDirectory: true},
				{Name: "chats", IsDirectory: true},
			})
			return nil, nil
		},
	})
	bridge.Start()
	defer bridge.Stop()

	id := uuid.New()
	e.StartDirectoryEnumeration(id)
	filler := &fakeFiller{}
	status := e.GetDirectoryEnumeration(id, "/", "", false, filler, fakeMatcher{})
	require.Equal(t, model.StatusOK, status)
	require.ElementsMatch(t, []string{"objects", "chats"}, filler.names())
	e.EndDirectoryEnumeration(id)
	_, ok := e.enumTbl.Lookup(id)
	require.False(t, ok)
}

// Scenario 2: placeholder served from parent listing, no fresh host call.
func TestScenarioPlaceholderFromParentListing(t *testing.T) {
	e, cache, _, _ := newTestEngine(t)
	cache.SetDirectoryListing("/", model.DirectoryListing{Entries: []model.FileInfo{
		{Name: "objects", IsDirectory: true},
		{Name: "chats", IsDirectory: true},
	}})

	res := e.GetPlaceholderInfo("chats")
	require.True(t, res.Found)
	require.True(t, res.Info.IsDirectory)
	require.Equal(t, uint64(0), res.Info.FileSize)
}

// Scenario 3: file data miss parks, then completes after the host
// populates the cache.
func TestScenarioFileDataMissThenCompletion(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	writer := newFakeWriter()
	completer := newFakeCompleter()
	var streamID [16]byte
	streamID[0] = 7

	status := e.GetFileData(42, "/chats/msg1", 0, 4096, 0, streamID, writer)
	require.Equal(t, model.StatusErrPending, status)

	payload := make([]byte, 2048)
	for i := range payload {
		payload[i] = byte(i)
	}
	e.SetCachedContent("/chats/msg1", payload)
	e.CompletePendingFileRequests("/chats/msg1", writer, completer)

	gotStatus, ok := completer.statusFor(42)
	require.True(t, ok)
	require.Equal(t, model.StatusOK, gotStatus)
	require.Equal(t, payload, writer.bytesFor(streamID))
	require.Equal(t, uint64(2048), e.GetStats().BytesRead)
}

// Scenario 4: object subtree enumeration and reads.
func TestScenarioObjectSubtree(t *testing.T) {
	e, _, _, root := newTestEngine(t)
	hash := "deadbeef0000000000000000000000000000000000000000000000000000beef"
	require.NoError(t, os.WriteFile(filepath.Join(root, "objects", hash), []byte("hello"), 0o644))

	id := uuid.New()
	e.StartDirectoryEnumeration(id)
	filler := &fakeFiller{}
	status := e.GetDirectoryEnumeration(id, "/objects/"+hash, "", false, filler, fakeMatcher{})
	require.Equal(t, model.StatusOK, status)
	require.Equal(t, []string{"raw.txt", "pretty.html", "json.txt", "type.txt"}, filler.names())
	e.EndDirectoryEnumeration(id)

	writer := newFakeWriter()
	var sid [16]byte
	e.GetFileData(1, "/objects/"+hash+"/raw.txt", 0, 10, 0, sid, writer)
	require.Equal(t, "hello", string(writer.bytesFor(sid)))

	var sid2 [16]byte
	sid2[0] = 1
	e.GetFileData(2, "/objects/"+hash+"/type.txt", 0, 10, 0, sid2, writer)
	require.Equal(t, "BLOB", string(writer.bytesFor(sid2)))
}

// Scenario 5: write denial, no host call issued.
func TestScenarioWriteDenial(t *testing.T) {
	e, _, bridge, _ := newTestEngine(t)
	called := false
	bridge.RegisterCallbacks(hostbridge.Callbacks{
		CreateFile: func(ctx context.Context, path string, data []byte) error {
			called = true
			return nil
		},
	})
	bridge.Start()
	defer bridge.Stop()

	status := e.Notification(NotificationNewFileCreated, "/chats/new.txt")
	require.Equal(t, model.StatusErrAccess, status)
	time.Sleep(150 * time.Millisecond)
	require.False(t, called)
}

// Scenario 6: tombstone clear.
func TestScenarioTombstoneClear(t *testing.T) {
	e, cache, _, _ := newTestEngine(t)
	cache.SetFileInfo("/chats/old.txt", model.FileInfo{Name: "old.txt"})
	e.mounter.(*fakeMounter).deleteNoEnt = true

	ok := e.InvalidateTombstone("/chats/old.txt")
	require.True(t, ok)
	_, cached := cache.GetFileInfo("/chats/old.txt")
	require.False(t, cached)
}

func TestRestartScanYieldsFreshSequence(t *testing.T) {
	e, cache, _, _ := newTestEngine(t)
	cache.SetDirectoryListing("/chats", model.DirectoryListing{Entries: []model.FileInfo{
		{Name: "a"}, {Name: "b"},
	}})
	id := uuid.New()
	e.StartDirectoryEnumeration(id)
	filler1 := &fakeFiller{}
	e.GetDirectoryEnumeration(id, "/chats", "", false, filler1, fakeMatcher{})
	require.Equal(t, []string{"a", "b"}, filler1.names())

	filler2 := &fakeFiller{}
	e.GetDirectoryEnumeration(id, "/chats", "", true, filler2, fakeMatcher{})
	require.Equal(t, []string{"a", "b"}, filler2.names())
}

func TestEnumerationCallCountGuard(t *testing.T) {
	e, cache, _, _ := newTestEngine(t)
	cache.SetDirectoryListing("/chats", model.DirectoryListing{Entries: []model.FileInfo{{Name: "a"}}})
	id := uuid.New()
	e.StartDirectoryEnumeration(id)
	s, _ := e.enumTbl.Lookup(id)
	e.enumTbl.Lock()
	s.CallCount = model.MaxCallsPerEnumeration
	e.enumTbl.Unlock()

	filler := &fakeFiller{}
	status := e.GetDirectoryEnumeration(id, "/chats", "", false, filler, fakeMatcher{})
	require.Equal(t, model.StatusOK, status)
	require.Empty(t, filler.names())
}

func TestBufferFullDoesNotAdvanceCursor(t *testing.T) {
	e, cache, _, _ := newTestEngine(t)
	cache.SetDirectoryListing("/chats", model.DirectoryListing{Entries: []model.FileInfo{
		{Name: "a"}, {Name: "b"}, {Name: "c"},
	}})
	id := uuid.New()
	e.StartDirectoryEnumeration(id)

	filler := &fakeFiller{Capacity: 1}
	e.GetDirectoryEnumeration(id, "/chats", "", false, filler, fakeMatcher{})
	require.Equal(t, []string{"a"}, filler.names())

	filler.Capacity = 10
	e.GetDirectoryEnumeration(id, "/chats", "", false, filler, fakeMatcher{})
	require.Equal(t, []string{"a", "b", "c"}, filler.names())
}

func TestUnknownNotificationDenied(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	status := e.Notification(NotificationType(999), "/x")
	require.Equal(t, model.StatusErrAccess, status)
}

func TestEnumerationCallbacksAndActiveCountersTrackLifecycle(t *testing.T) {
	e, cache, _, _ := newTestEngine(t)
	cache.SetDirectoryListing("/chats", model.DirectoryListing{Entries: []model.FileInfo{{Name: "a"}}})
	id := uuid.New()
	e.StartDirectoryEnumeration(id)
	require.Equal(t, uint64(1), e.GetStats().ActiveEnumerations)

	e.GetDirectoryEnumeration(id, "/chats", "", false, &fakeFiller{}, fakeMatcher{})
	require.Equal(t, uint64(1), e.GetStats().EnumerationCallbacks)

	e.EndDirectoryEnumeration(id)
	require.Equal(t, uint64(0), e.GetStats().ActiveEnumerations)
}

func TestGetLastErrorReportsStartFailure(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	require.Nil(t, e.GetLastError())
	e.mounter.(*fakeMounter).startErr = assertErr
	err := e.Start(filepath.Join(t.TempDir(), "root"))
	require.Error(t, err)
	require.ErrorIs(t, e.GetLastError(), assertErr)
}

func TestInvalidateAllCachedAndSetCacheTTL(t *testing.T) {
	e, cache, _, _ := newTestEngine(t)
	cache.SetFileInfo("/a", model.FileInfo{Name: "a"})
	e.InvalidateAllCached()
	_, ok := cache.GetFileInfo("/a")
	require.False(t, ok)

	e.SetCacheTTL(time.Hour)
	cache.SetFileInfo("/b", model.FileInfo{Name: "b"})
	_, ok = cache.GetFileInfo("/b")
	require.True(t, ok)
}
