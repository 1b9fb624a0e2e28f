package contentcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/juergengeck/one.projfs/pkg/model"
)

func TestSetGetFileInfoRoundTrip(t *testing.T) {
	c := New(DefaultConfig())
	c.SetFileInfo("/chats/msg1", model.FileInfo{Name: "msg1", Size: 4})
	fi, ok := c.GetFileInfo("/chats/msg1")
	require.True(t, ok)
	require.Equal(t, uint64(4), fi.Size)
}

func TestExpiredEntryReadsAsAbsent(t *testing.T) {
	c := New(Config{TTL: time.Millisecond, MaxContentBytes: 1 << 20, ContentEvictionSize: 100, DirectoryEvictionSize: 1000, FileInfoEvictionEvery: 100})
	now := time.Now()
	c.now = func() time.Time { return now }
	c.SetFileInfo("/a", model.FileInfo{Name: "a"})
	c.now = func() time.Time { return now.Add(time.Second) }
	_, ok := c.GetFileInfo("/a")
	require.False(t, ok)
}

func TestInvalidatePathEvictsParentListing(t *testing.T) {
	c := New(DefaultConfig())
	c.SetDirectoryListing("/chats", model.DirectoryListing{Entries: []model.FileInfo{{Name: "msg1"}}})
	c.SetFileInfo("/chats/msg1", model.FileInfo{Name: "msg1"})

	c.InvalidatePath("/chats/msg1")

	_, ok := c.GetFileInfo("/chats/msg1")
	require.False(t, ok)
	_, ok = c.GetDirectoryListing("/chats")
	require.False(t, ok)
}

func TestContentOverLimitIsNotStored(t *testing.T) {
	c := New(Config{TTL: time.Hour, MaxContentBytes: 4, ContentEvictionSize: 100, DirectoryEvictionSize: 1000, FileInfoEvictionEvery: 100})
	c.SetFileContent("/big", model.FileContent{Bytes: []byte("hello")})
	_, ok := c.GetFileContent("/big")
	require.False(t, ok)
}

func TestInvalidateAllClearsEverything(t *testing.T) {
	c := New(DefaultConfig())
	c.SetFileInfo("/a", model.FileInfo{Name: "a"})
	c.SetDirectoryListing("/", model.DirectoryListing{Entries: []model.FileInfo{{Name: "a"}}})
	c.SetFileContent("/a", model.FileContent{Bytes: []byte("x")})

	c.InvalidateAll()

	_, ok := c.GetFileInfo("/a")
	require.False(t, ok)
	_, ok = c.GetDirectoryListing("/")
	require.False(t, ok)
	_, ok = c.GetFileContent("/a")
	require.False(t, ok)
}

func TestSetTTLAffectsSubsequentReads(t *testing.T) {
	c := New(DefaultConfig())
	now := time.Now()
	c.now = func() time.Time { return now }
	c.SetFileInfo("/a", model.FileInfo{Name: "a"})

	c.SetTTL(time.Millisecond)
	c.now = func() time.Time { return now.Add(time.Second) }

	_, ok := c.GetFileInfo("/a")
	require.False(t, ok)
}

func TestStatsCountHitsAndMisses(t *testing.T) {
	c := New(DefaultConfig())
	c.SetFileInfo("/a", model.FileInfo{Name: "a"})
	c.GetFileInfo("/a")
	c.GetFileInfo("/missing")
	stats := c.GetStats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
}
