package hostbridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/juergengeck/one.projfs/pkg/contentcache"
	"github.com/juergengeck/one.projfs/pkg/model"
)

func TestFetchFileInfoPopulatesCache(t *testing.T) {
	cache := contentcache.New(contentcache.DefaultConfig())
	b := New(cache)
	b.RegisterCallbacks(Callbacks{
		GetFileInfo: func(ctx context.Context, path string) (model.FileInfo, error) {
			return model.FileInfo{Name: "msg1", Size: 4}, nil
		},
	})

	b.FetchFileInfo("/chats/msg1")

	require.Eventually(t, func() bool {
		_, ok := cache.GetFileInfo("/chats/msg1")
		return ok
	}, time.Second, time.Millisecond)
}

func TestFetchDirectoryListingNotifiesWithoutCaching(t *testing.T) {
	cache := contentcache.New(contentcache.DefaultConfig())
	b := New(cache)
	notified := make(chan string, 1)
	b.Subscribe(func(path string) { notified <- path })
	b.RegisterCallbacks(Callbacks{
		ReadDirectory: func(ctx context.Context, path string) ([]model.FileInfo, error) {
			return []model.FileInfo{{Name: "objects", IsDirectory: true}}, nil
		},
	})

	b.FetchDirectoryListing("/")

	select {
	case p := <-notified:
		require.Equal(t, "/", p)
	case <-time.After(time.Second):
		t.Fatal("subscriber was not notified")
	}
	_, ok := cache.GetDirectoryListing("/")
	require.False(t, ok)
}

func TestDrainLoopDeliversQueuedCreate(t *testing.T) {
	cache := contentcache.New(contentcache.DefaultConfig())
	b := New(cache)
	created := make(chan string, 1)
	b.RegisterCallbacks(Callbacks{
		CreateFile: func(ctx context.Context, path string, data []byte) error {
			created <- path
			return nil
		},
	})
	b.Start()
	defer b.Stop()

	b.QueueCreateFile("/chats/new.txt", []byte("hi"))

	select {
	case p := <-created:
		require.Equal(t, "/chats/new.txt", p)
	case <-time.After(2 * time.Second):
		t.Fatal("queued create was never drained")
	}
}

func TestDrainLoopDeliversQueuedUpdateAndDelete(t *testing.T) {
	cache := contentcache.New(contentcache.DefaultConfig())
	b := New(cache)
	updated := make(chan string, 1)
	deleted := make(chan string, 1)
	b.RegisterCallbacks(Callbacks{
		UpdateFile: func(ctx context.Context, path string, data []byte) error {
			updated <- path
			return nil
		},
		DeleteFile: func(ctx context.Context, path string) error {
			deleted <- path
			return nil
		},
	})
	b.Start()
	defer b.Stop()

	b.QueueUpdateFile("/chats/msg1", []byte("edited"))
	b.QueueDeleteFile("/chats/msg2")

	select {
	case p := <-updated:
		require.Equal(t, "/chats/msg1", p)
	case <-time.After(2 * time.Second):
		t.Fatal("queued update was never drained")
	}
	select {
	case p := <-deleted:
		require.Equal(t, "/chats/msg2", p)
	case <-time.After(2 * time.Second):
		t.Fatal("queued delete was never drained")
	}
}

func TestStopClearsCallbacksAndStopsWorker(t *testing.T) {
	cache := contentcache.New(contentcache.DefaultConfig())
	b := New(cache)
	b.RegisterCallbacks(Callbacks{GetFileInfo: func(ctx context.Context, path string) (model.FileInfo, error) {
		return model.FileInfo{}, nil
	}})
	b.Start()
	require.True(t, b.IsRunning())
	b.Stop()
	require.False(t, b.IsRunning())

	b.FetchFileInfo("/anything")
	_, ok := cache.GetFileInfo("/anything")
	require.False(t, ok)
}
