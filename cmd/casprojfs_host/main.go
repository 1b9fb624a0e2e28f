// Command casprojfs_host demonstrates wiring the ProjFS callback engine
// together with a provider host. The host-language bindings and the
// host's own object-fetch logic are out of scope for this engine; this
// binary stands in for them with a minimal in-memory demo host so the
// engine can be exercised end-to-end.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/juergengeck/one.projfs/pkg/contentcache"
	"github.com/juergengeck/one.projfs/pkg/engine"
	"github.com/juergengeck/one.projfs/pkg/engineconfig"
	"github.com/juergengeck/one.projfs/pkg/hostbridge"
	"github.com/juergengeck/one.projfs/pkg/model"
	"github.com/juergengeck/one.projfs/pkg/objectstore"
	"github.com/juergengeck/one.projfs/pkg/winprojfs"
)

func main() {
	configPath := pflag.String("config", "", "path to the casprojfs_host YAML configuration file")
	pflag.Parse()
	if *configPath == "" {
		log.Fatal("Usage: casprojfs_host --config casprojfs_host.yaml")
	}

	cfg, err := engineconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %s", *configPath, err)
	}

	cache := contentcache.New(cfg.Cache.ToContentCacheConfig())
	store, err := objectstore.New(cfg.ObjectStoreRoot)
	if err != nil {
		log.Fatalf("Failed to initialize object store at %s: %s", cfg.ObjectStoreRoot, err)
	}
	bridge := hostbridge.New(cache)

	logger := log.New(os.Stderr, "casprojfs_host: ", log.LstdFlags)
	eng := engine.New(cache, store, bridge, nil, logger)
	eng.SetMounter(winprojfs.NewProvider(eng))

	registerDemoHost(bridge, eng)

	if cfg.MetricsListenAddress != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			log.Fatal(http.ListenAndServe(cfg.MetricsListenAddress, nil))
		}()
	}

	if err := eng.Start(cfg.VirtualizationRoot); err != nil {
		log.Fatalf("Failed to start virtualization at %s: %s", cfg.VirtualizationRoot, err)
	}
	logger.Printf("virtualizing %s", cfg.VirtualizationRoot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Print("shutting down")
	eng.Stop()
}

// registerDemoHost wires a trivial in-memory directory ("chats") as a
// stand-in for the real asynchronous host the engine is designed to
// talk to.
func registerDemoHost(bridge *hostbridge.Bridge, eng *engine.Engine) {
	demo := map[string][]model.FileInfo{
		"/": {
			{Name: "objects", IsDirectory: true},
			{Name: "chats", IsDirectory: true},
		},
		"/chats": {},
	}
	bridge.RegisterCallbacks(hostbridge.Callbacks{
		ReadDirectory: func(ctx context.Context, path string) ([]model.FileInfo, error) {
			entries := demo[path]
			eng.SetCachedDirectory(path, entries)
			return entries, nil
		},
		GetFileInfo: func(ctx context.Context, path string) (model.FileInfo, error) {
			return model.FileInfo{}, os.ErrNotExist
		},
		OnDebugMessage: func(text string) {
			log.Print(text)
		},
	})
}
