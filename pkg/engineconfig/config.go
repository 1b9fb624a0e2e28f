// Package engineconfig provides a typed configuration surface for
// assembling an engine.Engine: mount options and cache tuning, loaded
// from a YAML file the way the teacher's cmd/ binaries load a
// configuration file before applying it, substituting a plain struct
// and gopkg.in/yaml.v3 for the teacher's jsonnet/protobuf configuration
// pipeline, which depends on infrastructure this module does not carry.
package engineconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/juergengeck/one.projfs/pkg/contentcache"
)

// Configuration is the root of a provider host's config file.
type Configuration struct {
	// VirtualizationRoot is the local directory mounted as the
	// ProjFS virtualization root.
	VirtualizationRoot string `yaml:"virtualizationRoot"`
	// ObjectStoreRoot is the on-disk root of the content-addressed
	// object store.
	ObjectStoreRoot string      `yaml:"objectStoreRoot"`
	Cache           CacheConfig `yaml:"cache"`
	// MetricsListenAddress, if set, is the address the host serves
	// /metrics on, following the teacher's cmd/bb_scheduler convention
	// of a dedicated metrics listen address. Left empty, no metrics
	// server is started.
	MetricsListenAddress string `yaml:"metricsListenAddress"`
}

// CacheConfig is the YAML-facing mirror of contentcache.Config.
type CacheConfig struct {
	TTLSeconds            int `yaml:"ttlSeconds"`
	MaxContentBytes       int `yaml:"maxContentBytes"`
	FileInfoEvictionEvery int `yaml:"fileInfoEvictionEvery"`
	DirectoryEvictionSize int `yaml:"directoryEvictionSize"`
	ContentEvictionSize   int `yaml:"contentEvictionSize"`
}

// ToContentCacheConfig converts the YAML-facing cache config into
// contentcache.Config, falling back to the engine's original fixed
// constants for any zero field.
func (c CacheConfig) ToContentCacheConfig() contentcache.Config {
	def := contentcache.DefaultConfig()
	cfg := def
	if c.TTLSeconds > 0 {
		cfg.TTL = time.Duration(c.TTLSeconds) * time.Second
	}
	if c.MaxContentBytes > 0 {
		cfg.MaxContentBytes = c.MaxContentBytes
	}
	if c.FileInfoEvictionEvery > 0 {
		cfg.FileInfoEvictionEvery = c.FileInfoEvictionEvery
	}
	if c.DirectoryEvictionSize > 0 {
		cfg.DirectoryEvictionSize = c.DirectoryEvictionSize
	}
	if c.ContentEvictionSize > 0 {
		cfg.ContentEvictionSize = c.ContentEvictionSize
	}
	return cfg
}

// Load reads and parses a Configuration from path.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engineconfig: read %s: %w", path, err)
	}
	var cfg Configuration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("engineconfig: parse %s: %w", path, err)
	}
	if cfg.VirtualizationRoot == "" {
		return nil, fmt.Errorf("engineconfig: virtualizationRoot is required")
	}
	if cfg.ObjectStoreRoot == "" {
		return nil, fmt.Errorf("engineconfig: objectStoreRoot is required")
	}
	return &cfg, nil
}
