//go:build !windows
// +build !windows

package winprojfs

import (
	"errors"

	"github.com/juergengeck/one.projfs/pkg/engine"
)

// Provider is a non-Windows stub. ProjFS only exists on Windows, so
// every operation fails with errUnsupported; callers on other platforms
// are expected to use the engine package directly against a fake sink
// (as the test suite does) rather than a real Provider.
type Provider struct{}

var errUnsupported = errors.New("winprojfs: ProjFS is only supported on Windows")

// NewProvider returns a Provider whose Start always fails. eng is
// accepted for API symmetry with the Windows build but otherwise unused.
func NewProvider(eng *engine.Engine) *Provider {
	return &Provider{}
}

func (p *Provider) Start(virtualRoot string) error { return errUnsupported }
func (p *Provider) Stop()                          {}
func (p *Provider) DeleteFile(virtualPath string) (notFound bool, err error) {
	return false, errUnsupported
}
