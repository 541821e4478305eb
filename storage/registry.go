package storage

import (
	"fmt"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/config"
	"github.com/puzpuzpuz/xsync/v4"
)

// Factory builds a backend from runtime configuration
type Factory func(cfg *config.Config) (webvfs.Backend, error)

var factories = xsync.NewMap[string, Factory]()

// Register ties a factory to a backend type key and should be called for each
// backend type during app init
func Register(backendType string, factory Factory) {
	factories.Store(backendType, factory)
}

// Open builds the backend named by cfg.Backend.
// All expected backend types should be registered with [Register]
// before calling this function.
func Open(cfg *config.Config) (webvfs.Backend, error) {
	f, ok := factories.Load(cfg.Backend)
	if !ok {
		return nil, fmt.Errorf("%w: %q", webvfs.ErrUnknownBackend, cfg.Backend)
	}
	return f(cfg)
}

// Registered reports whether a factory exists for backendType
func Registered(backendType string) bool {
	_, ok := factories.Load(backendType)
	return ok
}
