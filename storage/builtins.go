package storage

import (
	"path/filepath"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/config"
)

type BuiltInBackendType = string

const (
	BoltBackendType    BuiltInBackendType = "bolt"
	LocalBackendType   BuiltInBackendType = "local"
	PrivateBackendType BuiltInBackendType = "private"
	HandleBackendType  BuiltInBackendType = "handle"
	ObjectBackendType  BuiltInBackendType = "object"
)

// LocalStorageFile holds the local backend's string items inside the data dir
const LocalStorageFile = "localstorage.json"

// RegisterBuiltins registers all built-in backends by default
// or only the specific ones if keys are provided
func RegisterBuiltins(backends ...BuiltInBackendType) {
	if len(backends) == 0 {
		backends = append(backends,
			BoltBackendType,
			LocalBackendType,
			PrivateBackendType,
			HandleBackendType,
			ObjectBackendType,
		)
	}

	for _, key := range backends {
		switch key {
		case BoltBackendType:
			Register(key, func(cfg *config.Config) (webvfs.Backend, error) {
				return NewBoltStore(cfg.DataDir, cfg.Name), nil
			})
		case LocalBackendType:
			Register(key, func(cfg *config.Config) (webvfs.Backend, error) {
				strs, err := NewFileStringStorage(filepath.Join(cfg.DataDir, LocalStorageFile), cfg.LocalQuota)
				if err != nil {
					return nil, err
				}
				return NewLocalStore(strs, cfg.Name), nil
			})
		case PrivateBackendType:
			Register(key, func(cfg *config.Config) (webvfs.Backend, error) {
				return NewPrivateFileStore(cfg.DataDir, cfg.Name), nil
			})
		case HandleBackendType:
			Register(key, func(cfg *config.Config) (webvfs.Backend, error) {
				s := NewHandleStore()
				if cfg.HandlePath != "" {
					if err := s.Grant(cfg.HandlePath); err != nil {
						return nil, err
					}
				}
				return s, nil
			})
		case ObjectBackendType:
			Register(key, func(cfg *config.Config) (webvfs.Backend, error) {
				return NewObjectStoreFromConfig(cfg.ObjectStore, cfg.Name)
			})
		}
	}
}
