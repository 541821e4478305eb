package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/internal/util"
)

var emptyEnvelope = []byte("{}")

// PrivateFileStore keeps the snapshot in a fixed application owned file,
// <data_dir>/private/<name>.json
type PrivateFileStore struct {
	path string
}

func NewPrivateFileStore(dataDir, name string) *PrivateFileStore {
	return &PrivateFileStore{path: filepath.Join(dataDir, "private", name+".json")}
}

func (s *PrivateFileStore) Path() string {
	return s.path
}

// Initialize gets or creates the snapshot file
func (s *PrivateFileStore) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create private dir: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	util.GetLogger("PrivateFileStore.Initialize").Debug().Str("path", s.path).Msg("Creating snapshot file")
	return writeFileAtomic(s.path, emptyEnvelope)
}

func (s *PrivateFileStore) Save(ctx context.Context, snap *webvfs.Snapshot) error {
	data, err := webvfs.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

func (s *PrivateFileStore) Load(ctx context.Context) (*webvfs.Snapshot, error) {
	data, err := readSnapshotFile(s.path)
	if err != nil {
		return nil, err
	}
	return webvfs.UnmarshalSnapshot(data)
}

// Reset overwrites the file with an empty envelope
func (s *PrivateFileStore) Reset(ctx context.Context) (bool, error) {
	if err := writeFileAtomic(s.path, emptyEnvelope); err != nil {
		return false, err
	}
	return true, nil
}

var _ webvfs.Backend = (*PrivateFileStore)(nil)
