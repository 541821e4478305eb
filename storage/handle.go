package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/internal/util"
)

var (
	entityEscaper   = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	entityUnescaper = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">")
)

// HandleStore persists to a file the user grants at runtime. Until [Grant]
// succeeds the store is not ready and Save, Load and Reset fail with
// [webvfs.ErrNotReady].
//
// Markup characters are entity escaped on write and unescaped on load.
type HandleStore struct {
	mu   sync.RWMutex
	path string
}

func NewHandleStore() *HandleStore {
	return &HandleStore{}
}

// Grant hands the store a file to persist to, creating it when missing
func (s *HandleStore) Grant(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open granted file: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
	util.GetLogger("HandleStore.Grant").Info().Str("path", path).Msg("Handle granted")
	return nil
}

// Revoke drops the granted file; the store is not ready afterwards
func (s *HandleStore) Revoke() {
	s.mu.Lock()
	s.path = ""
	s.mu.Unlock()
}

func (s *HandleStore) Ready() bool {
	return s.granted() != ""
}

func (s *HandleStore) granted() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Initialize is a no-op; the handle arrives through Grant
func (s *HandleStore) Initialize(ctx context.Context) error {
	return nil
}

func (s *HandleStore) Save(ctx context.Context, snap *webvfs.Snapshot) error {
	path := s.granted()
	if path == "" {
		return webvfs.ErrNotReady
	}
	data, err := webvfs.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, []byte(entityEscaper.Replace(string(data))))
}

func (s *HandleStore) Load(ctx context.Context) (*webvfs.Snapshot, error) {
	path := s.granted()
	if path == "" {
		return nil, webvfs.ErrNotReady
	}
	data, err := readSnapshotFile(path)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	return webvfs.UnmarshalSnapshot([]byte(entityUnescaper.Replace(string(data))))
}

func (s *HandleStore) Reset(ctx context.Context) (bool, error) {
	path := s.granted()
	if path == "" {
		return false, webvfs.ErrNotReady
	}
	if err := writeFileAtomic(path, emptyEnvelope); err != nil {
		return false, err
	}
	return true, nil
}

var (
	_ webvfs.Backend = (*HandleStore)(nil)
	_ webvfs.Readier = (*HandleStore)(nil)
)
