package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/brettbedarf/webvfs"
	"github.com/dustin/go-humanize"
	"github.com/puzpuzpuz/xsync/v4"
)

// ErrQuotaExceeded the string store has no room for the value
var ErrQuotaExceeded = errors.New("quota exceeded")

// StringStorage is a synchronous string key-value store with a size ceiling
type StringStorage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// MemoryStorage is an in-process StringStorage. Usage is counted as the byte
// length of every key plus value.
type MemoryStorage struct {
	items *xsync.Map[string, string]
	quota int        // bytes; 0 disables the ceiling
	mu    sync.Mutex // serializes quota check + write
}

func NewMemoryStorage(quota int) *MemoryStorage {
	return &MemoryStorage{
		items: xsync.NewMap[string, string](),
		quota: quota,
	}
}

func (m *MemoryStorage) GetItem(key string) (string, bool) {
	return m.items.Load(key)
}

func (m *MemoryStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quota > 0 {
		used := len(key) + len(value)
		m.items.Range(func(k, v string) bool {
			if k != key {
				used += len(k) + len(v)
			}
			return true
		})
		if used > m.quota {
			return fmt.Errorf("%w: %s of %s", ErrQuotaExceeded, humanize.Bytes(uint64(used)), humanize.Bytes(uint64(m.quota)))
		}
	}
	m.items.Store(key, value)
	return nil
}

func (m *MemoryStorage) RemoveItem(key string) error {
	m.mu.Lock()
	m.items.Delete(key)
	m.mu.Unlock()
	return nil
}

// Used returns the bytes currently counted against the quota
func (m *MemoryStorage) Used() int {
	used := 0
	m.items.Range(func(k, v string) bool {
		used += len(k) + len(v)
		return true
	})
	return used
}

// FileStringStorage is a MemoryStorage mirrored to a single JSON object file,
// so items outlive the process. Every SetItem and RemoveItem rewrites the
// file; when the write fails the item keeps its previous value.
type FileStringStorage struct {
	mem  *MemoryStorage
	path string
	mu   sync.Mutex
}

// NewFileStringStorage loads the items already stored at path, if any
func NewFileStringStorage(path string, quota int) (*FileStringStorage, error) {
	s := &FileStringStorage{mem: NewMemoryStorage(quota), path: path}

	data, err := readSnapshotFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) > 0 {
		var items map[string]string
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for k, v := range items {
			s.mem.items.Store(k, v)
		}
	}
	return s, nil
}

// Path is the file the items are kept in
func (s *FileStringStorage) Path() string {
	return s.path
}

func (s *FileStringStorage) GetItem(key string) (string, bool) {
	return s.mem.GetItem(key)
}

func (s *FileStringStorage) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.mem.GetItem(key)
	if err := s.mem.SetItem(key, value); err != nil {
		return err
	}
	if err := s.persistLocked(); err != nil {
		s.restoreLocked(key, prev, had)
		return err
	}
	return nil
}

func (s *FileStringStorage) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.mem.GetItem(key)
	if !had {
		return nil
	}
	_ = s.mem.RemoveItem(key)
	if err := s.persistLocked(); err != nil {
		s.restoreLocked(key, prev, had)
		return err
	}
	return nil
}

// Used returns the bytes currently counted against the quota
func (s *FileStringStorage) Used() int {
	return s.mem.Used()
}

func (s *FileStringStorage) restoreLocked(key, prev string, had bool) {
	if had {
		s.mem.items.Store(key, prev)
		return
	}
	s.mem.items.Delete(key)
}

func (s *FileStringStorage) persistLocked() error {
	items := make(map[string]string, s.mem.items.Size())
	s.mem.items.Range(func(k, v string) bool {
		items[k] = v
		return true
	})
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// LocalStore stringifies the snapshot under a fixed key in a StringStorage
type LocalStore struct {
	storage StringStorage
	key     string
}

func NewLocalStore(storage StringStorage, name string) *LocalStore {
	return &LocalStore{
		storage: storage,
		key:     "webvfs:" + name,
	}
}

// Key is the storage key the snapshot lives under
func (s *LocalStore) Key() string {
	return s.key
}

func (s *LocalStore) Initialize(ctx context.Context) error {
	return nil
}

func (s *LocalStore) Save(ctx context.Context, snap *webvfs.Snapshot) error {
	data, err := webvfs.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	return s.storage.SetItem(s.key, string(data))
}

func (s *LocalStore) Load(ctx context.Context) (*webvfs.Snapshot, error) {
	v, ok := s.storage.GetItem(s.key)
	if !ok {
		return nil, nil
	}
	return webvfs.UnmarshalSnapshot([]byte(v))
}

func (s *LocalStore) Reset(ctx context.Context) (bool, error) {
	if err := s.storage.RemoveItem(s.key); err != nil {
		return false, err
	}
	return true, nil
}

var (
	_ webvfs.Backend = (*LocalStore)(nil)
	_ StringStorage  = (*MemoryStorage)(nil)
	_ StringStorage  = (*FileStringStorage)(nil)
)
