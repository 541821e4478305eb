package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/internal/util"
	bolt "go.etcd.io/bbolt"
)

var (
	boltBucket = []byte("vfs")
	boltKey    = []byte("snapshot")
)

var errNotInitialized = errors.New("store not initialized")

// BoltStore keeps the snapshot under a fixed key in a bbolt database named
// after the file system.
type BoltStore struct {
	path string
	db   *bolt.DB
}

func NewBoltStore(dataDir, name string) *BoltStore {
	return &BoltStore{path: filepath.Join(dataDir, name+".db")}
}

// Path is the database file location
func (s *BoltStore) Path() string {
	return s.path
}

// Initialize opens or creates the database and its bucket
func (s *BoltStore) Initialize(ctx context.Context) error {
	logger := util.GetLogger("BoltStore.Initialize")
	if s.db != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	s.db = db
	logger.Debug().Str("path", s.path).Msg("Opened bolt store")
	return nil
}

func (s *BoltStore) Save(ctx context.Context, snap *webvfs.Snapshot) error {
	if s.db == nil {
		return errNotInitialized
	}
	data, err := webvfs.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(boltBucket)
		if err != nil {
			return err
		}
		return b.Put(boltKey, data)
	})
}

func (s *BoltStore) Load(ctx context.Context) (*webvfs.Snapshot, error) {
	if s.db == nil {
		return nil, errNotInitialized
	}
	var snap *webvfs.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)
		if b == nil {
			return nil
		}
		// value is only valid inside the transaction; decoding copies it
		var err error
		snap, err = webvfs.UnmarshalSnapshot(b.Get(boltKey))
		return err
	})
	return snap, err
}

// Reset deletes the bucket. Reports false when there was nothing to delete.
func (s *BoltStore) Reset(ctx context.Context) (bool, error) {
	if s.db == nil {
		return false, errNotInitialized
	}
	existed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(boltBucket) == nil {
			return nil
		}
		existed = true
		return tx.DeleteBucket(boltBucket)
	})
	return existed, err
}

func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

var _ webvfs.Backend = (*BoltStore)(nil)
