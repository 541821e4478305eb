package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/config"
	"github.com/brettbedarf/webvfs/internal/util"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore keeps the snapshot as a single JSON object in an S3 compatible
// bucket, <prefix>/<name>.json
type ObjectStore struct {
	client *minio.Client
	bucket string
	key    string
}

func NewObjectStore(client *minio.Client, bucket, prefix, name string) *ObjectStore {
	return &ObjectStore{
		client: client,
		bucket: bucket,
		key:    path.Join(prefix, name+".json"),
	}
}

// NewObjectStoreFromConfig dials the configured endpoint with static credentials
func NewObjectStoreFromConfig(opts config.ObjectStoreOptions, name string) (*ObjectStore, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return NewObjectStore(client, opts.Bucket, opts.Prefix, name), nil
}

// Key is the object key the snapshot lives under
func (s *ObjectStore) Key() string {
	return s.key
}

// Initialize makes the bucket when missing
func (s *ObjectStore) Initialize(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	util.GetLogger("ObjectStore.Initialize").Info().Str("bucket", s.bucket).Msg("Creating bucket")
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to make bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *ObjectStore) Save(ctx context.Context, snap *webvfs.Snapshot) error {
	data, err := webvfs.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (s *ObjectStore) Load(ctx context.Context) (*webvfs.Snapshot, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, objectErr(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, objectErr(err)
	}
	return webvfs.UnmarshalSnapshot(data)
}

func (s *ObjectStore) Reset(ctx context.Context) (bool, error) {
	err := s.client.RemoveObject(ctx, s.bucket, s.key, minio.RemoveObjectOptions{})
	if err := objectErr(err); err != nil {
		return false, err
	}
	return true, nil
}

// objectErr maps a missing object to nil
func objectErr(err error) error {
	if err == nil {
		return nil
	}
	code := minio.ToErrorResponse(err).Code
	if code == "NoSuchKey" || code == "NotFound" {
		return nil
	}
	return err
}

var _ webvfs.Backend = (*ObjectStore)(nil)
