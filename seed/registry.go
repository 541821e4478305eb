// Package seed opens the snapshot used to populate an empty tree. A location
// is either a plain file path or a URL whose scheme selects a registered
// source.
package seed

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/brettbedarf/webvfs"
	"github.com/puzpuzpuz/xsync/v4"
)

// Source opens a seed snapshot for reading
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Factory builds a source for a location of its scheme
type Factory func(location string) (Source, error)

var factories = xsync.NewMap[string, Factory]()

// Register ties a factory to a URL scheme and should be called for each
// source type during app init
func Register(scheme string, factory Factory) {
	factories.Store(scheme, factory)
}

// NewSource picks the source for location. Paths without a scheme and
// file:// URLs are always served from disk; any other scheme must be registered
// with [Register] first.
func NewSource(location string) (Source, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return &FileSource{Path: location}, nil
	}
	if u.Scheme == FileSourceType {
		return &FileSource{Path: u.Path}, nil
	}
	f, ok := factories.Load(u.Scheme)
	if !ok {
		return nil, fmt.Errorf("no seed source for scheme %q", u.Scheme)
	}
	return f(location)
}

// Load opens location and decodes the snapshot it holds. An empty envelope
// yields a nil snapshot.
func Load(ctx context.Context, location string) (*webvfs.Snapshot, error) {
	src, err := NewSource(location)
	if err != nil {
		return nil, err
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed: %w", err)
	}
	snap, err := webvfs.UnmarshalSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	return snap, nil
}
