package mocks

import (
	"context"

	"github.com/brettbedarf/webvfs"
	"github.com/stretchr/testify/mock"
)

// MockBackend implements webvfs.Backend for testing across packages
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Initialize(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBackend) Save(ctx context.Context, snap *webvfs.Snapshot) error {
	args := m.Called(ctx, snap)

	// Handle function return types (for capturing snapshots)
	if fn, ok := args.Get(0).(func(context.Context, *webvfs.Snapshot) error); ok {
		return fn(ctx, snap)
	}
	return args.Error(0)
}

func (m *MockBackend) Load(ctx context.Context) (*webvfs.Snapshot, error) {
	args := m.Called(ctx)

	if fn, ok := args.Get(0).(func(context.Context) *webvfs.Snapshot); ok {
		return fn(ctx), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*webvfs.Snapshot), args.Error(1)
}

func (m *MockBackend) Reset(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

var _ webvfs.Backend = (*MockBackend)(nil)
