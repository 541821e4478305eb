// Package webvfs contains core domain types and interfaces for the WebVFS
// virtual file system: the node tree, content values, snapshots and the
// storage backend contract.
package webvfs

import "context"

// Backend is a persistence strategy for whole-tree snapshots.
// Implementations differ in durability and latency but all persist the full
// snapshot on every Save; there is no delta format.
type Backend interface {
	// Initialize prepares the underlying store (open or create)
	Initialize(ctx context.Context) error

	// Save durably replaces the stored snapshot
	Save(ctx context.Context, snap *Snapshot) error

	// Load returns the stored snapshot, or nil when nothing is stored
	Load(ctx context.Context) (*Snapshot, error)

	// Reset discards the stored snapshot and reports whether anything was reset
	Reset(ctx context.Context) (bool, error)
}

// Readier is implemented by backends that cannot persist until an external
// handshake completes. Save and Load return [ErrNotReady] until Ready is true.
type Readier interface {
	Ready() bool
}
