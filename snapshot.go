package webvfs

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the whole tree wrapped in the persisted { root } envelope
type Snapshot struct {
	Root *Directory `json:"root"`
}

// NewSnapshot deep copies root into a new envelope
func NewSnapshot(root *Directory) *Snapshot {
	if root == nil {
		return &Snapshot{}
	}
	return &Snapshot{Root: root.CloneDir()}
}

// Clone returns a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	return NewSnapshot(s.Root)
}

// Empty reports whether the envelope carries no tree
func (s *Snapshot) Empty() bool {
	return s == nil || s.Root == nil
}

// MarshalSnapshot encodes a snapshot in the persisted wire shape
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot decodes persisted data. Empty input or an envelope without a
// root (e.g. "{}") yields a nil snapshot and no error.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if s.Root == nil {
		return nil, nil
	}
	return &s, nil
}
