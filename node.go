package webvfs

import (
	"encoding/json"
	"fmt"
	"time"
)

// NodeKind valid kinds are DirectoryKind "directory", FileKind "file"
type NodeKind string

const (
	DirectoryKind NodeKind = "directory"
	FileKind      NodeKind = "file"
)

// Node is a Directory or File entry in the tree. The only implementations are
// [*Directory] and [*File] so a type switch over both is exhaustive.
//
// Permission is stored on every node but the core never enforces it beyond
// directory creation. Callers acting on behalf of a user are expected to compare
// a node's Permission against their acting permission ([Permission.Allows])
// before calling mutating operations.
type Node interface {
	Kind() NodeKind
	Meta() *NodeMeta
	// Clone returns a deep copy that shares nothing with the receiver
	Clone() Node
	isNode()
}

// NodeMeta has common fields embedded in concrete node types
type NodeMeta struct {
	CreatedAt  time.Time
	Permission Permission
	Deletable  bool
}

func (m *NodeMeta) Meta() *NodeMeta {
	return m
}

// Directory holds child nodes keyed by name
type Directory struct {
	NodeMeta
	Children map[string]Node
}

// NewDirectory returns an empty directory created now
func NewDirectory(perm Permission, deletable bool) *Directory {
	return &Directory{
		NodeMeta: NodeMeta{
			CreatedAt:  time.Now(),
			Permission: perm,
			Deletable:  deletable,
		},
		Children: make(map[string]Node),
	}
}

func (d *Directory) Kind() NodeKind { return DirectoryKind }

func (d *Directory) isNode() {}

func (d *Directory) Clone() Node {
	return d.CloneDir()
}

// CloneDir is [Directory.Clone] without the interface conversion
func (d *Directory) CloneDir() *Directory {
	c := &Directory{
		NodeMeta: d.NodeMeta,
		Children: make(map[string]Node, len(d.Children)),
	}
	for name, child := range d.Children {
		c.Children[name] = child.Clone()
	}
	return c
}

// Child looks up a direct child by name
func (d *Directory) Child(name string) (Node, bool) {
	n, ok := d.Children[name]
	return n, ok
}

// File is a leaf node carrying opaque content
type File struct {
	NodeMeta
	ContentType string
	Content     Content
}

// NewFile returns a file created now
func NewFile(content Content, contentType string, perm Permission, deletable bool) *File {
	return &File{
		NodeMeta: NodeMeta{
			CreatedAt:  time.Now(),
			Permission: perm,
			Deletable:  deletable,
		},
		ContentType: contentType,
		Content:     content,
	}
}

func (f *File) Kind() NodeKind { return FileKind }

func (f *File) isNode() {}

func (f *File) Clone() Node {
	return f.CloneFile()
}

// CloneFile is [File.Clone] without the interface conversion
func (f *File) CloneFile() *File {
	c := *f
	c.Content = f.Content.Clone()
	return &c
}

// nodeJSON is the decode shape shared by both node kinds
type nodeJSON struct {
	Kind        NodeKind                   `json:"kind"`
	CreatedAt   int64                      `json:"createdAt"` // unix millis
	Permission  Permission                 `json:"permission"`
	Deletable   bool                       `json:"deletable"`
	Children    map[string]json.RawMessage `json:"children"`
	ContentType string                     `json:"contentType"`
	Content     json.RawMessage            `json:"content"`
}

type metaJSON struct {
	Kind       NodeKind   `json:"kind"`
	CreatedAt  int64      `json:"createdAt"`
	Permission Permission `json:"permission"`
	Deletable  bool       `json:"deletable"`
}

type dirJSON struct {
	metaJSON
	Children map[string]json.RawMessage `json:"children"`
}

type fileJSON struct {
	metaJSON
	ContentType string          `json:"contentType"`
	Content     json.RawMessage `json:"content"`
}

func (m *NodeMeta) toJSON(kind NodeKind) metaJSON {
	return metaJSON{
		Kind:       kind,
		CreatedAt:  m.CreatedAt.UnixMilli(),
		Permission: m.Permission,
		Deletable:  m.Deletable,
	}
}

func (m *NodeMeta) fromJSON(raw *nodeJSON) {
	m.CreatedAt = time.UnixMilli(raw.CreatedAt)
	m.Permission = raw.Permission
	m.Deletable = raw.Deletable
}

func (d *Directory) MarshalJSON() ([]byte, error) {
	raw := dirJSON{
		metaJSON: d.toJSON(DirectoryKind),
		Children: make(map[string]json.RawMessage, len(d.Children)),
	}
	for name, child := range d.Children {
		b, err := json.Marshal(child)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal child %q: %w", name, err)
		}
		raw.Children[name] = b
	}
	return json.Marshal(raw)
}

func (d *Directory) UnmarshalJSON(data []byte) error {
	n, err := UnmarshalNode(data)
	if err != nil {
		return err
	}
	dir, ok := n.(*Directory)
	if !ok {
		return fmt.Errorf("expected %s node, got %s", DirectoryKind, n.Kind())
	}
	*d = *dir
	return nil
}

func (f *File) MarshalJSON() ([]byte, error) {
	content, err := f.Content.encode()
	if err != nil {
		return nil, err
	}
	return json.Marshal(fileJSON{
		metaJSON:    f.toJSON(FileKind),
		ContentType: f.ContentType,
		Content:     content,
	})
}

func (f *File) UnmarshalJSON(data []byte) error {
	n, err := UnmarshalNode(data)
	if err != nil {
		return err
	}
	file, ok := n.(*File)
	if !ok {
		return fmt.Errorf("expected %s node, got %s", FileKind, n.Kind())
	}
	*f = *file
	return nil
}

// UnmarshalNode decodes a persisted node, dispatching on its "kind" field
func UnmarshalNode(data []byte) (Node, error) {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	switch raw.Kind {
	case DirectoryKind:
		dir := &Directory{Children: make(map[string]Node, len(raw.Children))}
		dir.fromJSON(&raw)
		for name, rawChild := range raw.Children {
			child, err := UnmarshalNode(rawChild)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal child %q: %w", name, err)
			}
			dir.Children[name] = child
		}
		return dir, nil
	case FileKind:
		file := &File{ContentType: raw.ContentType}
		file.fromJSON(&raw)
		content, err := decodeContent(raw.ContentType, raw.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s content: %w", raw.ContentType, err)
		}
		file.Content = content
		return file, nil
	default:
		return nil, fmt.Errorf("unknown node kind: %q", raw.Kind)
	}
}
