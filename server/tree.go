package server

import (
	"context"
	"syscall"
	"time"

	"github.com/brettbedarf/webvfs"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// fileMode maps a node permission to read only file permission bits.
// Higher permissions narrow who may read.
func fileMode(p webvfs.Permission) uint32 {
	switch {
	case p <= webvfs.User:
		return 0o444
	case p == webvfs.Elevated:
		return 0o440
	default:
		return 0o400
	}
}

// dirMode is fileMode with search bits set wherever read is
func dirMode(p webvfs.Permission) uint32 {
	m := fileMode(p)
	return m | (m>>2)&0o111
}

// dirNode serves a webvfs directory with its permission derived mode
type dirNode struct {
	fs.Inode
	dir *webvfs.Directory
}

var _ = (fs.NodeGetattrer)((*dirNode)(nil))

func (n *dirNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | dirMode(n.dir.Permission)
	setTimes(&out.Attr, n.dir.CreatedAt)
	return fs.OK
}

// rootNode builds the whole persistent inode tree when mounted
type rootNode struct {
	dirNode
}

var _ = (fs.NodeOnAdder)((*rootNode)(nil))

func newRoot(root *webvfs.Directory) *rootNode {
	return &rootNode{dirNode{dir: root}}
}

func (r *rootNode) OnAdd(ctx context.Context) {
	addChildren(ctx, &r.Inode, r.dir)
}

func addChildren(ctx context.Context, parent *fs.Inode, dir *webvfs.Directory) {
	for name, child := range dir.Children {
		switch n := child.(type) {
		case *webvfs.Directory:
			ch := parent.NewPersistentInode(ctx, &dirNode{dir: n}, fs.StableAttr{Mode: fuse.S_IFDIR})
			parent.AddChild(name, ch, true)
			addChildren(ctx, ch, n)
		case *webvfs.File:
			ch := parent.NewPersistentInode(ctx, newFileNode(n), fs.StableAttr{})
			parent.AddChild(name, ch, true)
		}
	}
}

func newFileNode(f *webvfs.File) *fs.MemRegularFile {
	attr := fuse.Attr{Mode: fileMode(f.Permission)}
	setTimes(&attr, f.CreatedAt)
	return &fs.MemRegularFile{
		Data: f.Content.Bytes(),
		Attr: attr,
	}
}

func setTimes(attr *fuse.Attr, t time.Time) {
	attr.SetTimes(&t, &t, &t)
}
