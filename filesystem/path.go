package filesystem

import (
	"strings"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/internal/util"
)

// resolveNode walks root by slash separated segments. "" and "/" are root.
// A missing segment, or a segment that names a file while more segments
// remain, is [webvfs.ErrNotFound].
func resolveNode(root *webvfs.Directory, p string) (webvfs.Node, error) {
	var cur webvfs.Node = root
	for _, seg := range util.SplitPath(p) {
		dir, ok := cur.(*webvfs.Directory)
		if !ok {
			return nil, webvfs.ErrNotFound
		}
		child, ok := dir.Child(seg)
		if !ok {
			return nil, webvfs.ErrNotFound
		}
		cur = child
	}
	return cur, nil
}

// resolveDir is resolveNode that also requires the final node to be a directory
func resolveDir(root *webvfs.Directory, p string) (*webvfs.Directory, error) {
	n, err := resolveNode(root, p)
	if err != nil {
		return nil, err
	}
	dir, ok := n.(*webvfs.Directory)
	if !ok {
		return nil, webvfs.ErrNotADirectory
	}
	return dir, nil
}

// contains reports whether target is dir or one of its descendants
func contains(dir, target *webvfs.Directory) bool {
	if dir == target {
		return true
	}
	for _, child := range dir.Children {
		if sub, ok := child.(*webvfs.Directory); ok && contains(sub, target) {
			return true
		}
	}
	return false
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}
