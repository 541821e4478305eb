package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/config"
	"github.com/brettbedarf/webvfs/internal/util"
	"github.com/brettbedarf/webvfs/seed"
	"github.com/brettbedarf/webvfs/storage"
)

// FileSystem is the public facade over an in-memory node tree.
//
// Reads never touch the backend. Every successful mutation hands a deep copy
// of the tree to the storage manager, which debounces the actual save.
// Calls are serialized; at most one mutation runs at a time.
//
// Neither Deletable nor node permissions are checked by any operation.
// Callers acting for a user must gate access themselves.
type FileSystem struct {
	cfg   *config.Config
	store *storage.Manager

	mu   sync.Mutex
	root *webvfs.Directory
	// unhydrated holds saves back until Initialize has reached a ready backend
	unhydrated bool
}

// New wires a facade to backend. The tree holds only the default root until
// Initialize hydrates it. Mutations against a [webvfs.Readier] backend are not
// saved before then.
func New(cfg *config.Config, backend webvfs.Backend, opts ...storage.ManagerOption) *FileSystem {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	_, gated := backend.(webvfs.Readier)
	return &FileSystem{
		cfg:        cfg,
		store:      storage.NewManager(backend, cfg.SaveDelay, opts...),
		root:       defaultRoot(),
		unhydrated: gated,
	}
}

func defaultRoot() *webvfs.Directory {
	return webvfs.NewDirectory(webvfs.System, false)
}

// Manager returns the storage manager in front of the backend
func (fs *FileSystem) Manager() *storage.Manager {
	return fs.store
}

// Initialize prepares the backend and hydrates the tree from it. When nothing
// is stored the default tree is seeded and a save is scheduled.
//
// A [webvfs.Readier] backend that is not ready fails with [webvfs.ErrNotReady];
// the tree is left as is and nothing is saved until a later Initialize succeeds.
func (fs *FileSystem) Initialize(ctx context.Context) error {
	logger := util.GetLogger("FS.Initialize")

	if err := fs.store.Initialize(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to initialize backend")
		return fmt.Errorf("failed to initialize backend: %w", err)
	}
	if r, ok := fs.store.Backend().(webvfs.Readier); ok && !r.Ready() {
		logger.Warn().Msg("Backend not ready, tree not hydrated")
		return fmt.Errorf("failed to initialize backend: %w", webvfs.ErrNotReady)
	}

	snap := fs.store.Load(ctx)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.unhydrated = false
	if snap != nil {
		fs.root = snap.Root
		logger.Info().Int("entries", len(fs.root.Children)).Msg("Loaded stored tree")
		return nil
	}

	root, err := fs.seedRoot(ctx)
	if err != nil {
		logger.Error().Err(err).Str("seed", fs.cfg.SeedPath).Msg("Failed to seed tree")
		return err
	}
	fs.root = root
	fs.scheduleLocked()
	logger.Info().Int("entries", len(root.Children)).Msg("Seeded default tree")
	return nil
}

// seedRoot builds the default tree, from cfg.SeedPath when one is configured.
// The seed location may be a file path or any URL scheme registered with seed.
func (fs *FileSystem) seedRoot(ctx context.Context) (*webvfs.Directory, error) {
	if fs.cfg.SeedPath == "" {
		return defaultRoot(), nil
	}
	snap, err := seed.Load(ctx, fs.cfg.SeedPath)
	if err != nil {
		return nil, err
	}
	if snap.Empty() {
		return defaultRoot(), nil
	}
	return snap.Root, nil
}

func (fs *FileSystem) scheduleLocked() {
	if fs.unhydrated {
		return
	}
	fs.store.Save(webvfs.NewSnapshot(fs.root))
}

func pathErr(op, p string, err error) error {
	return &webvfs.PathError{Op: op, Path: p, Err: err}
}

// ReadDir returns a deep copy of the children of the directory at p
func (fs *FileSystem) ReadDir(p string) (map[string]webvfs.Node, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir, err := resolveDir(fs.root, p)
	if err != nil {
		return nil, pathErr("readdir", p, err)
	}
	out := make(map[string]webvfs.Node, len(dir.Children))
	for name, child := range dir.Children {
		out[name] = child.Clone()
	}
	return out, nil
}

// ReadFile returns a copy of the file name inside the directory at p
func (fs *FileSystem) ReadFile(p, name string) (*webvfs.File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := fs.readFileLocked(p, name)
	if err != nil {
		return nil, err
	}
	return f.CloneFile(), nil
}

func (fs *FileSystem) readFileLocked(p, name string) (*webvfs.File, error) {
	dir, err := resolveDir(fs.root, p)
	if err != nil {
		return nil, pathErr("readfile", p, err)
	}
	n, _ := dir.Child(name)
	switch n := n.(type) {
	case *webvfs.File:
		return n, nil
	case *webvfs.Directory:
		return nil, pathErr("readfile", util.JoinPath(p, name), webvfs.ErrIsADirectory)
	default:
		return nil, pathErr("readfile", util.JoinPath(p, name), webvfs.ErrNotFound)
	}
}

// Exists reports whether a file (not a directory) named name is inside p
func (fs *FileSystem) Exists(p, name string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, err := fs.readFileLocked(p, name)
	return err == nil
}

// WriteFile creates or silently replaces the file name inside p.
// New files are Elevated and deletable. content is stored in the variant
// registered for contentType ([webvfs.NormalizeContent]) so it reloads
// unchanged; content that cannot be is [webvfs.ErrInvalidContent].
func (fs *FileSystem) WriteFile(p, name string, content webvfs.Content, contentType string) error {
	logger := util.GetLogger("FS.WriteFile")

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.writeFileLocked(p, name, content, contentType); err != nil {
		logger.Debug().Err(err).Str("path", p).Str("name", name).Msg("Write failed")
		return err
	}
	fs.scheduleLocked()
	logger.Debug().Str("path", p).Str("name", name).Str("contentType", contentType).Msg("Wrote file")
	return nil
}

func (fs *FileSystem) writeFileLocked(p, name string, content webvfs.Content, contentType string) error {
	if !validName(name) {
		return pathErr("writefile", util.JoinPath(p, name), webvfs.ErrInvalidName)
	}
	content, err := webvfs.NormalizeContent(contentType, content)
	if err != nil {
		return pathErr("writefile", util.JoinPath(p, name), err)
	}
	dir, err := resolveDir(fs.root, p)
	if err != nil {
		return pathErr("writefile", p, err)
	}
	dir.Children[name] = webvfs.NewFile(content, contentType, webvfs.Elevated, true)
	return nil
}

// WriteDirectory creates or replaces name inside p with an empty deletable
// directory. permission must be within User..System.
func (fs *FileSystem) WriteDirectory(p, name string, permission webvfs.Permission) error {
	logger := util.GetLogger("FS.WriteDirectory")

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.writeDirectoryLocked(p, name, permission); err != nil {
		logger.Debug().Err(err).Str("path", p).Str("name", name).Msg("Write failed")
		return err
	}
	fs.scheduleLocked()
	logger.Debug().Str("path", p).Str("name", name).Stringer("permission", permission).Msg("Wrote directory")
	return nil
}

func (fs *FileSystem) writeDirectoryLocked(p, name string, permission webvfs.Permission) error {
	if err := CheckDirectoryPermission(permission); err != nil {
		return pathErr("mkdir", util.JoinPath(p, name), err)
	}
	if !validName(name) {
		return pathErr("mkdir", util.JoinPath(p, name), webvfs.ErrInvalidName)
	}
	parent, err := resolveDir(fs.root, p)
	if err != nil {
		return pathErr("mkdir", p, err)
	}
	parent.Children[name] = webvfs.NewDirectory(permission, true)
	return nil
}

// DeleteFile removes name, file or directory, from p. A missing entry is not
// an error but an unresolvable p is.
func (fs *FileSystem) DeleteFile(p, name string) error {
	logger := util.GetLogger("FS.DeleteFile")

	fs.mu.Lock()
	defer fs.mu.Unlock()

	removed, err := fs.deleteLocked(p, name)
	if err != nil {
		logger.Debug().Err(err).Str("path", p).Str("name", name).Msg("Delete failed")
		return err
	}
	if removed {
		fs.scheduleLocked()
		logger.Debug().Str("path", p).Str("name", name).Msg("Deleted entry")
	}
	return nil
}

func (fs *FileSystem) deleteLocked(p, name string) (bool, error) {
	dir, err := resolveDir(fs.root, p)
	if err != nil {
		return false, pathErr("delete", p, err)
	}
	if _, ok := dir.Child(name); !ok {
		return false, nil
	}
	delete(dir.Children, name)
	return true, nil
}

// UpdateFile deletes name then writes a file under newName, or name when
// newName is empty
func (fs *FileSystem) UpdateFile(p, name string, content webvfs.Content, contentType, newName string) error {
	logger := util.GetLogger("FS.UpdateFile")

	fs.mu.Lock()
	defer fs.mu.Unlock()

	target := newName
	if target == "" {
		target = name
	}
	if !validName(target) {
		return pathErr("update", util.JoinPath(p, target), webvfs.ErrInvalidName)
	}
	content, err := webvfs.NormalizeContent(contentType, content)
	if err != nil {
		return pathErr("update", util.JoinPath(p, target), err)
	}

	if _, err := fs.deleteLocked(p, name); err != nil {
		logger.Debug().Err(err).Str("path", p).Str("name", name).Msg("Update failed")
		return err
	}
	// p resolved in deleteLocked
	if err := fs.writeFileLocked(p, target, content, contentType); err != nil {
		return err
	}
	fs.scheduleLocked()
	logger.Debug().Str("path", p).Str("name", name).Str("newName", target).Msg("Updated file")
	return nil
}

// Move relocates name from srcPath into dstPath as newName (or name when
// newName is empty), copying then deleting. Directories are recreated with
// permission and their children moved recursively. Moved files become
// Elevated and deletable, as with WriteFile.
//
// A failed Move leaves the tree unchanged. Moving an entry onto itself is a
// no-op and moving a directory into its own subtree is [webvfs.ErrInvalidMove].
func (fs *FileSystem) Move(srcPath, dstPath, name, newName string, permission webvfs.Permission) error {
	logger := util.GetLogger("FS.Move")

	fs.mu.Lock()
	defer fs.mu.Unlock()

	moved, err := fs.moveLocked(srcPath, dstPath, name, newName, permission)
	if err != nil {
		logger.Debug().Err(err).Str("src", srcPath).Str("dst", dstPath).Str("name", name).Msg("Move failed")
		return err
	}
	if moved {
		fs.scheduleLocked()
		logger.Debug().Str("src", srcPath).Str("dst", dstPath).Str("name", name).Str("newName", newName).Msg("Moved entry")
	}
	return nil
}

func (fs *FileSystem) moveLocked(srcPath, dstPath, name, newName string, permission webvfs.Permission) (bool, error) {
	target := newName
	if target == "" {
		target = name
	}
	if !validName(target) {
		return false, pathErr("move", util.JoinPath(dstPath, target), webvfs.ErrInvalidName)
	}
	srcDir, err := resolveDir(fs.root, srcPath)
	if err != nil {
		return false, pathErr("move", srcPath, err)
	}
	node, ok := srcDir.Child(name)
	if !ok {
		return false, pathErr("move", util.JoinPath(srcPath, name), webvfs.ErrNotFound)
	}
	dstDir, err := resolveDir(fs.root, dstPath)
	if err != nil {
		return false, pathErr("move", dstPath, err)
	}
	if srcDir == dstDir && target == name {
		return false, nil
	}
	if dir, ok := node.(*webvfs.Directory); ok {
		if contains(dir, dstDir) {
			return false, pathErr("move", util.JoinPath(srcPath, name), webvfs.ErrInvalidMove)
		}
		if err := CheckDirectoryPermission(permission); err != nil {
			return false, pathErr("move", util.JoinPath(dstPath, target), err)
		}
	}

	moveNode(srcDir, name, dstDir, target, permission)
	return true, nil
}

// moveNode copies srcDir[name] into dstDir[target] then deletes the source.
// Directory children are moved one by one into the recreated directory.
// The two entries must differ.
func moveNode(srcDir *webvfs.Directory, name string, dstDir *webvfs.Directory, target string, permission webvfs.Permission) {
	switch n := srcDir.Children[name].(type) {
	case *webvfs.Directory:
		dir := webvfs.NewDirectory(permission, true)
		dstDir.Children[target] = dir
		children := make([]string, 0, len(n.Children))
		for childName := range n.Children {
			children = append(children, childName)
		}
		for _, childName := range children {
			moveNode(n, childName, dir, childName, permission)
		}
	case *webvfs.File:
		dstDir.Children[target] = webvfs.NewFile(n.Content.Clone(), n.ContentType, webvfs.Elevated, true)
	}
	delete(srcDir.Children, name)
}

// UpdateSpecificDirectory merges the entries of sourcePath into targetPath.
//
// With replaceMatchingKeys, entries missing from the target are copied in and
// a file overwrites a same named file; any collision involving a directory is
// left untouched. Without it, every source file is written into the target,
// overwriting, and source directories are ignored.
func (fs *FileSystem) UpdateSpecificDirectory(targetPath, sourcePath string, replaceMatchingKeys bool) error {
	logger := util.GetLogger("FS.UpdateSpecificDirectory")

	fs.mu.Lock()
	defer fs.mu.Unlock()

	target, err := resolveDir(fs.root, targetPath)
	if err != nil {
		return pathErr("merge", targetPath, err)
	}
	source, err := resolveDir(fs.root, sourcePath)
	if err != nil {
		return pathErr("merge", sourcePath, err)
	}

	// copy first so a target inside source sees a stable view
	entries := make(map[string]webvfs.Node, len(source.Children))
	for name, child := range source.Children {
		entries[name] = child.Clone()
	}

	copied := 0
	for name, node := range entries {
		srcFile, srcIsFile := node.(*webvfs.File)
		if !replaceMatchingKeys {
			if srcIsFile {
				target.Children[name] = srcFile
				copied++
			}
			continue
		}
		existing, ok := target.Children[name]
		if !ok {
			target.Children[name] = node
			copied++
			continue
		}
		if _, dstIsFile := existing.(*webvfs.File); dstIsFile && srcIsFile {
			target.Children[name] = srcFile
			copied++
		}
	}

	if copied > 0 {
		fs.scheduleLocked()
	}
	logger.Debug().Str("target", targetPath).Str("source", sourcePath).
		Bool("replaceMatchingKeys", replaceMatchingKeys).Int("copied", copied).Msg("Merged directory")
	return nil
}

// Snapshot returns a deep copy of the live tree
func (fs *FileSystem) Snapshot() *webvfs.Snapshot {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return webvfs.NewSnapshot(fs.root)
}

// Flush saves any pending snapshot now
func (fs *FileSystem) Flush(ctx context.Context) error {
	return fs.store.Flush(ctx)
}

// Reset clears the backend, drops any pending save and restores the default
// tree in memory. Nothing is saved until the next mutation.
func (fs *FileSystem) Reset(ctx context.Context) (bool, error) {
	logger := util.GetLogger("FS.Reset")

	fs.mu.Lock()
	defer fs.mu.Unlock()

	ok, err := fs.store.Reset(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to reset backend")
		return false, err
	}
	root, err := fs.seedRoot(ctx)
	if err != nil {
		return ok, err
	}
	fs.root = root
	logger.Info().Bool("reset", ok).Msg("Reset tree")
	return ok, nil
}

// Close flushes pending saves then closes the backend if it holds resources
func (fs *FileSystem) Close(ctx context.Context) error {
	err := fs.Flush(ctx)
	if c, ok := fs.store.Backend().(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}
