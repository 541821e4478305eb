package filesystem

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/config"
	"github.com/brettbedarf/webvfs/internal/mocks"
	"github.com/brettbedarf/webvfs/internal/util"
	"github.com/brettbedarf/webvfs/seed"
	"github.com/brettbedarf/webvfs/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// createTestConfig uses a debounce window long enough that only Flush saves
func createTestConfig() *config.Config {
	return config.NewConfig(&config.ConfigOverride{
		Name:        util.Pointer("test"),
		SaveDelayMs: util.Pointer(60_000),
	})
}

func newTestFS(t *testing.T) (*FileSystem, *storage.LocalStore) {
	t.Helper()
	backend := storage.NewLocalStore(storage.NewMemoryStorage(0), "test")
	fs := New(createTestConfig(), backend)
	require.NoError(t, fs.Initialize(context.Background()))
	return fs, backend
}

// newPopulatedFS builds
//
//	/A/f.txt
//	/A/sub/deep.md
//	/A/sub/inner/x.json
//	/B/
func newPopulatedFS(t *testing.T) *FileSystem {
	t.Helper()
	fs, _ := newTestFS(t)
	require.NoError(t, fs.WriteDirectory("/", "A", webvfs.User))
	require.NoError(t, fs.WriteDirectory("/", "B", webvfs.User))
	require.NoError(t, fs.WriteFile("/A", "f.txt", webvfs.Text("hello"), "txt"))
	require.NoError(t, fs.WriteDirectory("/A", "sub", webvfs.Elevated))
	require.NoError(t, fs.WriteFile("/A/sub", "deep.md", webvfs.Text("# deep"), "md"))
	require.NoError(t, fs.WriteDirectory("/A/sub", "inner", webvfs.System))
	x, err := webvfs.JSON([]byte(`{"x":1}`))
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile("/A/sub/inner", "x.json", x, "json"))
	return fs
}

func mustJSON(t *testing.T, raw string) webvfs.Content {
	t.Helper()
	c, err := webvfs.JSON([]byte(raw))
	require.NoError(t, err)
	return c
}

func TestNew_DefaultRoot(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)
	root := fs.Snapshot().Root

	assert.Equal(t, webvfs.System, root.Permission)
	assert.False(t, root.Deletable)
	assert.Empty(t, root.Children)
}

func TestWriteFile_ReadFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		content     webvfs.Content
		contentType string
	}{
		{"note.txt", webvfs.Text("hello world"), "txt"},
		{"empty.txt", webvfs.Text(""), "txt"},
		{"config.json", mustJSON(t, `{"a":[1,2,3]}`), "json"},
		{"logo.png", webvfs.Binary([]byte{0, 1, 2, 255}), "png"},
		{"unknown.xyz", webvfs.Text("raw"), "xyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fs, _ := newTestFS(t)

			require.NoError(t, fs.WriteFile("/", tt.name, tt.content, tt.contentType))
			f, err := fs.ReadFile("/", tt.name)

			require.NoError(t, err)
			assert.True(t, tt.content.Equal(f.Content), "content must round trip")
			assert.Equal(t, tt.contentType, f.ContentType)
			assert.Equal(t, webvfs.Elevated, f.Permission)
			assert.True(t, f.Deletable)
			assert.False(t, f.CreatedAt.IsZero())
		})
	}
}

func TestWriteFile_Overwrites(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)
	require.NoError(t, fs.WriteFile("/", "a.txt", webvfs.Text("one"), "txt"))
	require.NoError(t, fs.WriteFile("/", "a.txt", webvfs.Text("two"), "txt"))

	f, err := fs.ReadFile("/", "a.txt")
	require.NoError(t, err)
	text, _ := f.Content.AsText()
	assert.Equal(t, "two", text)
}

func TestWriteFile_Errors(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)

	tests := []struct {
		name    string
		path    string
		file    string
		wantErr error
	}{
		{"missing parent", "/nope", "a.txt", webvfs.ErrNotFound},
		{"parent is file", "/A/f.txt", "a.txt", webvfs.ErrNotADirectory},
		{"through file", "/A/f.txt/x", "a.txt", webvfs.ErrNotFound},
		{"empty name", "/A", "", webvfs.ErrInvalidName},
		{"slash in name", "/A", "x/y", webvfs.ErrInvalidName},
		{"dot dot", "/A", "..", webvfs.ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fs.WriteFile(tt.path, tt.file, webvfs.Text("x"), "txt")
			assert.ErrorIs(t, err, tt.wantErr)
			var pe *webvfs.PathError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestReadFile_Errors(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)

	_, err := fs.ReadFile("/A", "missing.txt")
	assert.ErrorIs(t, err, webvfs.ErrNotFound)

	_, err = fs.ReadFile("/A", "sub")
	assert.ErrorIs(t, err, webvfs.ErrIsADirectory)

	_, err = fs.ReadFile("/missing", "f.txt")
	assert.ErrorIs(t, err, webvfs.ErrNotFound)

	var pe *webvfs.PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "readfile", pe.Op)
	assert.Equal(t, "/missing", pe.Path)
}

func TestReadDir(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)

	t.Run("lists children", func(t *testing.T) {
		children, err := fs.ReadDir("/A")
		require.NoError(t, err)
		assert.Len(t, children, 2)
		assert.Equal(t, webvfs.FileKind, children["f.txt"].Kind())
		assert.Equal(t, webvfs.DirectoryKind, children["sub"].Kind())
	})
	t.Run("tolerates separators", func(t *testing.T) {
		for _, p := range []string{"A", "/A/", "//A//", "A/"} {
			children, err := fs.ReadDir(p)
			require.NoError(t, err, p)
			assert.Len(t, children, 2, p)
		}
	})
	t.Run("root", func(t *testing.T) {
		for _, p := range []string{"", "/", "//"} {
			children, err := fs.ReadDir(p)
			require.NoError(t, err, p)
			assert.Contains(t, children, "A")
			assert.Contains(t, children, "B")
		}
	})
	t.Run("file is not a directory", func(t *testing.T) {
		_, err := fs.ReadDir("/A/f.txt")
		assert.ErrorIs(t, err, webvfs.ErrNotADirectory)
	})
	t.Run("missing segment", func(t *testing.T) {
		_, err := fs.ReadDir("/A/nope/sub")
		assert.ErrorIs(t, err, webvfs.ErrNotFound)
	})
}

func TestReads_ReturnCopies(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)

	children, err := fs.ReadDir("/A")
	require.NoError(t, err)
	delete(children, "f.txt")
	children["sub"].(*webvfs.Directory).Children["injected.txt"] = webvfs.NewFile(webvfs.Text("x"), "txt", webvfs.User, true)

	f, err := fs.ReadFile("/A", "f.txt")
	require.NoError(t, err)
	f.Content = webvfs.Text("mutated")
	f.Permission = webvfs.System

	again, err := fs.ReadFile("/A", "f.txt")
	require.NoError(t, err)
	text, _ := again.Content.AsText()
	assert.Equal(t, "hello", text)
	assert.Equal(t, webvfs.Elevated, again.Permission)
	assert.False(t, fs.Exists("/A/sub", "injected.txt"))
}

func TestWriteFile_CopiesContent(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)
	data := []byte{1, 2, 3}
	content := webvfs.Binary(data)
	require.NoError(t, fs.WriteFile("/", "a.bin", content, "bin"))

	raw, _ := content.AsBinary()
	raw[0] = 9

	f, err := fs.ReadFile("/", "a.bin")
	require.NoError(t, err)
	got, _ := f.Content.AsBinary()
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestExists(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)

	assert.True(t, fs.Exists("/A", "f.txt"))
	assert.False(t, fs.Exists("/A", "missing.txt"), "absent name")
	assert.False(t, fs.Exists("/A", "sub"), "directory name")
	assert.False(t, fs.Exists("/missing", "f.txt"), "unresolvable path")
}

func TestDeleteFile(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)

	require.NoError(t, fs.DeleteFile("/A", "f.txt"))
	children, err := fs.ReadDir("/A")
	require.NoError(t, err)
	assert.NotContains(t, children, "f.txt")

	assert.NoError(t, fs.DeleteFile("/A", "f.txt"), "second delete must be a no-op")

	t.Run("directory", func(t *testing.T) {
		require.NoError(t, fs.DeleteFile("/A", "sub"))
		_, err := fs.ReadDir("/A/sub")
		assert.ErrorIs(t, err, webvfs.ErrNotFound)
	})
	t.Run("ignores deletable and permission", func(t *testing.T) {
		require.NoError(t, fs.WriteDirectory("/", "sys", webvfs.System))
		require.NoError(t, fs.DeleteFile("/", "sys"))
		_, err := fs.ReadDir("/sys")
		assert.ErrorIs(t, err, webvfs.ErrNotFound)
	})
	t.Run("unresolvable path", func(t *testing.T) {
		assert.ErrorIs(t, fs.DeleteFile("/missing", "f.txt"), webvfs.ErrNotFound)
	})
}

func TestWriteDirectory_Permission(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)

	tests := []struct {
		perm    webvfs.Permission
		wantErr bool
	}{
		{webvfs.User, false},
		{webvfs.Elevated, false},
		{webvfs.System, false},
		{3, true},
		{-1, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("perm_%d", tt.perm), func(t *testing.T) {
			name := fmt.Sprintf("d%d", tt.perm)
			err := fs.WriteDirectory("/", name, tt.perm)
			if tt.wantErr {
				assert.ErrorIs(t, err, webvfs.ErrPermissionOutOfRange)
				_, err := fs.ReadDir("/" + name)
				assert.ErrorIs(t, err, webvfs.ErrNotFound, "rejected directory must not be created")
				return
			}
			require.NoError(t, err)
			snap := fs.Snapshot()
			dir := snap.Root.Children[name].(*webvfs.Directory)
			assert.Equal(t, tt.perm, dir.Permission)
			assert.True(t, dir.Deletable)
			assert.Empty(t, dir.Children)
		})
	}
}

func TestWriteDirectory_Overwrites(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)

	require.NoError(t, fs.WriteDirectory("/", "A", webvfs.Elevated))

	children, err := fs.ReadDir("/A")
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestMove_File(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)

	require.NoError(t, fs.Move("/A", "/B", "f.txt", "", webvfs.Elevated))

	f, err := fs.ReadFile("/B", "f.txt")
	require.NoError(t, err)
	text, _ := f.Content.AsText()
	assert.Equal(t, "hello", text)
	assert.Equal(t, "txt", f.ContentType)

	_, err = fs.ReadFile("/A", "f.txt")
	assert.ErrorIs(t, err, webvfs.ErrNotFound)
}

func TestMove_FileRename(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)

	require.NoError(t, fs.Move("/A", "/A", "f.txt", "g.txt", webvfs.Elevated))

	assert.False(t, fs.Exists("/A", "f.txt"))
	assert.True(t, fs.Exists("/A", "g.txt"))
}

func TestMove_DirectoryRecursive(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)

	require.NoError(t, fs.Move("/", "/B", "A", "moved", webvfs.Elevated))

	_, err := fs.ReadDir("/A")
	assert.ErrorIs(t, err, webvfs.ErrNotFound, "source subtree must be gone")

	assert.True(t, fs.Exists("/B/moved", "f.txt"))
	assert.True(t, fs.Exists("/B/moved/sub", "deep.md"))
	x, err := fs.ReadFile("/B/moved/sub/inner", "x.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(x.Content.Bytes()))

	snap := fs.Snapshot()
	moved := snap.Root.Children["B"].(*webvfs.Directory).Children["moved"].(*webvfs.Directory)
	inner := moved.Children["sub"].(*webvfs.Directory).Children["inner"].(*webvfs.Directory)
	assert.Equal(t, webvfs.Elevated, moved.Permission)
	assert.Equal(t, webvfs.Elevated, inner.Permission, "recreated directories take the move permission")
}

func TestMove_OverParentDirectory(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)

	// /A/sub replaces /A
	require.NoError(t, fs.Move("/A", "/", "sub", "A", webvfs.User))

	children, err := fs.ReadDir("/A")
	require.NoError(t, err)
	assert.Len(t, children, 2)
	assert.True(t, fs.Exists("/A", "deep.md"))
	assert.True(t, fs.Exists("/A/inner", "x.json"))
}

func TestMove_Errors(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)
	before, err := webvfs.MarshalSnapshot(fs.Snapshot())
	require.NoError(t, err)

	tests := []struct {
		name    string
		src     string
		dst     string
		entry   string
		newName string
		perm    webvfs.Permission
		wantErr error
	}{
		{"missing entry", "/A", "/B", "nope", "", webvfs.User, webvfs.ErrNotFound},
		{"missing source dir", "/nope", "/B", "f.txt", "", webvfs.User, webvfs.ErrNotFound},
		{"missing destination", "/A", "/nope", "f.txt", "", webvfs.User, webvfs.ErrNotFound},
		{"destination is file", "/A", "/A/f.txt", "sub", "", webvfs.User, webvfs.ErrNotADirectory},
		{"into itself", "/", "/A", "A", "", webvfs.User, webvfs.ErrInvalidMove},
		{"into own subtree", "/", "/A/sub/inner", "A", "", webvfs.User, webvfs.ErrInvalidMove},
		{"bad permission", "/A", "/B", "sub", "", 3, webvfs.ErrPermissionOutOfRange},
		{"bad name", "/A", "/B", "f.txt", "a/b", webvfs.User, webvfs.ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fs.Move(tt.src, tt.dst, tt.entry, tt.newName, tt.perm)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	after, err := webvfs.MarshalSnapshot(fs.Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after), "failed moves must not mutate the tree")
}

func TestMove_OntoItselfIsNoop(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)
	before := fs.Manager().Pending()

	require.NoError(t, fs.Move("/A", "/A/", "f.txt", "f.txt", webvfs.User))
	require.NoError(t, fs.Move("/", "/", "A", "", webvfs.User))

	assert.True(t, fs.Exists("/A", "f.txt"))
	assert.True(t, fs.Exists("/A/sub", "deep.md"))
	assert.Equal(t, before, fs.Manager().Pending(), "no-op must not schedule a save")
}

func TestMove_SchedulesOnce(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)
	before := fs.Manager().Pending()

	require.NoError(t, fs.Move("/", "/B", "A", "", webvfs.User))

	assert.Equal(t, before+1, fs.Manager().Pending())
}

func TestUpdateFile(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)
	require.NoError(t, fs.WriteDirectory("/", "A", webvfs.User))
	require.NoError(t, fs.WriteFile("/A", "old.txt", webvfs.Text("old"), "txt"))

	require.NoError(t, fs.UpdateFile("/A", "old.txt", webvfs.Text("new"), "txt", "new.txt"))

	assert.False(t, fs.Exists("/A", "old.txt"))
	f, err := fs.ReadFile("/A", "new.txt")
	require.NoError(t, err)
	text, _ := f.Content.AsText()
	assert.Equal(t, "new", text)

	t.Run("same name", func(t *testing.T) {
		require.NoError(t, fs.UpdateFile("/A", "new.txt", webvfs.Text("newer"), "md", ""))
		f, err := fs.ReadFile("/A", "new.txt")
		require.NoError(t, err)
		text, _ := f.Content.AsText()
		assert.Equal(t, "newer", text)
		assert.Equal(t, "md", f.ContentType)
	})
	t.Run("absent source still writes", func(t *testing.T) {
		require.NoError(t, fs.UpdateFile("/A", "ghost.txt", webvfs.Text("x"), "txt", ""))
		assert.True(t, fs.Exists("/A", "ghost.txt"))
	})
	t.Run("unresolvable path", func(t *testing.T) {
		err := fs.UpdateFile("/missing", "a.txt", webvfs.Text("x"), "txt", "")
		assert.ErrorIs(t, err, webvfs.ErrNotFound)
	})
}

func TestUpdateSpecificDirectory_ReplaceMatchingKeys(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)
	for _, d := range []string{"target", "source"} {
		require.NoError(t, fs.WriteDirectory("/", d, webvfs.User))
		require.NoError(t, fs.WriteDirectory("/"+d, "shared", webvfs.User))
	}
	require.NoError(t, fs.WriteFile("/target", "both.txt", webvfs.Text("target"), "txt"))
	require.NoError(t, fs.WriteFile("/source", "both.txt", webvfs.Text("source"), "txt"))
	require.NoError(t, fs.WriteFile("/target/shared", "t.txt", webvfs.Text("t"), "txt"))
	require.NoError(t, fs.WriteFile("/source/shared", "s.txt", webvfs.Text("s"), "txt"))
	require.NoError(t, fs.WriteFile("/source", "only.txt", webvfs.Text("only"), "txt"))
	require.NoError(t, fs.WriteDirectory("/source", "onlydir", webvfs.User))
	require.NoError(t, fs.WriteFile("/source/onlydir", "n.txt", webvfs.Text("n"), "txt"))
	require.NoError(t, fs.WriteFile("/source", "mixed", webvfs.Text("file"), "txt"))
	require.NoError(t, fs.WriteDirectory("/target", "mixed", webvfs.User))

	require.NoError(t, fs.UpdateSpecificDirectory("/target", "/source", true))

	both, err := fs.ReadFile("/target", "both.txt")
	require.NoError(t, err)
	text, _ := both.Content.AsText()
	assert.Equal(t, "source", text, "file present in both is overwritten")

	assert.True(t, fs.Exists("/target/shared", "t.txt"), "directory present in both is untouched")
	assert.False(t, fs.Exists("/target/shared", "s.txt"), "directory present in both is not merged")

	assert.True(t, fs.Exists("/target", "only.txt"), "key only in source is copied")
	assert.True(t, fs.Exists("/target/onlydir", "n.txt"), "directory only in source is copied")

	_, err = fs.ReadDir("/target/mixed")
	assert.NoError(t, err, "mixed kind collision is untouched")

	t.Run("copies are independent", func(t *testing.T) {
		require.NoError(t, fs.WriteFile("/source/onlydir", "later.txt", webvfs.Text("x"), "txt"))
		assert.False(t, fs.Exists("/target/onlydir", "later.txt"))
	})
}

func TestUpdateSpecificDirectory_FilesOnly(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)
	require.NoError(t, fs.WriteDirectory("/", "target", webvfs.User))
	require.NoError(t, fs.WriteDirectory("/", "source", webvfs.User))
	require.NoError(t, fs.WriteFile("/target", "both.txt", webvfs.Text("target"), "txt"))
	require.NoError(t, fs.WriteFile("/source", "both.txt", webvfs.Text("source"), "txt"))
	require.NoError(t, fs.WriteFile("/source", "only.txt", webvfs.Text("only"), "txt"))
	require.NoError(t, fs.WriteDirectory("/source", "dir", webvfs.User))
	require.NoError(t, fs.WriteFile("/target", "keep.txt", webvfs.Text("keep"), "txt"))

	require.NoError(t, fs.UpdateSpecificDirectory("/target", "/source", false))

	both, err := fs.ReadFile("/target", "both.txt")
	require.NoError(t, err)
	text, _ := both.Content.AsText()
	assert.Equal(t, "source", text)
	assert.True(t, fs.Exists("/target", "only.txt"))
	assert.True(t, fs.Exists("/target", "keep.txt"))
	children, err := fs.ReadDir("/target")
	require.NoError(t, err)
	assert.NotContains(t, children, "dir", "source directories are ignored")
}

func TestUpdateSpecificDirectory_TargetInsideSource(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)

	require.NoError(t, fs.UpdateSpecificDirectory("/A/sub", "/A", true))

	assert.True(t, fs.Exists("/A/sub", "f.txt"))
	nested, err := fs.ReadDir("/A/sub/sub")
	require.NoError(t, err)
	assert.Contains(t, nested, "deep.md")
	_, err = fs.ReadDir("/A/sub/sub/sub")
	assert.ErrorIs(t, err, webvfs.ErrNotFound, "copy must be taken before the merge")
}

func TestUpdateSpecificDirectory_Errors(t *testing.T) {
	t.Parallel()

	fs := newPopulatedFS(t)

	assert.ErrorIs(t, fs.UpdateSpecificDirectory("/missing", "/A", true), webvfs.ErrNotFound)
	assert.ErrorIs(t, fs.UpdateSpecificDirectory("/B", "/A/f.txt", true), webvfs.ErrNotADirectory)
}

// Five writes inside one debounce window then a flush must persist exactly the
// final in-memory tree.
func TestFlush_LastWriteWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs, backend := newTestFS(t)
	require.NoError(t, fs.Flush(ctx))

	for i := range 5 {
		require.NoError(t, fs.WriteFile("/", fmt.Sprintf("f%d.txt", i), webvfs.Text(fmt.Sprint(i)), "txt"))
	}
	assert.Equal(t, 5, fs.Manager().Pending())

	require.NoError(t, fs.Flush(ctx))
	assert.Equal(t, 0, fs.Manager().Pending())

	stored, err := backend.Load(ctx)
	require.NoError(t, err)
	want, err := webvfs.MarshalSnapshot(fs.Snapshot())
	require.NoError(t, err)
	got, err := webvfs.MarshalSnapshot(stored)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
	assert.Len(t, stored.Root.Children, 5)
}

func TestInitialize_LoadsStoredTree(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalStore(storage.NewMemoryStorage(0), "test")

	first := New(createTestConfig(), backend)
	require.NoError(t, first.Initialize(ctx))
	require.NoError(t, first.WriteFile("/", "kept.txt", webvfs.Text("kept"), "txt"))
	require.NoError(t, first.Close(ctx))

	second := New(createTestConfig(), backend)
	require.NoError(t, second.Initialize(ctx))

	assert.True(t, second.Exists("/", "kept.txt"))
	assert.Equal(t, 0, second.Manager().Pending(), "loading must not schedule a save")
}

func TestInitialize_ReloadsEveryContentVariant(t *testing.T) {
	t.Parallel()

	contents := []struct {
		name    string
		content func(t *testing.T) webvfs.Content
	}{
		{"text", func(t *testing.T) webvfs.Content { return webvfs.Text("hello") }},
		{"text-json", func(t *testing.T) webvfs.Content { return webvfs.Text(`{"a":1}`) }},
		{"json-object", func(t *testing.T) webvfs.Content { return mustJSON(t, `{"a": 1}`) }},
		{"json-string", func(t *testing.T) webvfs.Content { return mustJSON(t, `"s"`) }},
		{"bin-png", func(t *testing.T) webvfs.Content { return webvfs.Binary([]byte("\x89PNG")) }},
		{"bin-plain", func(t *testing.T) webvfs.Content { return webvfs.Binary([]byte("plain")) }},
	}
	rejected := map[string]bool{
		"txt/bin-png":    true,
		"xyz/bin-png":    true,
		"json/text":      true,
		"json/bin-png":   true,
		"json/bin-plain": true,
	}

	for _, contentType := range []string{"txt", "json", "png", "xyz"} {
		for _, c := range contents {
			key := contentType + "/" + c.name
			t.Run(key, func(t *testing.T) {
				t.Parallel()
				ctx := context.Background()
				backend := storage.NewLocalStore(storage.NewMemoryStorage(0), "test")
				first := New(createTestConfig(), backend)
				require.NoError(t, first.Initialize(ctx))
				require.NoError(t, first.WriteFile("/", "keep.txt", webvfs.Text("kept"), "txt"))

				err := first.WriteFile("/", "f", c.content(t), contentType)
				if rejected[key] {
					assert.ErrorIs(t, err, webvfs.ErrInvalidContent)
					assert.False(t, first.Exists("/", "f"))
					return
				}
				require.NoError(t, err)
				written, err := first.ReadFile("/", "f")
				require.NoError(t, err)
				require.NoError(t, first.Flush(ctx))

				second := New(createTestConfig(), backend)
				require.NoError(t, second.Initialize(ctx))
				reloaded, err := second.ReadFile("/", "f")
				require.NoError(t, err)
				assert.True(t, written.Content.Equal(reloaded.Content), "reloaded %s %q, wrote %s %q",
					reloaded.Content.Encoding(), reloaded.Content.Bytes(), written.Content.Encoding(), written.Content.Bytes())
				assert.True(t, second.Exists("/", "keep.txt"))
			})
		}
	}
}

func TestInitialize_TextUnderBinaryTypeKeepsTree(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalStore(storage.NewMemoryStorage(0), "test")
	first := New(createTestConfig(), backend)
	require.NoError(t, first.Initialize(ctx))
	require.NoError(t, first.WriteFile("/", "a.txt", webvfs.Text("a"), "txt"))
	require.NoError(t, first.WriteFile("/", "img.png", webvfs.Text("data:image/png;base64,AAAA"), "png"))
	require.NoError(t, first.Close(ctx))

	second := New(createTestConfig(), backend)
	require.NoError(t, second.Initialize(ctx))

	assert.Equal(t, 0, second.Manager().Pending(), "stored tree must load, not be reseeded")
	assert.True(t, second.Exists("/", "a.txt"))
	f, err := second.ReadFile("/", "img.png")
	require.NoError(t, err)
	b, ok := f.Content.AsBinary()
	assert.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AAAA", string(b))
}

func TestUpdateFile_InvalidContentKeepsOriginal(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)
	require.NoError(t, fs.WriteFile("/", "c.json", mustJSON(t, `{"v":1}`), "json"))

	err := fs.UpdateFile("/", "c.json", webvfs.Text("not json"), "json", "")

	assert.ErrorIs(t, err, webvfs.ErrInvalidContent)
	f, err := fs.ReadFile("/", "c.json")
	require.NoError(t, err)
	assert.True(t, mustJSON(t, `{"v":1}`).Equal(f.Content))
}

func TestInitialize_UngrantedHandleDoesNotClobber(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "granted.json")

	prior := webvfs.NewDirectory(webvfs.System, false)
	prior.Children["mine.txt"] = webvfs.NewFile(webvfs.Text("mine"), "txt", webvfs.User, true)
	data, err := webvfs.MarshalSnapshot(&webvfs.Snapshot{Root: prior})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	backend := storage.NewHandleStore()
	fs := New(createTestConfig(), backend)

	err = fs.Initialize(ctx)
	assert.ErrorIs(t, err, webvfs.ErrNotReady)
	assert.Equal(t, 0, fs.Manager().Pending(), "unhydrated tree must not be scheduled")

	require.NoError(t, fs.WriteFile("/", "early.txt", webvfs.Text("early"), "txt"))
	assert.Equal(t, 0, fs.Manager().Pending())

	require.NoError(t, backend.Grant(path))
	require.NoError(t, fs.Flush(ctx))
	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(onDisk), "granted file must be untouched")

	require.NoError(t, fs.Initialize(ctx))
	assert.True(t, fs.Exists("/", "mine.txt"))
	assert.False(t, fs.Exists("/", "early.txt"))

	require.NoError(t, fs.WriteFile("/", "late.txt", webvfs.Text("late"), "txt"))
	assert.Equal(t, 1, fs.Manager().Pending(), "saves resume once hydrated")
}

func TestInitialize_SeedsFromFile(t *testing.T) {
	t.Parallel()

	root := webvfs.NewDirectory(webvfs.System, false)
	root.Children["readme.md"] = webvfs.NewFile(webvfs.Text("# hi"), "md", webvfs.User, false)
	data, err := webvfs.MarshalSnapshot(&webvfs.Snapshot{Root: root})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg := createTestConfig()
	cfg.SeedPath = path
	fs := New(cfg, storage.NewLocalStore(storage.NewMemoryStorage(0), "test"))
	require.NoError(t, fs.Initialize(context.Background()))

	f, err := fs.ReadFile("/", "readme.md")
	require.NoError(t, err)
	assert.False(t, f.Deletable)
	assert.Equal(t, 1, fs.Manager().Pending(), "seeded tree must be scheduled for save")

	t.Run("missing seed file", func(t *testing.T) {
		cfg := createTestConfig()
		cfg.SeedPath = filepath.Join(t.TempDir(), "missing.json")
		fs := New(cfg, storage.NewLocalStore(storage.NewMemoryStorage(0), "test"))
		assert.Error(t, fs.Initialize(context.Background()))
	})
}

func TestInitialize_SeedsFromURL(t *testing.T) {
	seed.RegisterBuiltins()

	root := webvfs.NewDirectory(webvfs.System, false)
	root.Children["apps"] = webvfs.NewDirectory(webvfs.System, false)
	data, err := webvfs.MarshalSnapshot(&webvfs.Snapshot{Root: root})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	cfg := createTestConfig()
	cfg.SeedPath = srv.URL + "/seed.json"
	fs := New(cfg, storage.NewLocalStore(storage.NewMemoryStorage(0), "test"))
	require.NoError(t, fs.Initialize(context.Background()))
	assert.True(t, fs.Exists("/", "apps"))

	_, err = fs.Reset(context.Background())
	require.NoError(t, err)
	assert.True(t, fs.Exists("/", "apps"), "reset re-seeds from the same location")
}

func TestInitialize_BackendFailures(t *testing.T) {
	t.Parallel()

	t.Run("initialize error propagates", func(t *testing.T) {
		t.Parallel()
		backend := &mocks.MockBackend{}
		boom := errors.New("boom")
		backend.On("Initialize", mock.Anything).Return(boom)

		fs := New(createTestConfig(), backend)
		assert.ErrorIs(t, fs.Initialize(context.Background()), boom)
	})
	t.Run("load error seeds default tree", func(t *testing.T) {
		t.Parallel()
		backend := &mocks.MockBackend{}
		backend.On("Initialize", mock.Anything).Return(nil)
		backend.On("Load", mock.Anything).Return(nil, errors.New("corrupt"))
		backend.On("Save", mock.Anything, mock.Anything).Return(errors.New("readonly"))

		var ops []string
		var mu sync.Mutex
		fs := New(createTestConfig(), backend, storage.WithErrorHandler(func(op string, err error) {
			mu.Lock()
			ops = append(ops, op)
			mu.Unlock()
		}))

		require.NoError(t, fs.Initialize(context.Background()))
		assert.Empty(t, fs.Snapshot().Root.Children)

		assert.Error(t, fs.Flush(context.Background()))
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"load", "save"}, ops)
	})
}

func TestReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs, backend := newTestFS(t)
	require.NoError(t, fs.WriteFile("/", "a.txt", webvfs.Text("a"), "txt"))
	require.NoError(t, fs.Flush(ctx))
	require.NoError(t, fs.WriteFile("/", "b.txt", webvfs.Text("b"), "txt"))

	ok, err := fs.Reset(ctx)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, fs.Manager().Pending(), "pending save must be dropped")
	assert.Empty(t, fs.Snapshot().Root.Children)
	stored, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestClose_ClosesBackend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	fs := New(createTestConfig(), storage.NewBoltStore(dir, "test"))
	require.NoError(t, fs.Initialize(ctx))
	require.NoError(t, fs.WriteFile("/", "a.txt", webvfs.Text("a"), "txt"))
	require.NoError(t, fs.Close(ctx))

	reopened := storage.NewBoltStore(dir, "test")
	require.NoError(t, reopened.Initialize(ctx))
	t.Cleanup(func() { _ = reopened.Close() })
	snap, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Contains(t, snap.Root.Children, "a.txt")
}

func TestConcurrentWrites(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)
	const n = 50

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, fs.WriteFile("/", fmt.Sprintf("f%d.txt", i), webvfs.Text("x"), "txt"))
			_, _ = fs.ReadDir("/")
		}()
	}
	wg.Wait()

	children, err := fs.ReadDir("/")
	require.NoError(t, err)
	assert.Len(t, children, n)
}
