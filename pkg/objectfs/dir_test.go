package objectfs

import (
	"context"
	"fmt"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dray/pkg/store/object"
)

func drain(t *testing.T, l *Lister) []string {
	t.Helper()
	var names []string
	for {
		entries, err := l.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		for _, e := range entries {
			if e.Dir {
				names = append(names, e.Name+"/")
			} else {
				names = append(names, e.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func TestListing(t *testing.T) {
	fs, _ := newFS(t, Options{ListPageSize: 2}, map[string]string{
		"home/alice/":          "",
		"home/alice/a.txt":     "a",
		"home/alice/b.txt":     "b",
		"home/alice/c.txt":     "c",
		"home/alice/docs/":     "",
		"home/alice/docs/x.md": "x",
		"home/alice/pics/1":    "1",
	})

	l, err := fs.OpenDir(context.Background(), "/home/alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt", "docs/", "pics/"}, drain(t, l))

	_, err = l.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF, "exhausted cursor stays at EOF")
}

func TestListingEmptyDirectory(t *testing.T) {
	fs, _ := newFS(t, Options{}, map[string]string{"empty/": ""})

	l, err := fs.OpenDir(context.Background(), "/empty")
	require.NoError(t, err)

	entries, err := l.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Empty(t, entries)
}

func TestListingSkipsPagesWithOnlyMarker(t *testing.T) {
	files := map[string]string{"d/": ""}
	for i := 0; i < 5; i++ {
		files[fmt.Sprintf("d/f%d", i)] = "x"
	}
	fs, _ := newFS(t, Options{ListPageSize: 1}, files)

	l, err := fs.OpenDir(context.Background(), "/d")
	require.NoError(t, err)

	entries, err := l.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f0", entries[0].Name)
	assert.Equal(t, []string{"f1", "f2", "f3", "f4"}, drain(t, l))
}

func TestOpenDirErrors(t *testing.T) {
	fs, _ := newFS(t, Options{}, map[string]string{"f": "x"})

	_, err := fs.OpenDir(context.Background(), "/f")
	assert.ErrorIs(t, err, ErrNotDir)

	_, err = fs.OpenDir(context.Background(), "/missing")
	assert.ErrorIs(t, err, object.ErrNotFound)

	_, err = fs.OpenDir(context.Background(), "/")
	assert.NoError(t, err)
}

func TestOpenImplicitDir(t *testing.T) {
	fs, _ := newFS(t, Options{}, map[string]string{"other/x": "1"})

	l := fs.OpenImplicitDir("/home/alice")
	assert.Equal(t, FileInfo{Name: "alice", Dir: true}, l.Stat())
	_, err := l.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestMkdirRmdir(t *testing.T) {
	fs, store := newFS(t, Options{}, map[string]string{"f": "x"})
	ctx := context.Background()

	require.NoError(t, fs.Mkdir(ctx, "/d"))
	_, err := store.Head(ctx, "d/")
	require.NoError(t, err, "marker written")

	assert.ErrorIs(t, fs.Mkdir(ctx, "/d"), ErrExist)
	assert.ErrorIs(t, fs.Mkdir(ctx, "/f"), ErrExist)
	assert.ErrorIs(t, fs.Mkdir(ctx, "/"), ErrExist)

	require.NoError(t, store.Put(ctx, "d/child", []byte("c")))
	assert.ErrorIs(t, fs.Rmdir(ctx, "/d"), ErrNotEmpty)

	require.NoError(t, store.Delete(ctx, "d/child"))
	require.NoError(t, fs.Rmdir(ctx, "/d"))
	_, err = fs.Stat(ctx, "/d")
	assert.ErrorIs(t, err, object.ErrNotFound)

	assert.ErrorIs(t, fs.Rmdir(ctx, "/f"), ErrNotDir)
	assert.ErrorIs(t, fs.Rmdir(ctx, "/missing"), object.ErrNotFound)
	assert.ErrorIs(t, fs.Rmdir(ctx, "/"), ErrUnsupported)
}

func TestRmdirNestedDirectory(t *testing.T) {
	fs, _ := newFS(t, Options{}, map[string]string{"d/": "", "d/sub/": ""})
	assert.ErrorIs(t, fs.Rmdir(context.Background(), "/d"), ErrNotEmpty)
}

func TestRemove(t *testing.T) {
	fs, store := newFS(t, Options{}, map[string]string{"f": "x", "d/": ""})
	ctx := context.Background()

	require.NoError(t, fs.Remove(ctx, "/f"))
	assert.Equal(t, 1, store.Len())

	assert.ErrorIs(t, fs.Remove(ctx, "/f"), object.ErrNotFound)
	assert.ErrorIs(t, fs.Remove(ctx, "/d"), ErrIsDir)
}

func TestRenameFile(t *testing.T) {
	fs, store := newFS(t, Options{}, map[string]string{"a": "payload", "b": "taken"})
	ctx := context.Background()

	require.NoError(t, fs.Rename(ctx, "/a", "/c"))
	_, err := store.Head(ctx, "a")
	assert.ErrorIs(t, err, object.ErrNotFound)
	assert.Equal(t, "payload", content(t, store, "c"))

	assert.ErrorIs(t, fs.Rename(ctx, "/c", "/b"), ErrExist)
	assert.ErrorIs(t, fs.Rename(ctx, "/missing", "/z"), object.ErrNotFound)
	assert.NoError(t, fs.Rename(ctx, "/c", "/c"))
}

func TestRenameDirectory(t *testing.T) {
	fs, store := newFS(t, Options{ListPageSize: 2}, map[string]string{
		"src/":       "",
		"src/a":      "1",
		"src/b":      "2",
		"src/sub/c":  "3",
		"src/sub/d/": "",
	})
	ctx := context.Background()

	require.NoError(t, fs.Rename(ctx, "/src", "/dst"))

	for _, k := range []string{"dst/", "dst/a", "dst/b", "dst/sub/c", "dst/sub/d/"} {
		_, err := store.Head(ctx, k)
		assert.NoError(t, err, k)
	}
	_, err := fs.Stat(ctx, "/src")
	assert.ErrorIs(t, err, object.ErrNotFound)
	assert.Equal(t, "3", content(t, store, "dst/sub/c"))

	assert.ErrorIs(t, fs.Rename(ctx, "/dst", "/dst/inner"), ErrUnsupported)
}

func TestRenamePartialFailure(t *testing.T) {
	mem := newMemory(t, map[string]string{"a": "payload"})
	faulty := &faultyStore{Store: mem, failDelete: map[string]bool{"a": true}}
	fs := New(faulty, Options{})
	ctx := context.Background()

	err := fs.Rename(ctx, "/a", "/b")
	require.ErrorIs(t, err, ErrPartialRename)
	assert.ErrorIs(t, err, errInjected)

	// both names exist after a partial rename
	_, err = mem.Head(ctx, "a")
	assert.NoError(t, err)
	_, err = mem.Head(ctx, "b")
	assert.NoError(t, err)
}

func TestRenameCopyFailureLeavesSource(t *testing.T) {
	mem := newMemory(t, map[string]string{"a": "payload"})
	faulty := &faultyStore{Store: mem, failCopy: map[string]bool{"a": true}}
	fs := New(faulty, Options{})

	err := fs.Rename(context.Background(), "/a", "/b")
	require.ErrorIs(t, err, errInjected)
	assert.NotErrorIs(t, err, ErrPartialRename)
	assert.Equal(t, 1, mem.Len())
}
