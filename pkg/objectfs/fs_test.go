package objectfs

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dray/internal/protocol/sftp"
	"github.com/marmos91/dray/pkg/store/object"
	"github.com/marmos91/dray/pkg/store/object/memory"
)

// faultyStore fails Delete or Copy for selected keys.
type faultyStore struct {
	object.Store
	failDelete map[string]bool
	failCopy   map[string]bool
}

var errInjected = errors.New("injected failure")

func (f *faultyStore) Delete(ctx context.Context, key string) error {
	if f.failDelete[key] {
		return errInjected
	}
	return f.Store.Delete(ctx, key)
}

func (f *faultyStore) Copy(ctx context.Context, src, dst string) error {
	if f.failCopy[src] {
		return errInjected
	}
	return f.Store.Copy(ctx, src, dst)
}

func newMemory(t *testing.T, files map[string]string) *memory.Store {
	t.Helper()
	store := memory.New()
	for k, v := range files {
		require.NoError(t, store.Put(context.Background(), k, []byte(v)))
	}
	return store
}

func newFS(t *testing.T, opts Options, files map[string]string) (*FS, *memory.Store) {
	t.Helper()
	store := newMemory(t, files)
	return New(store, opts), store
}

func content(t *testing.T, s object.Store, key string) string {
	t.Helper()
	data, err := s.Get(context.Background(), key, 0, 0)
	require.NoError(t, err)
	return string(data)
}

func TestKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/", ""},
		{"", ""},
		{"/a", "a"},
		{"/a/b/", "a/b"},
		{"/a/../b", "b"},
		{"a//b", "a/b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Key(tt.in), tt.in)
	}
	assert.Equal(t, "", DirPrefix(""))
	assert.Equal(t, "a/b/", DirPrefix("a/b"))
}

func TestStat(t *testing.T) {
	fs, _ := newFS(t, Options{}, map[string]string{
		"home/alice/a.txt":  "hello",
		"home/alice/empty/": "",
		"implicit/x/y":      "z",
	})
	ctx := context.Background()

	t.Run("Root", func(t *testing.T) {
		fi, err := fs.Stat(ctx, "/")
		require.NoError(t, err)
		assert.True(t, fi.Dir)
	})

	t.Run("File", func(t *testing.T) {
		fi, err := fs.Stat(ctx, "/home/alice/a.txt")
		require.NoError(t, err)
		assert.False(t, fi.Dir)
		assert.Equal(t, "a.txt", fi.Name)
		assert.Equal(t, int64(5), fi.Size)
	})

	t.Run("MarkerDirectory", func(t *testing.T) {
		fi, err := fs.Stat(ctx, "/home/alice/empty")
		require.NoError(t, err)
		assert.True(t, fi.Dir)
		assert.False(t, fi.ModTime.IsZero())
	})

	t.Run("ImplicitDirectory", func(t *testing.T) {
		fi, err := fs.Stat(ctx, "/implicit")
		require.NoError(t, err)
		assert.True(t, fi.Dir)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := fs.Stat(ctx, "/nope")
		assert.ErrorIs(t, err, object.ErrNotFound)
	})
}

func TestAttributes(t *testing.T) {
	file := FileInfo{Name: "f", Size: 10}
	a := file.Attributes()
	assert.True(t, a.Has(sftp.AttrSize))
	assert.Equal(t, uint64(10), a.Size)
	assert.Equal(t, sftp.ModeRegular|0o644, a.Permissions)
	assert.False(t, a.Has(sftp.AttrACModTime))
	assert.False(t, a.Has(sftp.AttrUIDGID))

	dir := FileInfo{Name: "d", Dir: true}
	a = dir.Attributes()
	assert.False(t, a.Has(sftp.AttrSize))
	assert.True(t, a.IsDir())
	assert.Equal(t, sftp.ModeDir|0o755, a.Permissions)
}

func TestReader(t *testing.T) {
	fs, _ := newFS(t, Options{}, map[string]string{"f": "0123456789", "empty": "", "d/": ""})
	ctx := context.Background()

	r, err := fs.OpenReader(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, int64(10), r.Stat().Size)

	data, err := r.ReadAt(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, "234", string(data))

	data, err = r.ReadAt(ctx, 8, 100)
	require.NoError(t, err)
	assert.Equal(t, "89", string(data))

	_, err = r.ReadAt(ctx, 10, 1)
	assert.ErrorIs(t, err, io.EOF)

	data, err = r.ReadAt(ctx, 4, 0)
	require.NoError(t, err, "a zero-length read inside the file is not EOF")
	assert.Empty(t, data)

	empty, err := fs.OpenReader(ctx, "/empty")
	require.NoError(t, err)
	_, err = empty.ReadAt(ctx, 0, 10)
	assert.ErrorIs(t, err, io.EOF)

	_, err = fs.OpenReader(ctx, "/d")
	assert.ErrorIs(t, err, ErrIsDir)

	_, err = fs.OpenReader(ctx, "/missing")
	assert.ErrorIs(t, err, object.ErrNotFound)
}

func TestWriterSequential(t *testing.T) {
	fs, store := newFS(t, Options{}, nil)
	ctx := context.Background()

	w, err := fs.OpenWriter(ctx, "/out.bin", OpenMode{Create: true, Truncate: true})
	require.NoError(t, err)

	require.NoError(t, w.WriteAt(ctx, []byte("aaa"), 0))
	require.NoError(t, w.WriteAt(ctx, []byte("bbb"), 3))
	require.ErrorIs(t, w.WriteAt(ctx, []byte("zzz"), 100), ErrNonSequential)
	require.ErrorIs(t, w.WriteAt(ctx, []byte("zzz"), 1), ErrNonSequential)
	require.NoError(t, w.WriteAt(ctx, []byte("ccc"), 6))
	assert.Equal(t, 9, w.Buffered())

	back, err := w.ReadAt(ctx, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, "bbb", string(back))

	_, err = store.Head(ctx, "out.bin")
	require.ErrorIs(t, err, object.ErrNotFound, "nothing is stored before commit")

	require.NoError(t, w.Commit(ctx))
	require.NoError(t, w.Commit(ctx))
	assert.Equal(t, "aaabbbccc", content(t, store, "out.bin"))
}

func TestWriterOpenPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyCommitCreatesObject", func(t *testing.T) {
		fs, store := newFS(t, Options{}, nil)
		w, err := fs.OpenWriter(ctx, "/new", OpenMode{Create: true})
		require.NoError(t, err)
		require.NoError(t, w.Commit(ctx))
		assert.Equal(t, "", content(t, store, "new"))
	})

	t.Run("ExclusiveOnExisting", func(t *testing.T) {
		fs, _ := newFS(t, Options{}, map[string]string{"f": "x"})
		_, err := fs.OpenWriter(ctx, "/f", OpenMode{Create: true, Exclusive: true})
		assert.ErrorIs(t, err, ErrExist)
	})

	t.Run("NoCreateOnMissing", func(t *testing.T) {
		fs, _ := newFS(t, Options{}, nil)
		_, err := fs.OpenWriter(ctx, "/f", OpenMode{})
		assert.ErrorIs(t, err, object.ErrNotFound)
	})

	t.Run("Directory", func(t *testing.T) {
		fs, _ := newFS(t, Options{}, map[string]string{"d/": ""})
		_, err := fs.OpenWriter(ctx, "/d", OpenMode{Create: true})
		assert.ErrorIs(t, err, ErrIsDir)
	})

	t.Run("UntouchedExistingIsKept", func(t *testing.T) {
		fs, store := newFS(t, Options{}, map[string]string{"f": "keep"})
		w, err := fs.OpenWriter(ctx, "/f", OpenMode{})
		require.NoError(t, err)
		require.NoError(t, w.Commit(ctx))
		assert.Equal(t, "keep", content(t, store, "f"))
	})

	t.Run("OverwriteOfCommittedContentRejected", func(t *testing.T) {
		fs, store := newFS(t, Options{}, map[string]string{"f": "hello world"})
		w, err := fs.OpenWriter(ctx, "/f", OpenMode{})
		require.NoError(t, err)
		assert.Equal(t, int64(11), w.Stat().Size)

		assert.ErrorIs(t, w.WriteAt(ctx, []byte("XY"), 0), ErrNonSequential)
		assert.ErrorIs(t, w.WriteAt(ctx, []byte("XY"), 20), ErrNonSequential)
		require.NoError(t, w.Commit(ctx))
		assert.Equal(t, "hello world", content(t, store, "f"))
	})

	t.Run("ResumeAtCommittedSize", func(t *testing.T) {
		fs, store := newFS(t, Options{}, map[string]string{"f": "hello"})
		w, err := fs.OpenWriter(ctx, "/f", OpenMode{})
		require.NoError(t, err)

		back, err := w.ReadAt(ctx, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, "ell", string(back))

		require.NoError(t, w.WriteAt(ctx, []byte(" world"), 5))
		require.NoError(t, w.WriteAt(ctx, []byte("!"), 11))
		require.NoError(t, w.Commit(ctx))
		assert.Equal(t, "hello world!", content(t, store, "f"))
	})

	t.Run("TruncateEmpties", func(t *testing.T) {
		fs, store := newFS(t, Options{}, map[string]string{"f": "gone"})
		w, err := fs.OpenWriter(ctx, "/f", OpenMode{Truncate: true})
		require.NoError(t, err)
		require.NoError(t, w.Commit(ctx))
		assert.Equal(t, "", content(t, store, "f"))
	})

	t.Run("AppendSeedsBuffer", func(t *testing.T) {
		fs, store := newFS(t, Options{}, map[string]string{"log": "one,"})
		w, err := fs.OpenWriter(ctx, "/log", OpenMode{Append: true})
		require.NoError(t, err)
		assert.Equal(t, int64(4), w.Stat().Size)

		require.NoError(t, w.WriteAt(ctx, []byte("two"), 0))
		require.NoError(t, w.Commit(ctx))
		assert.Equal(t, "one,two", content(t, store, "log"))
	})
}

func TestWriterBufferLimit(t *testing.T) {
	fs, _ := newFS(t, Options{MaxWriteBuffer: 4}, map[string]string{"big": "12345"})
	ctx := context.Background()

	w, err := fs.OpenWriter(ctx, "/f", OpenMode{Create: true})
	require.NoError(t, err)
	require.NoError(t, w.WriteAt(ctx, []byte("abcd"), 0))
	assert.ErrorIs(t, w.WriteAt(ctx, []byte("e"), 4), ErrBufferFull)

	_, err = fs.OpenWriter(ctx, "/big", OpenMode{Append: true})
	assert.ErrorIs(t, err, ErrBufferFull)

	w, err = fs.OpenWriter(ctx, "/big", OpenMode{})
	require.NoError(t, err)
	assert.ErrorIs(t, w.WriteAt(ctx, []byte("6"), 5), ErrBufferFull)
}
