// Package objectfs maps filesystem-shaped operations onto an object.Store.
//
// Paths are absolute, '/'-separated and cleaned by the caller. A path maps to
// a key by dropping the leading slash; the root maps to the empty prefix.
// Directories are never stored as such: a directory exists when at least one
// key lives under "<key>/", and an empty directory is kept alive by a
// zero-byte marker object whose key is exactly "<key>/".
package objectfs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/marmos91/dray/internal/protocol/sftp"
	"github.com/marmos91/dray/pkg/store/object"
)

// Errors returned by FS operations, in addition to object.ErrNotFound and the
// other object store sentinels which are passed through.
var (
	ErrExist         = errors.New("file already exists")
	ErrNotEmpty      = errors.New("directory not empty")
	ErrIsDir         = errors.New("is a directory")
	ErrNotDir        = errors.New("not a directory")
	ErrNonSequential = errors.New("non-sequential write")
	ErrBufferFull    = errors.New("write buffer limit exceeded")
	ErrUnsupported   = errors.New("operation not supported")

	// ErrPartialRename means a rename copied its source but could not remove
	// it afterwards; both names may now exist.
	ErrPartialRename = errors.New("rename partially applied")
)

const (
	// DefaultMaxWriteBuffer bounds the bytes buffered per open file.
	DefaultMaxWriteBuffer int64 = 512 << 20

	// DefaultListPageSize is the backend page size used for READDIR.
	DefaultListPageSize = 1000

	FilePerm uint32 = 0o644
	DirPerm  uint32 = 0o755
)

// Options tune an FS. Zero values select the defaults.
type Options struct {
	MaxWriteBuffer int64
	ListPageSize   int
}

// FS is the filesystem view over a store. It holds no per-session state and
// is safe for concurrent use.
type FS struct {
	store          object.Store
	maxWriteBuffer int64
	pageSize       int
}

func New(store object.Store, opts Options) *FS {
	if opts.MaxWriteBuffer <= 0 {
		opts.MaxWriteBuffer = DefaultMaxWriteBuffer
	}
	if opts.ListPageSize <= 0 {
		opts.ListPageSize = DefaultListPageSize
	}
	return &FS{
		store:          store,
		maxWriteBuffer: opts.MaxWriteBuffer,
		pageSize:       opts.ListPageSize,
	}
}

// Store returns the underlying object store.
func (fs *FS) Store() object.Store { return fs.store }

// Key returns the object key for an absolute path. The root yields "".
func Key(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// DirPrefix returns the listing prefix of the directory stored at key.
func DirPrefix(key string) string {
	if key == "" {
		return ""
	}
	return key + object.Delimiter
}

// FileInfo describes a file or directory.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
	Dir     bool
}

// Mode returns the permission bits advertised for fi, type bits included.
func (fi FileInfo) Mode() uint32 {
	if fi.Dir {
		return sftp.ModeDir | DirPerm
	}
	return sftp.ModeRegular | FilePerm
}

// Attributes synthesizes SFTP attributes. Ownership is never reported.
func (fi FileInfo) Attributes() sftp.Attributes {
	var a sftp.Attributes
	if !fi.Dir {
		a.SetSize(uint64(fi.Size))
	}
	a.SetPermissions(fi.Mode())
	if !fi.ModTime.IsZero() {
		a.SetTimes(fi.ModTime, fi.ModTime)
	}
	return a
}

// Stat resolves p to a file or directory.
func (fs *FS) Stat(ctx context.Context, p string) (FileInfo, error) {
	key := Key(p)
	if key == "" {
		return FileInfo{Name: "/", Dir: true}, nil
	}

	info, err := fs.store.Head(ctx, key)
	if err == nil {
		return FileInfo{Name: path.Base(key), Size: info.Size, ModTime: info.ModTime}, nil
	}
	if !object.IsNotFound(err) {
		return FileInfo{}, err
	}

	modTime, ok, err := fs.dirExists(ctx, key)
	if err != nil {
		return FileInfo{}, err
	}
	if !ok {
		return FileInfo{}, fmt.Errorf("stat %s: %w", p, object.ErrNotFound)
	}
	return FileInfo{Name: path.Base(key), ModTime: modTime, Dir: true}, nil
}

// ImplicitDir describes a directory at p that has no backing key, such as a
// home nobody has written to yet.
func ImplicitDir(p string) FileInfo {
	return FileInfo{Name: path.Base(p), Dir: true}
}

// dirExists reports whether any key lives under key's directory prefix. The
// marker's modification time is returned when the first key found is the
// marker itself.
func (fs *FS) dirExists(ctx context.Context, key string) (time.Time, bool, error) {
	prefix := DirPrefix(key)
	page, err := fs.store.List(ctx, prefix, "", 1)
	if err != nil {
		return time.Time{}, false, err
	}
	for _, o := range page.Objects {
		if o.Key == prefix {
			return o.ModTime, true, nil
		}
	}
	return time.Time{}, len(page.Objects) > 0 || len(page.CommonPrefixes) > 0, nil
}
