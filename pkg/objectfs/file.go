package objectfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/marmos91/dray/pkg/store/object"
)

// Reader serves ranged reads of one object. Its size is fixed at open time.
type Reader struct {
	fs   *FS
	key  string
	info FileInfo
}

// OpenReader opens an existing file for reading.
func (fs *FS) OpenReader(ctx context.Context, p string) (*Reader, error) {
	fi, err := fs.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if fi.Dir {
		return nil, fmt.Errorf("open %s: %w", p, ErrIsDir)
	}
	return &Reader{fs: fs, key: Key(p), info: fi}, nil
}

func (r *Reader) Stat() FileInfo { return r.info }

// ReadAt returns up to length bytes at offset. It returns io.EOF, never an
// empty slice, once offset reaches the end of the object. A zero length
// before the end returns no data and no error.
func (r *Reader) ReadAt(ctx context.Context, offset int64, length int) ([]byte, error) {
	if offset < 0 {
		return nil, object.ErrInvalidRange
	}
	if offset >= r.info.Size {
		return nil, io.EOF
	}
	if length <= 0 {
		return nil, nil
	}

	data, err := r.fs.store.Get(ctx, r.key, offset, int64(length))
	if errors.Is(err, object.ErrInvalidRange) {
		// object shrank since open
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, io.EOF
	}
	return data, nil
}

// OpenMode selects the OPEN policy for a writable file.
type OpenMode struct {
	Create    bool
	Exclusive bool
	Truncate  bool
	Append    bool
}

// Writer accumulates a whole object in memory and stores it on Commit.
// Writes must extend the buffer contiguously; in append mode the offset is
// ignored and data always lands at the end.
//
// An existing object opened without truncation or append keeps its
// committed content: the first write must start at its size, which loads
// that content into the buffer. Writes below it would patch committed
// bytes and fail with ErrNonSequential.
type Writer struct {
	fs      *FS
	key     string
	mode    OpenMode
	buf     []byte
	existed bool
	dirty   bool
	done    bool
	modTime time.Time

	// committed is the size of backend content not yet loaded into buf.
	committed int64
}

// OpenWriter opens p for writing according to mode.
func (fs *FS) OpenWriter(ctx context.Context, p string, mode OpenMode) (*Writer, error) {
	key := Key(p)
	if key == "" {
		return nil, fmt.Errorf("open %s: %w", p, ErrIsDir)
	}

	fi, err := fs.Stat(ctx, p)
	exists := err == nil
	switch {
	case err != nil && !object.IsNotFound(err):
		return nil, err
	case exists && fi.Dir:
		return nil, fmt.Errorf("open %s: %w", p, ErrIsDir)
	case exists && mode.Exclusive && mode.Create:
		return nil, fmt.Errorf("open %s: %w", p, ErrExist)
	case !exists && !mode.Create:
		return nil, fmt.Errorf("open %s: %w", p, object.ErrNotFound)
	}

	w := &Writer{fs: fs, key: key, mode: mode, existed: exists, modTime: fi.ModTime}
	if !exists || mode.Truncate || fi.Size == 0 {
		return w, nil
	}
	if !mode.Append {
		w.committed = fi.Size
		return w, nil
	}
	if err := w.load(ctx, fi.Size); err != nil {
		return nil, fmt.Errorf("open %s for append: %w", p, err)
	}
	return w, nil
}

// load seeds the buffer with the committed object.
func (w *Writer) load(ctx context.Context, size int64) error {
	if size > w.fs.maxWriteBuffer {
		return ErrBufferFull
	}
	data, err := w.fs.store.Get(ctx, w.key, 0, 0)
	if err != nil {
		return err
	}
	w.buf = data
	w.committed = 0
	return nil
}

// WriteAt buffers data at offset.
func (w *Writer) WriteAt(ctx context.Context, data []byte, offset int64) error {
	if w.done {
		return fmt.Errorf("write %s: already committed", w.key)
	}
	if w.committed > 0 {
		if offset != w.committed {
			return fmt.Errorf("write %s at %d, committed %d: %w", w.key, offset, w.committed, ErrNonSequential)
		}
		if err := w.load(ctx, w.committed); err != nil {
			return fmt.Errorf("write %s: %w", w.key, err)
		}
	}
	if !w.mode.Append && offset != int64(len(w.buf)) {
		return fmt.Errorf("write %s at %d, buffered %d: %w", w.key, offset, len(w.buf), ErrNonSequential)
	}
	if int64(len(w.buf))+int64(len(data)) > w.fs.maxWriteBuffer {
		return fmt.Errorf("write %s: %w", w.key, ErrBufferFull)
	}
	w.buf = append(w.buf, data...)
	w.dirty = true
	return nil
}

// ReadAt reads back content for handles opened read-write: committed
// content the buffer has not loaded yet comes from the store, everything
// else from the buffer.
func (w *Writer) ReadAt(ctx context.Context, offset int64, length int) ([]byte, error) {
	if offset < 0 {
		return nil, object.ErrInvalidRange
	}
	if offset >= w.size() {
		return nil, io.EOF
	}
	if length <= 0 {
		return nil, nil
	}
	if w.committed > 0 {
		r := Reader{fs: w.fs, key: w.key, info: FileInfo{Size: w.committed}}
		return r.ReadAt(ctx, offset, length)
	}
	end := min(offset+int64(length), int64(len(w.buf)))
	out := make([]byte, end-offset)
	copy(out, w.buf[offset:end])
	return out, nil
}

func (w *Writer) size() int64 {
	if w.committed > 0 {
		return w.committed
	}
	return int64(len(w.buf))
}

func (w *Writer) Stat() FileInfo {
	return FileInfo{Name: path.Base(w.key), Size: w.size(), ModTime: w.modTime}
}

// Buffered returns the number of bytes held in memory.
func (w *Writer) Buffered() int { return len(w.buf) }

// Commit stores the buffer as the object's content. An untouched handle on
// an existing file leaves the object alone unless it was opened with
// truncation. Commit is idempotent.
func (w *Writer) Commit(ctx context.Context) error {
	if w.done {
		return nil
	}
	if !w.dirty && w.existed && !w.mode.Truncate {
		w.done = true
		return nil
	}
	if err := w.fs.store.Put(ctx, w.key, w.buf); err != nil {
		return fmt.Errorf("commit %s: %w", w.key, err)
	}
	w.done = true
	w.buf = nil
	return nil
}
