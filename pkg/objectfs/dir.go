package objectfs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/marmos91/dray/pkg/store/object"
)

// Lister is a forward-only cursor over one directory. It is not safe for
// concurrent use; callers serialize access per handle.
type Lister struct {
	fs     *FS
	info   FileInfo
	prefix string
	token  string
	done   bool
	seen   map[string]struct{}
}

// OpenDir opens p for listing.
func (fs *FS) OpenDir(ctx context.Context, p string) (*Lister, error) {
	fi, err := fs.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if !fi.Dir {
		return nil, fmt.Errorf("opendir %s: %w", p, ErrNotDir)
	}
	return fs.newLister(p, fi), nil
}

// OpenImplicitDir opens p for listing without requiring any key under it.
// A prefix with no keys lists as empty.
func (fs *FS) OpenImplicitDir(p string) *Lister {
	return fs.newLister(p, ImplicitDir(p))
}

func (fs *FS) newLister(p string, fi FileInfo) *Lister {
	return &Lister{
		fs:     fs,
		info:   fi,
		prefix: DirPrefix(Key(p)),
		seen:   make(map[string]struct{}),
	}
}

func (l *Lister) Stat() FileInfo { return l.info }

// Next returns the next batch of entries. Backend pages that contribute no
// new entry are skipped, so a nil error always comes with at least one
// entry. io.EOF marks the end of the listing.
func (l *Lister) Next(ctx context.Context) ([]FileInfo, error) {
	for !l.done {
		page, err := l.fs.store.List(ctx, l.prefix, l.token, l.fs.pageSize)
		if err != nil {
			return nil, err
		}
		l.token = page.NextToken
		l.done = page.Done()

		var entries []FileInfo
		for _, o := range page.Objects {
			name := strings.TrimPrefix(o.Key, l.prefix)
			if name == "" || !l.mark(name) {
				continue
			}
			entries = append(entries, FileInfo{Name: name, Size: o.Size, ModTime: o.ModTime})
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(cp, l.prefix), object.Delimiter)
			if name == "" || !l.mark(name) {
				continue
			}
			entries = append(entries, FileInfo{Name: name, Dir: true})
		}
		if len(entries) > 0 {
			return entries, nil
		}
	}
	return nil, io.EOF
}

// mark records name and reports whether it was new.
func (l *Lister) mark(name string) bool {
	if _, ok := l.seen[name]; ok {
		return false
	}
	l.seen[name] = struct{}{}
	return true
}

// Mkdir creates an empty directory marker at p.
func (fs *FS) Mkdir(ctx context.Context, p string) error {
	key := Key(p)
	if key == "" {
		return fmt.Errorf("mkdir /: %w", ErrExist)
	}
	if _, err := fs.Stat(ctx, p); err == nil {
		return fmt.Errorf("mkdir %s: %w", p, ErrExist)
	} else if !object.IsNotFound(err) {
		return err
	}
	return fs.store.Put(ctx, DirPrefix(key), nil)
}

// Rmdir removes an empty directory. Only the directory's own marker may
// remain under its prefix.
func (fs *FS) Rmdir(ctx context.Context, p string) error {
	key := Key(p)
	if key == "" {
		return fmt.Errorf("rmdir /: %w", ErrUnsupported)
	}
	fi, err := fs.Stat(ctx, p)
	if err != nil {
		return err
	}
	if !fi.Dir {
		return fmt.Errorf("rmdir %s: %w", p, ErrNotDir)
	}

	prefix := DirPrefix(key)
	token := ""
	for {
		page, err := fs.store.List(ctx, prefix, token, 2)
		if err != nil {
			return err
		}
		if len(page.CommonPrefixes) > 0 {
			return fmt.Errorf("rmdir %s: %w", p, ErrNotEmpty)
		}
		for _, o := range page.Objects {
			if o.Key != prefix {
				return fmt.Errorf("rmdir %s: %w", p, ErrNotEmpty)
			}
		}
		if page.Done() {
			break
		}
		token = page.NextToken
	}

	if err := fs.store.Delete(ctx, prefix); err != nil && !object.IsNotFound(err) {
		return err
	}
	return nil
}
