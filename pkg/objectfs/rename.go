package objectfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/marmos91/dray/pkg/store/object"
)

// Remove deletes the file at p.
func (fs *FS) Remove(ctx context.Context, p string) error {
	key := Key(p)
	if key == "" {
		return fmt.Errorf("remove /: %w", ErrIsDir)
	}
	err := fs.store.Delete(ctx, key)
	if err == nil || !object.IsNotFound(err) {
		return err
	}
	if _, ok, derr := fs.dirExists(ctx, key); derr == nil && ok {
		return fmt.Errorf("remove %s: %w", p, ErrIsDir)
	}
	return err
}

// Rename moves oldPath to newPath by copying then deleting. Directories are
// moved key by key. The target must not exist. When the copy succeeded but
// removing the source failed, the error wraps ErrPartialRename.
func (fs *FS) Rename(ctx context.Context, oldPath, newPath string) error {
	oldKey, newKey := Key(oldPath), Key(newPath)
	if oldKey == "" || newKey == "" {
		return fmt.Errorf("rename %s to %s: %w", oldPath, newPath, ErrUnsupported)
	}

	src, err := fs.Stat(ctx, oldPath)
	if err != nil {
		return err
	}
	if oldKey == newKey {
		return nil
	}
	if _, err := fs.Stat(ctx, newPath); err == nil {
		return fmt.Errorf("rename %s to %s: %w", oldPath, newPath, ErrExist)
	} else if !object.IsNotFound(err) {
		return err
	}

	if !src.Dir {
		if err := fs.store.Copy(ctx, oldKey, newKey); err != nil {
			return err
		}
		if err := fs.store.Delete(ctx, oldKey); err != nil {
			return fmt.Errorf("rename %s to %s: %w: %w", oldPath, newPath, ErrPartialRename, err)
		}
		return nil
	}

	oldPrefix, newPrefix := DirPrefix(oldKey), DirPrefix(newKey)
	if strings.HasPrefix(newPrefix, oldPrefix) {
		return fmt.Errorf("rename %s into itself: %w", oldPath, ErrUnsupported)
	}

	keys, err := fs.walk(ctx, oldPrefix)
	if err != nil {
		return err
	}
	for i, k := range keys {
		if err := fs.store.Copy(ctx, k, newPrefix+strings.TrimPrefix(k, oldPrefix)); err != nil {
			if i == 0 {
				return err
			}
			return fmt.Errorf("rename %s to %s: %w: %w", oldPath, newPath, ErrPartialRename, err)
		}
	}
	for _, k := range keys {
		if err := fs.store.Delete(ctx, k); err != nil && !object.IsNotFound(err) {
			return fmt.Errorf("rename %s to %s: %w: %w", oldPath, newPath, ErrPartialRename, err)
		}
	}
	return nil
}

// walk returns every key under prefix, descending into common prefixes.
func (fs *FS) walk(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pending := []string{prefix}
	for len(pending) > 0 {
		p := pending[0]
		pending = pending[1:]

		token := ""
		for {
			page, err := fs.store.List(ctx, p, token, fs.pageSize)
			if err != nil {
				return nil, err
			}
			for _, o := range page.Objects {
				keys = append(keys, o.Key)
			}
			pending = append(pending, page.CommonPrefixes...)
			if page.Done() {
				break
			}
			token = page.NextToken
		}
	}
	return keys, nil
}
