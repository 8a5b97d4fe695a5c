// Package memory provides an in-memory object store for tests and
// throwaway servers.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dray/pkg/store/object"
)

const defaultPageSize = 1000

type item struct {
	data    []byte
	modTime time.Time
}

// Store is an in-memory implementation of object.Store.
type Store struct {
	mu      sync.RWMutex
	objects map[string]item
	closed  bool

	// now is swappable so tests can pin modification times.
	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		objects: make(map[string]item),
		now:     time.Now,
	}
}

func (s *Store) List(ctx context.Context, prefix, token string, limit int) (*object.ListPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, object.ErrStoreClosed
	}

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	// Collapse keys into objects and common prefixes in order, the way S3
	// does, then page over that merged sequence.
	page := &object.ListPage{}
	count := 0
	lastPrefix := ""
	for _, k := range keys {
		rest := k[len(prefix):]
		name := k
		isPrefix := false
		if i := strings.Index(rest, object.Delimiter); i >= 0 {
			name = prefix + rest[:i+1]
			isPrefix = true
			if name == lastPrefix {
				continue
			}
			lastPrefix = name
		}
		if token != "" && name <= token {
			continue
		}
		if count == limit {
			page.NextToken = lastEmitted(page)
			return page, nil
		}
		if isPrefix {
			page.CommonPrefixes = append(page.CommonPrefixes, name)
		} else {
			it := s.objects[k]
			page.Objects = append(page.Objects, object.Info{Key: k, Size: int64(len(it.data)), ModTime: it.modTime})
		}
		count++
	}
	return page, nil
}

func lastEmitted(p *object.ListPage) string {
	last := ""
	if n := len(p.Objects); n > 0 {
		last = p.Objects[n-1].Key
	}
	if n := len(p.CommonPrefixes); n > 0 && p.CommonPrefixes[n-1] > last {
		last = p.CommonPrefixes[n-1]
	}
	return last
}

func (s *Store) Head(ctx context.Context, key string) (object.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return object.Info{}, object.ErrStoreClosed
	}
	it, ok := s.objects[key]
	if !ok {
		return object.Info{}, object.ErrNotFound
	}
	return object.Info{Key: key, Size: int64(len(it.data)), ModTime: it.modTime}, nil
}

func (s *Store) Get(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, object.ErrStoreClosed
	}
	it, ok := s.objects[key]
	if !ok {
		return nil, object.ErrNotFound
	}

	size := int64(len(it.data))
	if offset < 0 || (offset >= size && !(offset == 0 && size == 0)) {
		return nil, object.ErrInvalidRange
	}
	end := size
	if length > 0 && offset+length < size {
		end = offset + length
	}
	out := make([]byte, end-offset)
	copy(out, it.data[offset:end])
	return out, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return object.ErrStoreClosed
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	s.objects[key] = item{data: copied, modTime: s.now()}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return object.ErrStoreClosed
	}
	if _, ok := s.objects[key]; !ok {
		return object.ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *Store) Copy(ctx context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return object.ErrStoreClosed
	}
	it, ok := s.objects[src]
	if !ok {
		return object.ErrNotFound
	}
	s.objects[dst] = item{data: it.data, modTime: s.now()}
	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return object.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

var _ object.Store = (*Store)(nil)
