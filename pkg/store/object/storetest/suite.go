// Package storetest is a conformance suite for object.Store implementations.
package storetest

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/marmos91/dray/pkg/store/object"
)

// StoreFactory creates a fresh, empty Store for each test. Use t.Cleanup
// for teardown.
type StoreFactory func(t *testing.T) object.Store

// RunConformanceSuite runs every conformance test against factory-built
// stores. Each test gets its own store.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s object.Store)
	}{
		{"PutHeadGet", testPutHeadGet},
		{"GetRange", testGetRange},
		{"PutOverwrites", testPutOverwrites},
		{"MissingKeys", testMissingKeys},
		{"Delete", testDelete},
		{"Copy", testCopy},
		{"ListDelimited", testListDelimited},
		{"ListPaging", testListPaging},
		{"ListEmptyMarker", testListEmptyMarker},
		{"HealthCheck", testHealthCheck},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, factory(t))
		})
	}
}

func put(t *testing.T, s object.Store, key string, data []byte) {
	t.Helper()
	if err := s.Put(t.Context(), key, data); err != nil {
		t.Fatalf("Put(%q) failed: %v", key, err)
	}
}

func testPutHeadGet(t *testing.T, s object.Store) {
	ctx := t.Context()
	data := []byte("hello, object store")
	put(t, s, "a/b/c.txt", data)

	info, err := s.Head(ctx, "a/b/c.txt")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if info.Size != int64(len(data)) {
		t.Errorf("Head size = %d, want %d", info.Size, len(data))
	}
	if info.ModTime.IsZero() {
		t.Errorf("Head returned zero ModTime")
	}

	got, err := s.Get(ctx, "a/b/c.txt", 0, 0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Get = %q, want %q", got, data)
	}

	put(t, s, "empty", nil)
	info, err = s.Head(ctx, "empty")
	if err != nil {
		t.Fatalf("Head(empty) failed: %v", err)
	}
	if info.Size != 0 {
		t.Errorf("empty object size = %d", info.Size)
	}
}

func testGetRange(t *testing.T, s object.Store) {
	ctx := t.Context()
	put(t, s, "range", []byte("0123456789"))

	cases := []struct {
		offset, length int64
		want           string
	}{
		{0, 4, "0123"},
		{4, 3, "456"},
		{8, 100, "89"},
		{9, 1, "9"},
		{3, 0, "3456789"},
	}
	for _, c := range cases {
		got, err := s.Get(ctx, "range", c.offset, c.length)
		if err != nil {
			t.Fatalf("Get(%d,%d) failed: %v", c.offset, c.length, err)
		}
		if string(got) != c.want {
			t.Errorf("Get(%d,%d) = %q, want %q", c.offset, c.length, got, c.want)
		}
	}

	if _, err := s.Get(ctx, "range", 10, 1); !errors.Is(err, object.ErrInvalidRange) {
		t.Errorf("Get past end: got %v, want ErrInvalidRange", err)
	}
}

func testPutOverwrites(t *testing.T, s object.Store) {
	ctx := t.Context()
	put(t, s, "k", []byte("first version, long"))
	put(t, s, "k", []byte("second"))

	got, err := s.Get(ctx, "k", 0, 0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Get = %q, want %q", got, "second")
	}
}

func testMissingKeys(t *testing.T, s object.Store) {
	ctx := t.Context()
	if _, err := s.Head(ctx, "missing"); !errors.Is(err, object.ErrNotFound) {
		t.Errorf("Head: got %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, "missing", 0, 1); !errors.Is(err, object.ErrNotFound) {
		t.Errorf("Get: got %v, want ErrNotFound", err)
	}
	if err := s.Copy(ctx, "missing", "dst"); !errors.Is(err, object.ErrNotFound) {
		t.Errorf("Copy: got %v, want ErrNotFound", err)
	}
}

func testDelete(t *testing.T, s object.Store) {
	ctx := t.Context()
	put(t, s, "doomed", []byte("x"))

	if err := s.Delete(ctx, "doomed"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Head(ctx, "doomed"); !errors.Is(err, object.ErrNotFound) {
		t.Errorf("Head after delete: got %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "doomed"); !errors.Is(err, object.ErrNotFound) {
		t.Errorf("second Delete: got %v, want ErrNotFound", err)
	}
}

func testCopy(t *testing.T, s object.Store) {
	ctx := t.Context()
	put(t, s, "src", []byte("payload"))

	if err := s.Copy(ctx, "src", "dir/dst"); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	for _, k := range []string{"src", "dir/dst"} {
		got, err := s.Get(ctx, k, 0, 0)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", k, err)
		}
		if string(got) != "payload" {
			t.Errorf("Get(%q) = %q", k, got)
		}
	}
}

func listAll(t *testing.T, s object.Store, prefix string, limit int) (keys, prefixes []string, pages int) {
	t.Helper()
	token := ""
	for {
		page, err := s.List(t.Context(), prefix, token, limit)
		if err != nil {
			t.Fatalf("List(%q) failed: %v", prefix, err)
		}
		pages++
		for _, o := range page.Objects {
			keys = append(keys, o.Key)
		}
		prefixes = append(prefixes, page.CommonPrefixes...)
		if page.Done() {
			return keys, prefixes, pages
		}
		token = page.NextToken
		if pages > 1000 {
			t.Fatalf("List(%q) did not terminate", prefix)
		}
	}
}

func testListDelimited(t *testing.T, s object.Store) {
	for _, k := range []string{"home/alice/a.txt", "home/alice/b.txt", "home/alice/docs/x", "home/alice/docs/y/z", "home/bob/c", "top"} {
		put(t, s, k, []byte(k))
	}

	keys, prefixes, _ := listAll(t, s, "home/alice/", 0)
	sort.Strings(keys)
	if fmt.Sprint(keys) != "[home/alice/a.txt home/alice/b.txt]" {
		t.Errorf("objects = %v", keys)
	}
	if fmt.Sprint(prefixes) != "[home/alice/docs/]" {
		t.Errorf("prefixes = %v", prefixes)
	}

	keys, prefixes, _ = listAll(t, s, "", 0)
	if fmt.Sprint(keys) != "[top]" || fmt.Sprint(prefixes) != "[home/]" {
		t.Errorf("root listing = %v %v", keys, prefixes)
	}
}

func testListPaging(t *testing.T, s object.Store) {
	const n = 7
	for i := 0; i < n; i++ {
		put(t, s, fmt.Sprintf("p/f%02d", i), nil)
	}
	put(t, s, "p/sub/inner", nil)

	keys, prefixes, pages := listAll(t, s, "p/", 3)
	if len(keys) != n {
		t.Errorf("got %d keys, want %d: %v", len(keys), n, keys)
	}
	if len(prefixes) != 1 {
		t.Errorf("got prefixes %v, want one", prefixes)
	}
	if pages < 3 {
		t.Errorf("expected paging with limit 3, got %d pages", pages)
	}

	seen := map[string]bool{}
	for _, k := range append(keys, prefixes...) {
		if seen[k] {
			t.Errorf("entry %q returned twice", k)
		}
		seen[k] = true
	}
}

func testListEmptyMarker(t *testing.T, s object.Store) {
	put(t, s, "dir/empty/", nil)

	keys, prefixes, _ := listAll(t, s, "dir/empty/", 0)
	if fmt.Sprint(keys) != "[dir/empty/]" || len(prefixes) != 0 {
		t.Errorf("marker listing = %v %v", keys, prefixes)
	}

	_, prefixes, _ = listAll(t, s, "dir/", 0)
	if fmt.Sprint(prefixes) != "[dir/empty/]" {
		t.Errorf("parent listing prefixes = %v", prefixes)
	}
}

func testHealthCheck(t *testing.T, s object.Store) {
	if err := s.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}
