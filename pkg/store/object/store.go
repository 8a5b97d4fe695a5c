// Package object defines the capability set dray needs from an object store.
//
// Keys are flat, '/'-delimited strings without a leading slash. Directories
// do not exist as objects; they are inferred from common key prefixes and,
// when empty, represented by a zero-byte marker whose key ends in '/'.
package object

import (
	"context"
	"errors"
	"time"
)

// Delimiter separates path components inside keys.
const Delimiter = "/"

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when the key does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrAccessDenied is returned when the backend refuses the credentials
	// for the requested key or bucket.
	ErrAccessDenied = errors.New("object access denied")

	// ErrInvalidRange is returned by Get when offset lies beyond the object.
	ErrInvalidRange = errors.New("object range not satisfiable")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// Info describes one stored object.
type Info struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// ListPage is one page of a delimited listing.
type ListPage struct {
	// Objects are keys directly under the prefix (no further delimiter).
	Objects []Info

	// CommonPrefixes are the distinct "sub-directory" prefixes, each ending
	// in the delimiter.
	CommonPrefixes []string

	// NextToken resumes the listing. Empty when the listing is complete.
	NextToken string
}

// Done reports whether this is the last page.
func (p *ListPage) Done() bool { return p.NextToken == "" }

// Store is the object storage capability set.
//
// Implementations must be safe for concurrent use; a single Store is shared
// by every session.
type Store interface {
	// List returns one page of keys that start with prefix, grouped on
	// Delimiter. token is empty for the first page and NextToken of the
	// previous page afterwards. limit <= 0 selects the backend default.
	List(ctx context.Context, prefix, token string, limit int) (*ListPage, error)

	// Head returns metadata for key, or ErrNotFound.
	Head(ctx context.Context, key string) (Info, error)

	// Get reads length bytes starting at offset. A read that runs past the
	// end is truncated. An offset at or beyond the end returns
	// ErrInvalidRange; length <= 0 reads to the end.
	Get(ctx context.Context, key string, offset, length int64) ([]byte, error)

	// Put stores data as the whole content of key, replacing any previous
	// object.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes key. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, key string) error

	// Copy duplicates src to dst server-side. Returns ErrNotFound if src
	// does not exist.
	Copy(ctx context.Context, src, dst string) error

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
