// Package handle tracks the open file and directory handles of one session.
package handle

import (
	"errors"
	"strconv"
	"sync"
)

// ErrInvalidHandle is returned for handles that were never issued or have
// already been released.
var ErrInvalidHandle = errors.New("invalid handle")

// Kind distinguishes file cursors from directory cursors.
type Kind uint8

const (
	KindFile Kind = iota + 1
	KindDir
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	}
	return "unknown"
}

type entry[T any] struct {
	mu       sync.Mutex
	kind     Kind
	state    T
	released bool
}

// Table maps handle ids to cursor state. Ids come from a counter so they
// are never reused within a Table. The zero value is not usable; call New.
type Table[T any] struct {
	mu      sync.Mutex
	next    uint64
	entries map[string]*entry[T]
}

func New[T any]() *Table[T] {
	return &Table[T]{entries: make(map[string]*entry[T])}
}

// Allocate stores state under a fresh handle id.
func (t *Table[T]) Allocate(kind Kind, state T) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	id := strconv.FormatUint(t.next, 10)
	t.entries[id] = &entry[T]{kind: kind, state: state}
	return id
}

func (t *Table[T]) get(id string) (*entry[T], error) {
	t.mu.Lock()
	e, ok := t.entries[id]
	t.mu.Unlock()
	if !ok {
		return nil, ErrInvalidHandle
	}
	return e, nil
}

// Lookup returns the current state of id.
func (t *Table[T]) Lookup(id string) (T, Kind, error) {
	var zero T
	e, err := t.get(id)
	if err != nil {
		return zero, 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return zero, 0, ErrInvalidHandle
	}
	return e.state, e.kind, nil
}

// Update replaces the state of id.
func (t *Table[T]) Update(id string, state T) error {
	return t.Do(id, func(cur *T, _ Kind) error {
		*cur = state
		return nil
	})
}

// Do runs fn with exclusive access to the state of id. Calls for the same
// id are serialized; calls for different ids run independently.
func (t *Table[T]) Do(id string, fn func(state *T, kind Kind) error) error {
	e, err := t.get(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return ErrInvalidHandle
	}
	return fn(&e.state, e.kind)
}

// Release removes id. New lookups fail immediately; Release then waits for
// any Do in progress before calling fn (which may be nil) with the final
// state. The handle stays released even if fn fails.
func (t *Table[T]) Release(id string, fn func(state T, kind Kind) error) error {
	t.mu.Lock()
	e, ok := t.entries[id]
	delete(t.entries, id)
	t.mu.Unlock()
	if !ok {
		return ErrInvalidHandle
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return ErrInvalidHandle
	}
	e.released = true
	if fn == nil {
		return nil
	}
	return fn(e.state, e.kind)
}

// Len returns the number of open handles.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Drain releases every handle without running any close logic and returns
// how many were open. Used when the channel goes away.
func (t *Table[T]) Drain() int {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*entry[T])
	t.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		e.released = true
		e.mu.Unlock()
	}
	return len(entries)
}
