package handle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cursor struct {
	key    string
	offset uint64
}

func TestTableLifecycle(t *testing.T) {
	tbl := New[*cursor]()

	id := tbl.Allocate(KindFile, &cursor{key: "a"})
	state, kind, err := tbl.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, KindFile, kind)
	assert.Equal(t, "a", state.key)

	require.NoError(t, tbl.Update(id, &cursor{key: "a", offset: 5}))
	state, _, err = tbl.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), state.offset)

	var closed *cursor
	require.NoError(t, tbl.Release(id, func(c *cursor, k Kind) error {
		closed = c
		return nil
	}))
	assert.Equal(t, uint64(5), closed.offset)

	t.Run("ReleasedHandleIsInvalid", func(t *testing.T) {
		_, _, err := tbl.Lookup(id)
		assert.ErrorIs(t, err, ErrInvalidHandle)
		assert.ErrorIs(t, tbl.Update(id, nil), ErrInvalidHandle)
		assert.ErrorIs(t, tbl.Do(id, func(**cursor, Kind) error { return nil }), ErrInvalidHandle)
		assert.ErrorIs(t, tbl.Release(id, nil), ErrInvalidHandle)
	})

	t.Run("UnknownHandleIsInvalid", func(t *testing.T) {
		_, _, err := tbl.Lookup("nope")
		assert.ErrorIs(t, err, ErrInvalidHandle)
	})
}

func TestTableIDsAreNeverReused(t *testing.T) {
	tbl := New[int]()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := tbl.Allocate(KindDir, i)
		assert.False(t, seen[id], "id %q reused", id)
		seen[id] = true
		require.NoError(t, tbl.Release(id, nil))
	}
	assert.Zero(t, tbl.Len())
}

func TestTablesAreIndependent(t *testing.T) {
	a, b := New[int](), New[int]()
	id := a.Allocate(KindFile, 1)
	_, _, err := b.Lookup(id)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestReleaseStillClosesOnError(t *testing.T) {
	tbl := New[int]()
	id := tbl.Allocate(KindFile, 1)
	boom := errors.New("flush failed")

	assert.ErrorIs(t, tbl.Release(id, func(int, Kind) error { return boom }), boom)
	_, _, err := tbl.Lookup(id)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestDoSerializesSameHandle(t *testing.T) {
	tbl := New[[]int]()
	id := tbl.Allocate(KindFile, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = tbl.Do(id, func(s *[]int, _ Kind) error {
				*s = append(*s, i)
				return nil
			})
		}(i)
	}
	wg.Wait()

	state, _, err := tbl.Lookup(id)
	require.NoError(t, err)
	assert.Len(t, state, 50)
}

func TestDoOnDifferentHandlesDoesNotBlock(t *testing.T) {
	tbl := New[int]()
	slow := tbl.Allocate(KindFile, 0)
	fast := tbl.Allocate(KindFile, 0)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = tbl.Do(slow, func(*int, Kind) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	done := make(chan struct{})
	go func() {
		_ = tbl.Do(fast, func(*int, Kind) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("operation on a second handle blocked behind the first")
	}
	close(release)
}

func TestReleaseWaitsForInFlightDo(t *testing.T) {
	tbl := New[int]()
	id := tbl.Allocate(KindFile, 0)

	inside := make(chan struct{})
	finish := make(chan struct{})
	go func() {
		_ = tbl.Do(id, func(s *int, _ Kind) error {
			close(inside)
			<-finish
			*s = 42
			return nil
		})
	}()
	<-inside

	got := make(chan int, 1)
	go func() {
		_ = tbl.Release(id, func(s int, _ Kind) error {
			got <- s
			return nil
		})
	}()

	select {
	case <-got:
		t.Fatal("release ran while a Do was in progress")
	case <-time.After(50 * time.Millisecond):
	}
	close(finish)
	assert.Equal(t, 42, <-got)
}

func TestDrain(t *testing.T) {
	tbl := New[int]()
	a := tbl.Allocate(KindFile, 1)
	tbl.Allocate(KindDir, 2)

	assert.Equal(t, 2, tbl.Drain())
	assert.Zero(t, tbl.Len())
	_, _, err := tbl.Lookup(a)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestSequencerPreservesReservationOrder(t *testing.T) {
	s := NewSequencer()
	ctx := context.Background()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	turns := make([]*Turn, 20)
	for i := range turns {
		turns[i] = s.Reserve("h1")
	}
	// Start in reverse so the scheduler alone cannot explain the order.
	for i := len(turns) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, turns[i].Wait(ctx))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			turns[i].Done()
		}(i)
	}
	wg.Wait()

	for i := range order {
		assert.Equal(t, i, order[i])
	}
	assert.Zero(t, s.Pending())
}

func TestSequencerKeysAreIndependent(t *testing.T) {
	s := NewSequencer()
	blocker := s.Reserve("a")

	other := s.Reserve("b")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, other.Wait(ctx))
	other.Done()
	other.Done()
	blocker.Done()
}

func TestSequencerWaitHonoursContext(t *testing.T) {
	s := NewSequencer()
	first := s.Reserve("a")
	second := s.Reserve("a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, second.Wait(ctx), context.Canceled)
	first.Done()
	second.Done()
	assert.Zero(t, s.Pending())
}
