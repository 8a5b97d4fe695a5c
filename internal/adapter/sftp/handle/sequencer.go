package handle

import (
	"context"
	"sync"
)

// Sequencer orders work per key in reservation order. Reserve must be
// called from the goroutine that observes arrival order (the decode loop);
// the returned Turn can then be waited on from any goroutine.
type Sequencer struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func NewSequencer() *Sequencer {
	return &Sequencer{tails: make(map[string]chan struct{})}
}

// Turn is one reserved slot in a key's queue.
type Turn struct {
	s    *Sequencer
	key  string
	prev chan struct{}
	done chan struct{}
	once sync.Once
}

// Reserve appends a slot for key and returns it.
func (s *Sequencer) Reserve(key string) *Turn {
	t := &Turn{s: s, key: key, done: make(chan struct{})}
	s.mu.Lock()
	t.prev = s.tails[key]
	s.tails[key] = t.done
	s.mu.Unlock()
	return t
}

// Wait blocks until every earlier Turn for the same key is done.
func (t *Turn) Wait(ctx context.Context) error {
	if t.prev == nil {
		return nil
	}
	select {
	case <-t.prev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done lets the next Turn proceed. It is safe to call more than once.
func (t *Turn) Done() {
	t.once.Do(func() {
		close(t.done)
		t.s.mu.Lock()
		if t.s.tails[t.key] == t.done {
			delete(t.s.tails, t.key)
		}
		t.s.mu.Unlock()
	})
}

// Pending returns the number of keys with outstanding turns.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tails)
}
