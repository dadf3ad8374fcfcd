// Package optimistic is a client-side cache that applies a local guess of a
// mutation's outcome immediately and reconciles it with the server's answer.
package optimistic

import (
	"context"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type mutation[V any] struct {
	version  uint64
	snapshot V
	had      bool
}

// keyState exists only while a key has mutations in flight.
type keyState[V any] struct {
	pending []*mutation[V]
	settled uint64 // version of the last server value written for the key
}

// Cache is safe for concurrent use. Every Set, Invalidate or successful Mutate is a
// settlement; the most recent settlement always wins over optimistic guesses.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	store    *lru.Cache[K, V]
	seq      uint64
	inflight map[K]*keyState[V]
}

func New[K comparable, V any](size int) (*Cache[K, V], error) {
	store, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	return &Cache[K, V]{store: store, inflight: make(map[K]*keyState[V])}, nil
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(key)
}

// Set stores an authoritative value, e.g. a fresh fetch.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Add(key, value)
	c.settleLocked(key)
}

// Invalidate drops key so the next read refetches. In-flight failures for the key
// will not bring the old value back.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Remove(key)
	c.settleLocked(key)
}

// Purge invalidates every key.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Purge()
	for key := range c.inflight {
		c.settleLocked(key)
	}
}

// Keys returns the cached keys, oldest first.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Keys()
}

func (c *Cache[K, V]) settleLocked(key K) {
	c.seq++
	if st, ok := c.inflight[key]; ok {
		st.settled = c.seq
	}
}

// Mutate patches the cached value for key with guess, then runs commit.
//
// guess is only applied when key is cached; commit receives the patched value (or
// the zero value) and returns the value the server confirmed. On success that value
// replaces the entry. On failure the entry is restored to exactly what it was before
// this mutation, unless a settlement for the key has happened since; if a newer
// mutation of the same key is still in flight, it inherits the snapshot instead so
// its own rollback lands on the right value.
func (c *Cache[K, V]) Mutate(ctx context.Context, key K, guess func(V) V, commit func(context.Context, V) (V, error)) (V, error) {
	c.mu.Lock()
	old, had := c.store.Get(key)
	c.seq++
	m := &mutation[V]{version: c.seq, snapshot: old, had: had}

	patched := old
	if had && guess != nil {
		patched = guess(old)
		c.store.Add(key, patched)
	}

	st, ok := c.inflight[key]
	if !ok {
		st = &keyState[V]{}
		c.inflight[key] = st
	}
	st.pending = append(st.pending, m)
	c.mu.Unlock()

	result, err := commit(ctx, patched)

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := slices.Index(st.pending, m)
	st.pending = slices.Delete(st.pending, idx, idx+1)
	defer func() {
		if len(st.pending) == 0 {
			delete(c.inflight, key)
		}
	}()

	if err == nil {
		_, present := c.store.Peek(key)
		if present || had {
			c.store.Add(key, result)
		}
		c.seq++
		st.settled = c.seq
		return result, nil
	}

	if st.settled > m.version {
		var zero V
		return zero, err
	}

	if idx < len(st.pending) {
		next := st.pending[idx]
		next.snapshot, next.had = m.snapshot, m.had
	} else if m.had {
		c.store.Add(key, m.snapshot)
	} else {
		c.store.Remove(key)
	}

	var zero V
	return zero, err
}
