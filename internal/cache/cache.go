// Package cache provides a small in-process read-through cache with a fixed
// TTL and per-key in-flight deduplication.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched value stays fresh.
const DefaultTTL = 5 * time.Minute

// FetchFunc loads the value for a key on a miss.
type FetchFunc[T any] func(ctx context.Context) (T, error)

type entry[T any] struct {
	value   T
	expires time.Time
}

type options struct {
	now func() time.Time
}

// Option configures a ReadThrough cache.
type Option func(*options)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// ReadThrough caches values by key for a fixed TTL. Concurrent misses for
// the same key share one fetch. Failed fetches are never cached.
//
// A ReadThrough is safe for concurrent use.
type ReadThrough[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry[T]
	// gen is bumped by Invalidate so a fetch that started before the
	// invalidation does not repopulate the entry. epoch does the same for Purge.
	gen   map[string]uint64
	epoch uint64
	group *singleflight.Group
}

type stamp struct {
	epoch, gen uint64
}

// New creates a cache. A non-positive ttl means DefaultTTL.
func New[T any](ttl time.Duration, opts ...Option) *ReadThrough[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ReadThrough[T]{
		ttl:     ttl,
		now:     o.now,
		entries: make(map[string]entry[T]),
		gen:     make(map[string]uint64),
		group:   new(singleflight.Group),
	}
}

// TTL returns the freshness window.
func (c *ReadThrough[T]) TTL() time.Duration {
	return c.ttl
}

// Get returns the fresh cached value for key, or calls fetch.
//
// The fetch runs detached from ctx so that one caller giving up does not
// fail the others waiting on the same key; ctx only bounds how long this
// caller waits.
func (c *ReadThrough[T]) Get(ctx context.Context, key string, fetch FetchFunc[T]) (T, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.flights().DoChan(key, func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		st := c.stampOf(key)
		v, err := fetch(detached)
		if err != nil {
			return nil, err
		}
		c.store(key, st, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	}
}

// Invalidate drops the entry for key. An in-flight fetch for key still
// completes for its waiters but is not stored.
func (c *ReadThrough[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.gen[key]++
	c.group.Forget(key)
}

// Purge drops every entry. In-flight fetches are detached the same way
// as in Invalidate.
func (c *ReadThrough[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[T])
	c.epoch++
	c.group = new(singleflight.Group)
}

// Len returns the number of stored entries. Expired entries linger until
// their key is read or the next store sweeps them.
func (c *ReadThrough[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ReadThrough[T]) lookup(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok && !c.now().Before(e.expires) {
		delete(c.entries, key)
		ok = false
	}
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (c *ReadThrough[T]) flights() *singleflight.Group {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.group
}

func (c *ReadThrough[T]) stampOf(key string) stamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return stamp{epoch: c.epoch, gen: c.gen[key]}
}

func (c *ReadThrough[T]) store(key string, st stamp, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != st.epoch || c.gen[key] != st.gen {
		return
	}
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry[T]{value: v, expires: now.Add(c.ttl)}
}
