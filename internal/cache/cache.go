// Package cache provides a generic TTL and capacity bounded cache for
// expensive derivations.
//
// Expiry is lazy: a stale entry is dropped only when Get observes it or
// during Prune. On overflow the oldest inserted entry is evicted; reads
// never change insertion order.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
	"golang.org/x/sync/singleflight"

	"github.com/razvandimescu/docreader/internal/metrics"
)

const (
	DefaultTTL        = 30 * time.Second
	DefaultMaxEntries = 100
)

// Options configures a Cache. Zero values select the defaults.
type Options struct {
	TTL        time.Duration
	MaxEntries int
	// Name labels the cache in metrics. Unnamed caches are not reported.
	Name string
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type entry[T any] struct {
	key       string
	data      T
	timestamp time.Time
}

// Cache is safe for concurrent use.
type Cache[T any] struct {
	mu    sync.Mutex
	items *simplelru.LRU // only read with Peek, so list order is insertion order
	ttl   time.Duration
	name  string
	now   func() time.Time
	group singleflight.Group
}

// New returns an empty cache.
func New[T any](opts Options) *Cache[T] {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	// NewLRU only fails for a non-positive size.
	items, _ := simplelru.NewLRU(opts.MaxEntries, nil)
	return &Cache[T]{
		items: items,
		ttl:   opts.TTL,
		name:  opts.Name,
		now:   opts.Now,
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lookup(key)
	if ok {
		c.hit()
	} else {
		c.miss()
	}
	return v, ok
}

// lookup must be called with c.mu held.
func (c *Cache[T]) lookup(key string) (T, bool) {
	var zero T
	v, ok := c.items.Peek(key)
	if !ok {
		return zero, false
	}
	e := v.(*entry[T])
	if c.now().Sub(e.timestamp) > c.ttl {
		c.items.Remove(key)
		c.evicted("expired", 1)
		return zero, false
	}
	return e.data, true
}

// Set stores v under key. Re-setting an existing key refreshes its value and
// timestamp but keeps its insertion position.
func (c *Cache[T]) Set(key string, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if old, ok := c.items.Peek(key); ok {
		e := old.(*entry[T])
		e.data = v
		e.timestamp = now
		return
	}
	if c.items.Add(key, &entry[T]{key: key, data: v, timestamp: now}) {
		c.evicted("capacity", 1)
	}
}

// WithCache returns the cached value for key, or runs compute and caches its
// result. Concurrent misses for the same key share one compute call. Errors
// are returned to every waiting caller and never cached.
func (c *Cache[T]) WithCache(key string, compute func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		cached, ok := c.lookup(key)
		c.mu.Unlock()
		if ok {
			return cached, nil
		}

		fresh, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(key, fresh)
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	res, _ := v.(T)
	return res, nil
}

// Prune drops every expired entry and returns how many were removed.
func (c *Cache[T]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, k := range c.items.Keys() {
		v, ok := c.items.Peek(k)
		if !ok {
			continue
		}
		if now.Sub(v.(*entry[T]).timestamp) > c.ttl {
			c.items.Remove(k)
			removed++
		}
	}
	c.evicted("expired", removed)
	return removed
}

// Clear drops every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Purge()
}

// Len returns the number of stored entries, including stale ones not yet pruned.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// Keys returns stored keys from oldest to newest insertion.
func (c *Cache[T]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw := c.items.Keys()
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, k.(string))
	}
	return keys
}

func (c *Cache[T]) hit() {
	if c.name != "" {
		metrics.RecordCacheHit(c.name)
	}
}

func (c *Cache[T]) miss() {
	if c.name != "" {
		metrics.RecordCacheMiss(c.name)
	}
}

func (c *Cache[T]) evicted(reason string, n int) {
	if c.name != "" && n > 0 {
		metrics.RecordCacheEviction(c.name, reason, n)
	}
}
