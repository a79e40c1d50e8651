// Package cache wraps github.com/dgraph-io/ristretto/v2 as a compiled-query
// cache: key is a GraphQL operation's source text, value its compiled
// result. Grounded on the dgraph-io-dgraph pack's posting.PlCache — an
// init'd ristretto.Cache guarded with nil-receiver checks so a disabled
// cache (Options.CacheEnabled == false) can be represented as a nil
// *Cache without branching at every call site.
package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache is a bounded, per-entry-TTL cache of compiled GraphQL operations.
// It is not an LRU: ristretto admits new keys through a TinyLFU frequency
// filter and evicts by sampled least-frequent use, and a Get does not
// make an entry more recent. Get is a hint — a cache miss never fails a
// compile, it just means the compiler runs. Set is best-effort —
// ristretto can drop a set under contention or reject it at admission.
type Cache[V any] struct {
	store    *ristretto.Cache[string, V]
	ttl      time.Duration
	capacity int64
}

// New builds a Cache holding up to maxEntries items, each evicted after
// ttl regardless of access pattern. maxEntries <= 0 disables the cache:
// New still returns a non-nil *Cache, but Get always misses and Set is a
// no-op, so callers don't need a separate enabled/disabled branch.
func New[V any](maxEntries int, ttl time.Duration) (*Cache[V], error) {
	if maxEntries <= 0 {
		return &Cache[V]{ttl: ttl}, nil
	}

	store, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &Cache[V]{store: store, ttl: ttl, capacity: int64(maxEntries)}, nil
}

// Get returns the cached value for key, if present and not yet expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	if c == nil || c.store == nil {
		var zero V
		return zero, false
	}
	return c.store.Get(key)
}

// Set stores value under key with the cache's configured TTL. It waits
// until ristretto has applied the buffered write, so a Get right after
// Set finds the value unless ristretto dropped or rejected it.
func (c *Cache[V]) Set(key string, value V) {
	if c == nil || c.store == nil {
		return
	}
	c.store.SetWithTTL(key, value, 1, c.ttl)
	c.store.Wait()
}

// Close releases the underlying ristretto cache's background goroutines.
func (c *Cache[V]) Close() {
	if c == nil || c.store == nil {
		return
	}
	c.store.Close()
}

// Stats describes a cache's configured shape, for diagnostics/logging.
type Stats struct {
	Capacity int64
	TTL      time.Duration
	Enabled  bool
}

// Stats reports the cache's configuration.
func (c *Cache[V]) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{Capacity: c.capacity, TTL: c.ttl, Enabled: c.store != nil}
}
