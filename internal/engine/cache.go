package engine

import (
	"sync"

	"github.com/pkg/errors"
)

// cacheKey identifies one engine instance.
type cacheKey struct {
	kind Kind
	key  string
}

// Cache memoizes constructed engines by kind and identity key.
//
// The first GetOrCreate for a key runs its factory, which may take minutes;
// concurrent callers asking for the same key wait for that construction
// instead of starting their own. Factory failures are returned to every
// waiter and are not remembered, so a later call retries. Entries live until
// the Cache is dropped.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
}

type cacheEntry struct {
	ready chan struct{}
	value any
	err   error
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]*cacheEntry)}
}

// GetOrCreate returns the engine stored under (kind, key), constructing it
// with factory on first use.
func (c *Cache) GetOrCreate(kind Kind, key string, factory func() (any, error)) (any, error) {
	k := cacheKey{kind: kind, key: key}

	c.mu.Lock()
	if e, ok := c.entries[k]; ok {
		c.mu.Unlock()
		<-e.ready
		if e.err != nil {
			return nil, e.err
		}
		return e.value, nil
	}
	e := &cacheEntry{ready: make(chan struct{})}
	c.entries[k] = e
	c.mu.Unlock()

	c.build(k, e, factory)
	if e.err != nil {
		return nil, e.err
	}
	return e.value, nil
}

// build runs factory for e. Waiters are released and failed entries removed
// even when factory panics; the panic then continues.
func (c *Cache) build(k cacheKey, e *cacheEntry, factory func() (any, error)) {
	returned := false
	defer func() {
		if !returned {
			e.err = errors.Errorf("create %s %q: factory panicked", k.kind, k.key)
		}
		if e.err != nil {
			c.mu.Lock()
			delete(c.entries, k)
			c.mu.Unlock()
		}
		close(e.ready)
	}()

	e.value, e.err = factory()
	if e.err != nil {
		e.err = errors.Wrapf(e.err, "create %s %q", k.kind, k.key)
	}
	returned = true
}

// Len reports the number of entries, engines still under construction
// included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Get is the typed form of GetOrCreate.
func Get[T any](c *Cache, kind Kind, key string, factory func() (T, error)) (T, error) {
	v, err := c.GetOrCreate(kind, key, func() (any, error) {
		return factory()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, errors.Errorf("cached %s %q has type %T", kind, key, v)
	}
	return t, nil
}
