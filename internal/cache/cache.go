// Package cache is the client-side projection of backend state: a
// disposable in-memory TTL cache keyed by query, invalidated whenever the
// client mutates the backing table. Loads for the same key are collapsed
// through singleflight so each key has a single writer.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Invalidation groups. Keys carry their group as a prefix so a mutation
// can flush every projection of the table it touched.
const (
	GroupTransactions = "transactions"
	GroupBankAccounts = "bank_accounts"
)

// Key builds a cache key from an invalidation group and its parts.
func Key(group string, parts ...string) string {
	return group + ":" + strings.Join(parts, ":")
}

type entry struct {
	value     any
	expiresAt time.Time
}

// QueryCache caches query results with a fixed TTL. The zero value is not
// usable; construct with New.
type QueryCache struct {
	mu      sync.RWMutex
	data    map[string]entry
	ttl     time.Duration
	group   singleflight.Group
	enabled bool
	now     func() time.Time
}

// New creates a cache whose entries live for ttl. A disabled cache loads
// through to the source on every call.
func New(ttl time.Duration, enabled bool) *QueryCache {
	return &QueryCache{
		data:    make(map[string]entry),
		ttl:     ttl,
		enabled: enabled,
		now:     time.Now,
	}
}

// Loader produces a value for a key on cache miss.
type Loader func(ctx context.Context) (any, error)

// GetOrLoad returns the cached value for key, or runs loader once per key
// concurrently and caches its result. Errors are never cached.
func (c *QueryCache) GetOrLoad(ctx context.Context, key string, loader Loader) (any, error) {
	if !c.enabled {
		return loader(ctx)
	}

	if value, ok := c.get(key); ok {
		return value, nil
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		if value, ok := c.get(key); ok {
			return value, nil
		}

		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.set(key, value)
		return value, nil
	})
	return value, err
}

// Invalidate drops every entry belonging to the given groups.
func (c *QueryCache) Invalidate(groups ...string) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.data {
		for _, group := range groups {
			if strings.HasPrefix(key, group+":") {
				delete(c.data, key)
				break
			}
		}
	}
}

// Flush drops everything.
func (c *QueryCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]entry)
}

// Len reports the number of live entries, expired ones included until read.
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func (c *QueryCache) get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (c *QueryCache) set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
}
