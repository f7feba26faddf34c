package cachesvc

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/intigym/backoffice/core"
)

// New returns the cache backend selected by conf.Cache.Backend.
func New(conf *core.Config) (core.Cache, error) {
	switch conf.Cache.Backend {
	case "", "memory":
		return NewMemoryCache(), nil
	case "memcached":
		return NewMemcachedCache(conf.Cache.MemcachedAddrs, conf.Cache.Timeout), nil
	}
	return nil, errors.Errorf("unsupported cache backend %q", conf.Cache.Backend)
}

// MemoryCache is a process local cache. Expired entries are dropped when read.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

var _ core.Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]cacheEntry)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores value for ttl. A non-positive ttl never expires.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := cacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.data[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}
