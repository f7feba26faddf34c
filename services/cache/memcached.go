package cachesvc

import (
	"context"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/intigym/backoffice/core"
)

const (
	keyPrefix = "intigym:"

	maxRelativeExp = 30 * 24 * 60 * 60 // memcached treats larger values as unix timestamps
	defaultExp     = 3600
)

// MemcachedCache implements core.Cache on memcached.
type MemcachedCache struct {
	client *memcache.Client
}

var _ core.Cache = (*MemcachedCache)(nil)

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list of host:port.
func NewMemcachedCache(addrs string, timeout time.Duration) *MemcachedCache {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	return &MemcachedCache{client: client}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *MemcachedCache) key(k string) string {
	return keyPrefix + k
}

func (c *MemcachedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return nil, false, nil
		}
		return nil, false, err
	}
	return item.Value, true, nil
}

func (c *MemcachedCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      value,
		Expiration: expiration(ttl),
	})
}

func (c *MemcachedCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.client.Delete(c.key(key)); err != nil && err != memcache.ErrCacheMiss {
		return err
	}
	return nil
}

// Ping checks that every server is reachable.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

func expiration(ttl time.Duration) int32 {
	sec := int32(ttl.Seconds())
	if sec <= 0 || sec > maxRelativeExp {
		return defaultExp
	}
	return sec
}
