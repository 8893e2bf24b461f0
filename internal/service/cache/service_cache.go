package cache

import (
	"context"
	"errors"
	"time"

	pkgcache "FinFactor/pkg/cache"
)

// ServiceCache stores response bytes in a pkg/cache backend (redis, layered
// or memory) under a key prefix.
type ServiceCache struct {
	svc     pkgcache.Service
	prefix  string
	timeout time.Duration
}

func NewServiceCache(svc pkgcache.Service, prefix string) *ServiceCache {
	if prefix == "" {
		prefix = "http"
	}
	return &ServiceCache{svc: svc, prefix: prefix, timeout: 500 * time.Millisecond}
}

func (c *ServiceCache) key(k string) string { return pkgcache.Key(c.prefix, k) }

func (c *ServiceCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	var b []byte
	if err := c.svc.Get(ctx, c.key(key), &b); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (c *ServiceCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.svc.Set(ctx, c.key(key), value, ttl)
}

var _ BytesCache = (*ServiceCache)(nil)
