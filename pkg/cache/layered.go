package cache

import (
	"context"
	"time"
)

// LayeredCache fronts a shared remote cache with a small in-process one.
// Writes go to both; reads fill the local layer from the remote one.
type LayeredCache struct {
	local    *MemoryCache
	remote   Service
	localTTL time.Duration
}

// NewLayeredCache keeps up to localEntries entries locally for at most localTTL.
func NewLayeredCache(remote Service, localEntries int, localTTL time.Duration) *LayeredCache {
	if localTTL <= 0 {
		localTTL = time.Minute
	}
	return &LayeredCache{
		local:    NewMemoryCache(WithMaxEntries(localEntries)),
		remote:   remote,
		localTTL: localTTL,
	}
}

func (lc *LayeredCache) ttl(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.localTTL {
		return expiration
	}
	return lc.localTTL
}

// Set writes the remote layer first. A failed remote write also drops the
// local entry.
func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := lc.remote.Set(ctx, key, data, expiration); err != nil {
		_ = lc.local.Delete(ctx, key)
		return err
	}
	lc.local.setBytes(key, data, lc.ttl(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if data, ok := lc.local.getBytes(key); ok {
		return decode(data, dest)
	}
	var data []byte
	if err := lc.remote.Get(ctx, key, &data); err != nil {
		return err
	}
	lc.local.setBytes(key, data, lc.localTTL)
	return decode(data, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.local.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = lc.local.DeleteByPattern(ctx, pattern)
	return lc.remote.DeleteByPattern(ctx, pattern)
}

// Close closes both layers.
func (lc *LayeredCache) Close() error {
	_ = lc.local.Close()
	return lc.remote.Close()
}
