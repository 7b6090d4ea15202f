package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/snapreel/backend/internal/logging"
)

// ProbeCache stores probe results keyed by media location.
type ProbeCache interface {
	Get(ctx context.Context, key string) (ProbeResult, bool, error)
	Set(ctx context.Context, key string, result ProbeResult) error
}

// CacheObserver is notified of every cache lookup.
type CacheObserver interface {
	ObserveProbeCache(hit bool)
}

// CachingProber consults a cache before running the wrapped prober.
// Cache failures are logged and bypassed.
type CachingProber struct {
	base     Prober
	cache    ProbeCache
	observer CacheObserver
}

// NewCachingProber wraps base with cache. observer may be nil.
func NewCachingProber(base Prober, cache ProbeCache, observer CacheObserver) *CachingProber {
	return &CachingProber{base: base, cache: cache, observer: observer}
}

func (c *CachingProber) Probe(ctx context.Context, input string) (ProbeResult, error) {
	if c == nil || c.base == nil {
		return ProbeResult{}, ErrProberUnavailable
	}
	logger := logging.FromContext(ctx)

	if result, ok, err := c.cache.Get(ctx, input); err != nil {
		logger.Warn("probe cache read failed", "error", err)
	} else {
		c.observe(ok)
		if ok {
			return result, nil
		}
	}

	result, err := c.base.Probe(ctx, input)
	if err != nil {
		return ProbeResult{}, err
	}
	if err := c.cache.Set(ctx, input, result); err != nil {
		logger.Warn("probe cache write failed", "error", err)
	}
	return result, nil
}

func (c *CachingProber) observe(hit bool) {
	if c.observer != nil {
		c.observer.ObserveProbeCache(hit)
	}
}

type memoryEntry struct {
	result  ProbeResult
	expires time.Time
}

// MemoryProbeCache is a TTL map.
type MemoryProbeCache struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[string]memoryEntry
}

// NewMemoryProbeCache keeps entries for ttl (one minute when unset).
func NewMemoryProbeCache(ttl time.Duration) *MemoryProbeCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MemoryProbeCache{ttl: ttl, now: time.Now, items: make(map[string]memoryEntry)}
}

func (c *MemoryProbeCache) Get(_ context.Context, key string) (ProbeResult, bool, error) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expires) {
		return ProbeResult{}, false, nil
	}
	return entry.result, true, nil
}

func (c *MemoryProbeCache) Set(_ context.Context, key string, result ProbeResult) error {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.items {
		if !now.Before(e.expires) {
			delete(c.items, k)
		}
	}
	c.items[key] = memoryEntry{result: result, expires: now.Add(c.ttl)}
	return nil
}

const redisProbePrefix = "snapreel:probe:"

// RedisProbeCache shares probe results across server instances.
type RedisProbeCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisProbeCache wraps an existing client.
func NewRedisProbeCache(rdb redis.Cmdable, ttl time.Duration) *RedisProbeCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisProbeCache{rdb: rdb, ttl: ttl}
}

// ConnectRedis parses url, dials, and pings.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (c *RedisProbeCache) Get(ctx context.Context, key string) (ProbeResult, bool, error) {
	data, err := c.rdb.Get(ctx, redisProbePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ProbeResult{}, false, nil
	}
	if err != nil {
		return ProbeResult{}, false, fmt.Errorf("redis get: %w", err)
	}
	var result ProbeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return ProbeResult{}, false, fmt.Errorf("decode cached probe: %w", err)
	}
	return result, true, nil
}

func (c *RedisProbeCache) Set(ctx context.Context, key string, result ProbeResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, redisProbePrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
