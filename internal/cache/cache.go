// Package cache provides typed, prefixed views on a shared gocache instance.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antichaos/antichaos/internal/config"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/codec"
	"github.com/eko/gocache/lib/v4/store"
	go_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the store holds an empty value for the key.
var ErrMiss = errors.New("cache miss")

// PrefixedCache wraps a cache.Cache and adds a prefix to all keys.
// Values are stored as JSON so that memory and redis stores behave the same.
type PrefixedCache[T any] struct {
	cache  *cache.Cache[string]
	prefix string
}

// NewPrefixedCache creates a new prefixed cache wrapper.
func NewPrefixedCache[T any](c *cache.Cache[string], prefix string) *PrefixedCache[T] {
	return &PrefixedCache[T]{
		cache:  c,
		prefix: prefix,
	}
}

func (p *PrefixedCache[T]) key(key any) string {
	return p.prefix + fmt.Sprintf("%v", key)
}

// Get retrieves a value from the cache with the prefixed key.
func (p *PrefixedCache[T]) Get(ctx context.Context, key any) (T, error) {
	var result T
	data, err := p.cache.Get(ctx, p.key(key))
	if err != nil {
		return result, err
	}
	if data == "" {
		return result, ErrMiss
	}
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return result, err
	}
	return result, nil
}

// Set stores a value in the cache with the prefixed key.
func (p *PrefixedCache[T]) Set(ctx context.Context, key any, object T, options ...store.Option) error {
	data, err := json.Marshal(object)
	if err != nil {
		return err
	}
	return p.cache.Set(ctx, p.key(key), string(data), options...)
}

// Delete removes a value from the cache with the prefixed key.
func (p *PrefixedCache[T]) Delete(ctx context.Context, key any) error {
	return p.cache.Delete(ctx, p.key(key))
}

// Clear removes all values from the underlying cache.
func (p *PrefixedCache[T]) Clear(ctx context.Context) error {
	return p.cache.Clear(ctx)
}

// GetStats returns the cache statistics.
func (p *PrefixedCache[T]) GetStats() *codec.Stats {
	return p.cache.GetCodec().GetStats()
}

// New creates the cache instance selected by the configuration.
func New(cfg *config.CacheConfig) (*cache.Cache[string], error) {
	switch cfg.Type {
	case config.CacheTypeRedis:
		return newRedisCache(cfg)
	default:
		return newMemoryCache(), nil
	}
}

func newMemoryCache() *cache.Cache[string] {
	gocacheClient := gocache.New(10*time.Minute, 5*time.Minute)
	gocacheStore := go_store.NewGoCache(gocacheClient)
	return cache.New[string](gocacheStore)
}

func newRedisCache(cfg *config.CacheConfig) (*cache.Cache[string], error) {
	opts := &redis.Options{Addr: cfg.RedisURL}
	if strings.Contains(cfg.RedisURL, "://") {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}
	redisStore := redis_store.NewRedis(redis.NewClient(opts))
	return cache.New[string](redisStore), nil
}
