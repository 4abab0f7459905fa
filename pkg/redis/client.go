package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/abarbet/shoply-backend/pkg/config"
	pkgerrors "github.com/abarbet/shoply-backend/pkg/errors"
)

const (
	keyNamespace = "shoply"

	prefixRateLimit = "rate_limit"
	prefixCounter   = "counter"
	prefixCache     = "cache"
)

// cmdable is the subset of go-redis commands the client depends on.
// Tests substitute a mock implementation.
type cmdable interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Get(ctx context.Context, key string) *goredis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Incr(ctx context.Context, key string) *goredis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// Client wraps go-redis with namespaced keys and error translation.
type Client struct {
	rdb cmdable
}

// New connects to redis using cfg and verifies the connection with a ping.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	rdb := goredis.NewClient(opts)
	client := &Client{rdb: rdb}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return client, nil
}

func optionsFromConfig(cfg config.RedisConfig) (*goredis.Options, error) {
	if cfg.URL != "" {
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invalid redis url")
		}
		return opts, nil
	}

	if cfg.Address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "redis address is required")
	}

	return &goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, nil
}

func buildKey(prefix string, parts ...string) string {
	all := append([]string{keyNamespace, prefix}, parts...)
	return strings.Join(all, ":")
}

// RateLimitKey builds the key for a fixed-window rate limit bucket.
func RateLimitKey(scope, subject string) string {
	return buildKey(prefixRateLimit, scope, subject)
}

// CounterKey builds the key for a named counter.
func CounterKey(name string) string {
	return buildKey(prefixCounter, name)
}

// CacheVersionKey builds the key holding the generation counter for a
// cached collection.
func CacheVersionKey(collection string) string {
	return buildKey(prefixCache, collection, "version")
}

// CacheEntryKey builds the key for a cached value at a given generation.
// Bumping the generation orphans every older entry, which then ages out
// via TTL.
func CacheEntryKey(collection string, version int64, discriminator string) string {
	return buildKey(prefixCache, collection, fmt.Sprintf("v%d", version), discriminator)
}

// Set stores value under key with the given TTL. A zero TTL persists the key.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis set failed")
	}
	return nil
}

// Get fetches the value stored under key. The second return is false when
// the key does not exist.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis get failed")
	}
	return val, true, nil
}

// SetNX stores value under key only if the key does not exist. Returns true
// when the value was stored.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis setnx failed")
	}
	return ok, nil
}

// Incr increments the integer value stored under key and returns the new value.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	val, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis incr failed")
	}
	return val, nil
}

// IncrWithTTL increments key and, when the increment created the key,
// attaches the TTL so the window expires.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	val, err := c.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if val == 1 && ttl > 0 {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis expire failed")
		}
	}
	return val, nil
}

// FixedWindowAllow applies a fixed-window rate limit. It returns true while
// the number of calls within the window is at or below limit.
func (c *Client) FixedWindowAllow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	count, err := c.IncrWithTTL(ctx, key, window)
	if err != nil {
		return false, err
	}
	return count <= limit, nil
}

// CacheVersion returns the current generation for a cached collection.
// A missing counter reads as generation zero.
func (c *Client) CacheVersion(ctx context.Context, collection string) (int64, error) {
	val, found, err := c.Get(ctx, CacheVersionKey(collection))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	var version int64
	if _, err := fmt.Sscanf(val, "%d", &version); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis cache version is not numeric")
	}
	return version, nil
}

// BumpCacheVersion advances the generation for a cached collection,
// invalidating every entry written under earlier generations.
func (c *Client) BumpCacheVersion(ctx context.Context, collection string) (int64, error) {
	return c.Incr(ctx, CacheVersionKey(collection))
}

// Del removes the given keys. Missing keys are not an error.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis del failed")
	}
	return nil
}

// Ping verifies connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis ping failed")
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
