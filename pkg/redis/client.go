package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Every key lives under the "sf" namespace, then a purpose segment.
const (
	keyNamespace      = "sf"
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	lockPrefix        = "lock"
	cachePrefix       = "cache"
)

// releaseLease deletes a lease only while it still belongs to the caller.
var releaseLease = redis.NewScript(`if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`)

// hitWindow increments a counter and starts its window on the first hit.
var hitWindow = redis.NewScript(`local n = redis.call("INCR", KEYS[1])
if n == 1 and tonumber(ARGV[1]) > 0 then redis.call("PEXPIRE", KEYS[1], ARGV[1]) end
return n`)

// Nil is returned by Get when the key does not exist.
var Nil = redis.Nil

// ErrNotInitialized is returned by every call on a zero Client.
var ErrNotInitialized = errors.New("redis client not initialized")

// Client is the storefront's view of Redis: idempotency records, rate
// limit windows, leases and the suggestion cache.
type Client struct {
	raw *redis.Client
}

// IdempotencyStore is what the idempotency middleware needs.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	Set(context.Context, string, any, time.Duration) error
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// New dials Redis and fails unless the server answers a ping.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"addr": opts.Addr, "db": opts.DB}), "redis connection established")
	}
	return &Client{raw: raw}, nil
}

// FromClient wraps an existing go-redis client, e.g. one pointed at miniredis.
func FromClient(raw *redis.Client) *Client {
	return &Client{raw: raw}
}

// optionsFromConfig prefers the URL; pool sizing and timeouts from cfg only
// fill what the URL left unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
		if opts.DB == 0 {
			opts.DB = cfg.DB
		}
	case cfg.Address == "":
		return nil, errors.New("redis url or address is required")
	}

	fillInt(&opts.PoolSize, cfg.PoolSize)
	fillInt(&opts.MinIdleConns, cfg.MinIdleConns)
	fillDuration(&opts.DialTimeout, cfg.DialTimeout)
	fillDuration(&opts.ReadTimeout, cfg.ReadTimeout)
	fillDuration(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fillInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func fillDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}

func (c *Client) conn() (*redis.Client, error) {
	if c == nil || c.raw == nil {
		return nil, ErrNotInitialized
	}
	return c.raw, nil
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := c.conn()
	if err != nil {
		return err
	}
	return raw.Set(ctx, key, value, ttl).Err()
}

// Get returns Nil when key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	raw, err := c.conn()
	if err != nil {
		return "", err
	}
	return raw.Get(ctx, key).Result()
}

// SetNX writes value only if key does not exist yet and reports whether it did.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	raw, err := c.conn()
	if err != nil {
		return false, err
	}
	return raw.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	raw, err := c.conn()
	if err != nil {
		return err
	}
	return raw.Del(ctx, keys...).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	raw, err := c.conn()
	if err != nil {
		return err
	}
	return raw.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// FixedWindowAllow counts a hit against scope and reports whether the count
// is still within limit. The window starts at the first hit.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	raw, err := c.conn()
	if err != nil {
		return false, 0, err
	}
	count, err := hitWindow.Run(ctx, raw, []string{c.RateLimitKey(scope)}, window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", scope, err)
	}
	return count <= limit, count, nil
}

// AcquireLease takes key for owner until ttl elapses. It reports false when
// another owner holds it.
func (c *Client) AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, key, owner, ttl)
}

// ReleaseLease drops key only if owner still holds it.
func (c *Client) ReleaseLease(ctx context.Context, key, owner string) (bool, error) {
	raw, err := c.conn()
	if err != nil {
		return false, err
	}
	deleted, err := releaseLease.Run(ctx, raw, []string{key}, owner).Int64()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return joinKey(rateLimitPrefix, scope)
}

func (c *Client) LockKey(scope, id string) string {
	return joinKey(lockPrefix, scope, id)
}

func (c *Client) CacheKey(scope, id string) string {
	return joinKey(cachePrefix, scope, id)
}

// joinKey skips blank segments so optional ids never leave "::" behind.
func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
