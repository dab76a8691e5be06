// Package cache provides the read-side balance cache. It is a best-effort
// derived view: the engine invalidates it after committed transfers and
// never consults it for correctness.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	keyPrefix  = "balance:"
	defaultTTL = 5 * time.Minute
)

// RedisBalanceCache implements engine.BalanceCache on Redis.
type RedisBalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, redisURL string) (*RedisBalanceCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisBalanceCache{client: client, ttl: defaultTTL}, nil
}

func (c *RedisBalanceCache) Get(ctx context.Context, accountNumber string) (decimal.Decimal, bool) {
	val, err := c.client.Get(ctx, keyPrefix+accountNumber).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false
	}
	if err != nil {
		// A sick cache is a miss, never an error surfaced to callers.
		slog.Warn("balance cache read failed", "account", accountNumber, "error", err)
		return decimal.Zero, false
	}
	balance, err := decimal.NewFromString(val)
	if err != nil {
		slog.Warn("balance cache held garbage, dropping", "account", accountNumber, "value", val)
		c.client.Del(ctx, keyPrefix+accountNumber)
		return decimal.Zero, false
	}
	return balance, true
}

func (c *RedisBalanceCache) Set(ctx context.Context, accountNumber string, balance decimal.Decimal) error {
	return c.client.Set(ctx, keyPrefix+accountNumber, balance.StringFixed(2), c.ttl).Err()
}

func (c *RedisBalanceCache) Invalidate(ctx context.Context, accountNumbers ...string) error {
	if len(accountNumbers) == 0 {
		return nil
	}
	keys := make([]string, len(accountNumbers))
	for i, n := range accountNumbers {
		keys[i] = keyPrefix + n
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close releases the underlying connection.
func (c *RedisBalanceCache) Close() error {
	return c.client.Close()
}
