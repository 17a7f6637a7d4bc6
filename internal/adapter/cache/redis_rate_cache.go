package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/zabuni/zabuni/internal/ports"
)

// RedisRateCache is the advisory exchange-rate cache backed by Redis.
// Cache failures are logged and treated as misses; resolution always has
// the rate repository to fall back on.
type RedisRateCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisRateCache creates a rate cache and verifies connectivity
func NewRedisRateCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) (ports.RateCache, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"ttl": ttl.String(),
	}).Info("Exchange-rate cache initialized")

	return &RedisRateCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Get retrieves a cached rate; ok is false on a miss or any cache failure
func (c *RedisRateCache) Get(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, bool) {
	value, err := c.client.Get(ctx, c.key(from, to, asOf)).Result()
	if err == redis.Nil {
		return decimal.Zero, false
	}
	if err != nil {
		c.logger.WithError(err).Warn("Rate cache read failed, resolving directly")
		return decimal.Zero, false
	}

	rate, err := decimal.NewFromString(value)
	if err != nil {
		c.logger.WithError(err).Warn("Rate cache held an unparseable value")
		return decimal.Zero, false
	}

	return rate, true
}

// Put caches a resolved rate for the configured TTL; failures are logged only
func (c *RedisRateCache) Put(ctx context.Context, from, to string, asOf time.Time, rate decimal.Decimal) {
	if err := c.client.Set(ctx, c.key(from, to, asOf), rate.String(), c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Rate cache write failed")
	}
}

func (c *RedisRateCache) key(from, to string, asOf time.Time) string {
	return fmt.Sprintf("fxrate:%s:%s:%s", from, to, asOf.Format("2006-01-02"))
}
