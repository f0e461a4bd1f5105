package middleware

import (
	"context"
	"time"

	"github.com/sportsocial/backend/internal/cache"
)

// RedisLimiter counts requests per fixed window in Redis, so every server
// instance shares the same budget.
type RedisLimiter struct {
	client *cache.RedisClient
	config RateLimitConfig
}

func NewRedisLimiter(client *cache.RedisClient, config RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{client: client, config: config}
}

func (rl *RedisLimiter) Backend() string { return "redis" }

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	redisKey := "rate_limit:" + key
	count, err := rl.client.IncrWithExpiry(ctx, redisKey, rl.config.Window)
	if err != nil {
		return false, 0, err
	}
	if count <= int64(rl.config.Limit) {
		return true, 0, nil
	}

	ttl, err := rl.client.TTL(ctx, redisKey)
	if err != nil || ttl <= 0 {
		ttl = rl.config.Window
	}
	return false, ttl, nil
}

// NewLimiter picks Redis when a client is available, memory otherwise.
func NewLimiter(ctx context.Context, client *cache.RedisClient, config RateLimitConfig) Limiter {
	if client != nil {
		return NewRedisLimiter(client, config)
	}
	return NewMemoryLimiter(ctx, config)
}
