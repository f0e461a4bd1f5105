package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/metrics"
	"go.uber.org/zap"
)

// RedisClient wraps the redis.Client with centralized connection pooling
type RedisClient struct {
	client *redis.Client
}

// Singleton instance (package-level)
var globalRedis *RedisClient

// NewRedisClient connects to host:port and pings before returning.
// The connected client becomes the one GetRedisClient returns.
func NewRedisClient(host string, port string, password string) (*RedisClient, error) {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.ErrorWithFields("Failed to connect to Redis", err, zap.String("address", addr))
		_ = client.Close()
		return nil, err
	}

	rc := &RedisClient{client: client}
	globalRedis = rc

	logger.Log.Info("Redis client connected", zap.String("address", addr))
	return rc, nil
}

// GetRedisClient returns the global Redis client instance, or nil when
// Redis is not configured.
func GetRedisClient() *RedisClient {
	return globalRedis
}

// IsMiss reports whether err means the key does not exist.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Close closes the Redis connection gracefully
func (rc *RedisClient) Close() error {
	if rc == nil || rc.client == nil {
		return nil
	}
	if globalRedis == rc {
		globalRedis = nil
	}
	return rc.client.Close()
}

// Get retrieves a value; a missing key yields an error IsMiss accepts.
func (rc *RedisClient) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := rc.client.Get(ctx, key).Result()
	if IsMiss(err) {
		observe("get", start, nil)
	} else {
		observe("get", start, err)
	}
	return val, err
}

// SetEx stores a value in Redis with expiration
func (rc *RedisClient) SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := rc.client.Set(ctx, key, value, ttl).Err()
	observe("set", start, err)
	return err
}

// KeepTTL overwrites a value without touching its expiry.
func (rc *RedisClient) KeepTTL(ctx context.Context, key string, value interface{}) error {
	start := time.Now()
	err := rc.client.Set(ctx, key, value, redis.KeepTTL).Err()
	observe("set", start, err)
	return err
}

// Del deletes one or more keys from Redis
func (rc *RedisClient) Del(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := rc.client.Del(ctx, keys...).Err()
	observe("del", start, err)
	return err
}

// IncrWithExpiry increments key and starts its expiry on the first hit of a
// window, atomically.
func (rc *RedisClient) IncrWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error) {
	start := time.Now()
	pipe := rc.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	_, err := pipe.Exec(ctx)
	observe("incr", start, err)
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RunScript evaluates a Lua script, loading it on first use. A nil reply
// yields an error IsMiss accepts.
func (rc *RedisClient) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	start := time.Now()
	res, err := script.Run(ctx, rc.client, keys, args...).Result()
	if IsMiss(err) {
		observe("script", start, nil)
	} else {
		observe("script", start, err)
	}
	return res, err
}

// TTL returns the time-to-live for a key
func (rc *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rc.client.TTL(ctx, key).Result()
}

// Ping tests the Redis connection
func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func observe(operation string, start time.Time, err error) {
	metrics.RecordRedisOperation(operation, time.Since(start), err)
}
