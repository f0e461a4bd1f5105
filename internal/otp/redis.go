package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sportsocial/backend/internal/cache"
)

const (
	redisKeyPrefix      = "otp:"
	redisAttemptsPrefix = "otp-attempts:"
)

// consumeScript deletes the entry and its attempt counter only when the
// stored secret still matches ARGV[1] and fewer than ARGV[2] attempts were
// spent, and returns the raw entry.
var consumeScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then return false end
local entry = cjson.decode(raw)
if entry.secret ~= ARGV[1] then return false end
local attempts = tonumber(redis.call("GET", KEYS[2]) or "0")
if attempts >= tonumber(ARGV[2]) then return false end
redis.call("DEL", KEYS[1], KEYS[2])
return raw
`)

// attemptScript increments the counter for a live entry. The counter
// expires with the entry. Returns -1 when the entry is gone.
var attemptScript = redis.NewScript(`
local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then return -1 end
local n = redis.call("INCR", KEYS[2])
redis.call("PEXPIRE", KEYS[2], ttl)
return n
`)

// RedisStore keeps entries in Redis as JSON with a TTL, so every server
// instance sees the same pending codes. Attempt counts live in a sibling
// key so they can be incremented without rewriting the entry.
type RedisStore struct {
	client *cache.RedisClient
}

func NewRedisStore(client *cache.RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode otp entry: %w", err)
	}
	if err := s.client.Del(ctx, redisAttemptsPrefix+key); err != nil {
		return err
	}
	return s.client.SetEx(ctx, redisKeyPrefix+key, data, ttl)
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key)
	if cache.IsMiss(err) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	return decodeEntry(raw)
}

func (s *RedisStore) Consume(ctx context.Context, key, secret string) (Entry, error) {
	res, err := s.client.RunScript(ctx, consumeScript, []string{redisKeyPrefix + key, redisAttemptsPrefix + key}, secret, MaxAttempts)
	if cache.IsMiss(err) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	raw, ok := res.(string)
	if !ok {
		return Entry{}, fmt.Errorf("unexpected consume result %T", res)
	}
	return decodeEntry(raw)
}

func (s *RedisStore) AddAttempt(ctx context.Context, key string) (int, error) {
	res, err := s.client.RunScript(ctx, attemptScript, []string{redisKeyPrefix + key, redisAttemptsPrefix + key})
	if err != nil {
		return 0, err
	}
	n, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected attempt result %T", res)
	}
	if n < 0 {
		return 0, ErrNotFound
	}
	return int(n), nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key, redisAttemptsPrefix+key)
}

func decodeEntry(raw string) (Entry, error) {
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return Entry{}, fmt.Errorf("decode otp entry: %w", err)
	}
	return entry, nil
}
