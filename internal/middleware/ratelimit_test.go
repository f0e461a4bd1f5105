package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedRouter(limiter Limiter, config RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit("test", limiter, config))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func get(router http.Handler, clientID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/test", nil)
	if clientID != "" {
		req.Header.Set("X-Client-ID", clientID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := RateLimitConfig{Limit: 3, Window: time.Second}
	router := limitedRouter(NewMemoryLimiter(ctx, config), config)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(router, "").Code, "Request %d should succeed", i+1)
	}

	w := get(router, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "4th request should be rate limited")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body["code"])
	assert.NotEmpty(t, body["message"])

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, http.StatusOK, get(router, "").Code, "Request after refill should succeed")
}

func TestRateLimiterDifferentClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := RateLimitConfig{
		Limit:  2,
		Window: time.Second,
		KeyFunc: func(c *gin.Context) string {
			return c.GetHeader("X-Client-ID")
		},
	}
	router := limitedRouter(NewMemoryLimiter(ctx, config), config)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, get(router, "client-a").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, get(router, "client-a").Code, "Client A should be rate limited")
	assert.Equal(t, http.StatusOK, get(router, "client-b").Code, "Client B should not be rate limited")
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 0, errors.New("connection refused")
}
func (failingLimiter) Backend() string { return "redis" }

func TestRateLimiterBackendFailureIs503(t *testing.T) {
	router := limitedRouter(failingLimiter{}, DefaultRateLimitConfig())
	assert.Equal(t, http.StatusServiceUnavailable, get(router, "").Code)
}

func TestNewLimiterFallsBackToMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Equal(t, "memory", NewLimiter(ctx, nil, AuthRateLimitConfig()).Backend())
}

func TestDefaultConfigs(t *testing.T) {
	defaultConfig := DefaultRateLimitConfig()
	assert.Equal(t, 100, defaultConfig.Limit)
	assert.Equal(t, time.Minute, defaultConfig.Window)

	authConfig := AuthRateLimitConfig()
	assert.Equal(t, 10, authConfig.Limit)
	assert.Equal(t, time.Minute, authConfig.Window)
}

func TestIdleBucketsAreSwept(t *testing.T) {
	rl := &MemoryLimiter{buckets: make(map[string]*TokenBucket), config: RateLimitConfig{Limit: 5, Window: 50 * time.Millisecond}}
	ok, _, err := rl.Allow(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rl.sweep(ctx, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		return len(rl.buckets) == 0
	}, time.Second, 10*time.Millisecond)
}
