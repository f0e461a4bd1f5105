package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/cache"
	"github.com/sportsocial/backend/internal/database"
)

// Health reports store and cache reachability. The store is required; a
// configured Redis that fails its ping degrades the status.
// GET /api/health
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{"database": "ok"}
	if err := database.Health(h.store.DB()); err != nil {
		status = http.StatusServiceUnavailable
		checks["database"] = err.Error()
	}
	if redis := cache.GetRedisClient(); redis != nil {
		checks["redis"] = "ok"
		if err := redis.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			if status == http.StatusOK {
				status = http.StatusServiceUnavailable
			}
		}
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"service":   "sports-social",
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}
