package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/models"
)

const (
	ContextUserKey   = "user"
	ContextUserIDKey = "user_id"
)

// GetUserFromContext returns the authenticated user. When it is missing the
// request is answered with 401 and false is returned.
func GetUserFromContext(c *gin.Context) (*models.User, bool) {
	user, exists := c.Get(ContextUserKey)
	if !exists {
		RespondUnauthorized(c)
		return nil, false
	}
	userPtr, ok := user.(*models.User)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "invalid user data in context"})
		return nil, false
	}
	return userPtr, true
}

// GetUserIDFromContext returns the authenticated user's ID, answering 401
// when the request carries none.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get(ContextUserIDKey)
	if !exists {
		RespondUnauthorized(c)
		return "", false
	}
	userIDStr, ok := userID.(string)
	if !ok || userIDStr == "" {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "invalid user ID in context"})
		return "", false
	}
	return userIDStr, true
}

// SetUser stores the authenticated user for downstream handlers.
func SetUser(c *gin.Context, user *models.User) {
	c.Set(ContextUserKey, user)
	c.Set(ContextUserIDKey, user.ID)
}
