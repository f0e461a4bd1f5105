package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/util"
)

// RequireAdmin must run after the auth middleware. Non-admins get 403.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := util.GetUserFromContext(c)
		if !ok {
			return
		}
		if !user.IsAdmin {
			util.RespondForbidden(c, "Admin access required")
			return
		}
		c.Next()
	}
}
