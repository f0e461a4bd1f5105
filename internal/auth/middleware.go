package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/util"
	"go.uber.org/zap"
)

// BearerToken extracts the token from "Authorization: Bearer <jwt>".
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Middleware authenticates API requests. A missing token is 401; a token
// that fails verification, has expired, or is a reset token is 403.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := BearerToken(c.Request)
		if tokenString == "" {
			util.RespondUnauthorized(c, "Access token required")
			return
		}

		user, err := s.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) {
				logger.Log.Error("Token validation failed", zap.Error(err))
				util.RespondInternalError(c)
				return
			}
			util.RespondForbidden(c, "Invalid or expired token")
			return
		}

		util.SetUser(c, user)
		c.Next()
	}
}
