package auth

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/models"
)

// AuthServiceInterface is what the HTTP and realtime layers depend on.
type AuthServiceInterface interface {
	// Registration
	Register(ctx context.Context, req RegisterRequest) error
	SendRegistrationOTP(ctx context.Context, req RegisterRequest) error
	ResendRegistrationOTP(ctx context.Context, email string) error
	VerifyRegistrationOTP(ctx context.Context, email, code string) (*AuthResponse, error)

	// Sessions
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Logout(ctx context.Context, userID string) error

	// Passwords
	ForgotPassword(ctx context.Context, email string) error
	VerifyResetOTP(ctx context.Context, email, code string) (string, time.Time, error)
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
	ChangePassword(ctx context.Context, userID, current, next string) error

	// Tokens
	IssueToken(userID string) (string, time.Time, error)
	ParseToken(tokenString string) (*Claims, error)
	ValidateToken(ctx context.Context, tokenString string) (*models.User, error)
	Middleware() gin.HandlerFunc
}

// Ensure Service implements AuthServiceInterface
var _ AuthServiceInterface = (*Service)(nil)
