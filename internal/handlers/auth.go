package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/auth"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/util"
	"go.uber.org/zap"
)

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,numeric"`
}

type resetPasswordRequest struct {
	ResetToken  string `json:"reset_token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// respondAuthError maps auth service errors. Everything not listed is a 500.
func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrUserExists):
		util.RespondBadRequest(c, "User already exists")
	case errors.Is(err, auth.ErrInvalidOTP):
		util.RespondBadRequest(c, "Invalid or expired OTP")
	case errors.Is(err, auth.ErrTooManyAttempts):
		util.RespondBadRequest(c, "Too many attempts, request a new code")
	case errors.Is(err, auth.ErrNoPendingOTP):
		util.RespondBadRequest(c, "No pending verification for this email")
	case errors.Is(err, auth.ErrInvalidCredentials):
		util.RespondBadRequest(c, "Invalid credentials")
	case errors.Is(err, auth.ErrWrongPassword):
		util.RespondBadRequest(c, "Current password is incorrect")
	case errors.Is(err, auth.ErrInvalidToken):
		util.RespondBadRequest(c, "Invalid or expired reset token")
	default:
		logger.Log.Error("Auth request failed", zap.String("path", c.FullPath()), zap.Error(err))
		util.RespondInternalError(c)
	}
}

// Register starts a registration and emails a verification code
// POST /api/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.Register(c.Request.Context(), req); err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OTP sent to your email", "email": req.Email})
}

// SendOTP is the same flow as Register
// POST /api/auth/send-otp
func (h *Handlers) SendOTP(c *gin.Context) {
	var req auth.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.SendRegistrationOTP(c.Request.Context(), req); err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OTP sent to your email", "email": req.Email})
}

// VerifyOTP creates the account and returns a session
// POST /api/auth/verify-otp
func (h *Handlers) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.auth.VerifyRegistrationOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":    "Account created",
		"token":      resp.Token,
		"user":       resp.User,
		"expires_at": resp.ExpiresAt,
	})
}

// ResendOTP reissues a pending registration code
// POST /api/auth/resend-otp
func (h *Handlers) ResendOTP(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.ResendRegistrationOTP(c.Request.Context(), req.Email); err != nil {
		respondAuthError(c, err)
		return
	}
	util.RespondMessage(c, http.StatusOK, "OTP resent to your email")
}

// Login authenticates with email and password
// POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout marks the user offline
// POST /api/auth/logout
func (h *Handlers) Logout(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	if err := h.auth.Logout(c.Request.Context(), userID); err != nil {
		util.HandleDBError(c, err, "user")
		return
	}
	util.RespondMessage(c, http.StatusOK, "Logged out")
}

// Me returns the authenticated user
// GET /api/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Account()})
}

// ForgotPassword emails a reset code. The response is the same whether or
// not the address has an account.
// POST /api/auth/forgot-password
func (h *Handlers) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondAuthError(c, err)
		return
	}
	util.RespondMessage(c, http.StatusOK, "If an account exists for this email, a reset code has been sent")
}

// VerifyResetOTP exchanges a reset code for a reset token
// POST /api/auth/verify-reset-otp
func (h *Handlers) VerifyResetOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindJSON(c, &req) {
		return
	}
	token, expiresAt, err := h.auth.VerifyResetOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset_token": token, "expires_at": expiresAt})
}

// ResetPassword sets a new password with a reset token
// POST /api/auth/reset-password
func (h *Handlers) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req.ResetToken, req.NewPassword); err != nil {
		respondAuthError(c, err)
		return
	}
	util.RespondMessage(c, http.StatusOK, "Password has been reset")
}
