package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sportsocial/backend/internal/email"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/otp"
	"github.com/sportsocial/backend/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOTP         = errors.New("invalid or expired OTP")
	ErrTooManyAttempts    = errors.New("too many attempts, request a new code")
	ErrNoPendingOTP       = errors.New("no pending verification for this email")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

// Service handles registration, login and password flows.
type Service struct {
	users  repository.UserRepository
	otps   *otp.Manager
	mailer email.Mailer
	tokens *TokenIssuer
}

// NewService creates a new authentication service
func NewService(jwtSecret []byte, users repository.UserRepository, otps *otp.Manager, mailer email.Mailer) *Service {
	return &Service{
		users:  users,
		otps:   otps,
		mailer: mailer,
		tokens: NewTokenIssuer(jwtSecret),
	}
}

// AuthResponse is returned by every flow that ends in a session.
type AuthResponse struct {
	Token     string         `json:"token"`
	User      models.Account `json:"user"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// RegisterRequest starts a registration; the account exists only after the
// emailed code is verified.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest represents native login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SendRegistrationOTP checks that the username and email are free, parks
// the hashed password with a fresh code, and emails the code.
func (s *Service) SendRegistrationOTP(ctx context.Context, req RegisterRequest) error {
	emailAddr := normalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)

	exists, err := s.users.ExistsByEmailOrUsername(ctx, emailAddr, username)
	if err != nil {
		return err
	}
	if exists {
		return ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	payload := map[string]string{
		"username":      username,
		"email":         emailAddr,
		"password_hash": string(hash),
	}
	return s.issueAndSend(ctx, otp.PurposeRegistration, emailAddr, payload)
}

// Register is the same flow as SendRegistrationOTP.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	return s.SendRegistrationOTP(ctx, req)
}

// ResendRegistrationOTP reissues the code for a pending registration.
func (s *Service) ResendRegistrationOTP(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	pending, err := s.otps.Pending(ctx, otp.PurposeRegistration, emailAddr)
	if errors.Is(err, otp.ErrNotFound) {
		return ErrNoPendingOTP
	}
	if err != nil {
		return err
	}
	return s.issueAndSend(ctx, otp.PurposeRegistration, emailAddr, pending.Payload)
}

// VerifyRegistrationOTP consumes the code and creates the account. The
// unique indexes catch a registration that raced past the pre-check.
func (s *Service) VerifyRegistrationOTP(ctx context.Context, emailAddr, code string) (*AuthResponse, error) {
	emailAddr = normalizeEmail(emailAddr)
	entry, err := s.verify(ctx, otp.PurposeRegistration, emailAddr, code)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     entry.Payload["username"],
		Email:        entry.Payload["email"],
		PasswordHash: entry.Payload["password_hash"],
		Sports:       []string{},
		Tags:         []string{},
		IsOnline:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	if err := s.mailer.SendWelcome(ctx, user.Email, user.Username); err != nil {
		logger.Log.Warn("Failed to send welcome email", logger.WithUserID(user.ID), zap.Error(err))
	}
	logger.Log.Info("User registered", logger.WithUserID(user.ID))
	return s.sessionFor(user)
}

// Login checks the password and marks the user online.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.users.SetOnline(ctx, user.ID, true); err != nil {
		return nil, err
	}
	user.IsOnline = true
	return s.sessionFor(user)
}

// Logout marks the user offline and stamps last_seen.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.users.SetOnline(ctx, userID, false)
}

// ForgotPassword emails a reset code when the account exists. It never
// reveals whether it does.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Log.Info("Password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	return s.issueAndSend(ctx, otp.PurposePasswordReset, emailAddr, map[string]string{"user_id": user.ID})
}

// VerifyResetOTP exchanges a reset code for a short-lived reset token.
func (s *Service) VerifyResetOTP(ctx context.Context, emailAddr, code string) (string, time.Time, error) {
	entry, err := s.verify(ctx, otp.PurposePasswordReset, normalizeEmail(emailAddr), code)
	if err != nil {
		return "", time.Time{}, err
	}
	grant := uuid.NewString()
	if err := s.otps.Grant(ctx, otp.PurposeResetGrant, grant, ResetTokenTTL); err != nil {
		return "", time.Time{}, err
	}
	return s.tokens.IssueWithID(entry.Payload["user_id"], PurposePasswordReset, grant, ResetTokenTTL)
}

// ResetPassword sets a new password using a reset token. Each reset token
// works once.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := s.tokens.Parse(resetToken)
	if err != nil {
		return err
	}
	if claims.Purpose != PurposePasswordReset || claims.ID == "" {
		return ErrInvalidToken
	}
	err = s.otps.Redeem(ctx, otp.PurposeResetGrant, claims.ID)
	if errors.Is(err, otp.ErrInvalidCode) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, claims.UserID, newPassword); err != nil {
		// Hand the grant back so the same token can be retried.
		if ttl := time.Until(claims.ExpiresAt.Time); ttl > 0 {
			if gerr := s.otps.Grant(ctx, otp.PurposeResetGrant, claims.ID, ttl); gerr != nil {
				logger.Log.Warn("Failed to restore reset grant", logger.WithUserID(claims.UserID), zap.Error(gerr))
			}
		}
		return err
	}
	return nil
}

// ChangePassword verifies the current password before replacing it.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrWrongPassword
	}
	return s.setPassword(ctx, userID, next)
}

// IssueToken signs a session token for userID.
func (s *Service) IssueToken(userID string) (string, time.Time, error) {
	return s.tokens.Issue(userID, "", SessionTokenTTL)
}

// ParseToken verifies a token of any purpose.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	return s.tokens.Parse(tokenString)
}

// ValidateToken accepts only session tokens and loads their user.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.tokens.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	if !claims.IsSession() {
		return nil, ErrInvalidToken
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) setPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, userID, string(hash))
}

func (s *Service) issueAndSend(ctx context.Context, purpose, emailAddr string, payload map[string]string) error {
	code, err := s.otps.Issue(ctx, purpose, emailAddr, payload)
	if err != nil {
		return err
	}
	if err := s.mailer.SendOTP(ctx, emailAddr, code, purpose); err != nil {
		_ = s.otps.Discard(ctx, purpose, emailAddr)
		return err
	}
	return nil
}

func (s *Service) verify(ctx context.Context, purpose, emailAddr, code string) (otp.Entry, error) {
	entry, err := s.otps.Verify(ctx, purpose, emailAddr, strings.TrimSpace(code))
	switch {
	case errors.Is(err, otp.ErrInvalidCode):
		return otp.Entry{}, ErrInvalidOTP
	case errors.Is(err, otp.ErrTooManyAttempts):
		return otp.Entry{}, ErrTooManyAttempts
	case err != nil:
		return otp.Entry{}, err
	}
	return entry, nil
}

func (s *Service) sessionFor(user *models.User) (*AuthResponse, error) {
	token, expiresAt, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, User: user.Account(), ExpiresAt: expiresAt}, nil
}

func normalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
