package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sportsocial/backend/internal/database"
	"github.com/sportsocial/backend/internal/email"
	"github.com/sportsocial/backend/internal/otp"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// AuthServiceTestSuite contains auth service tests
type AuthServiceTestSuite struct {
	suite.Suite
	db          *gorm.DB
	store       *repository.Store
	mailer      *email.LogMailer
	authService *Service
	ctx         context.Context
}

func (suite *AuthServiceTestSuite) SetupTest() {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(suite.T(), err)
	suite.db = db
	suite.store = repository.NewStore(db)
	suite.mailer = email.NewLogMailer()
	suite.authService = NewService(
		[]byte("test_jwt_secret_key"),
		suite.store.Users,
		otp.NewManager(otp.NewMemoryStore()),
		suite.mailer,
	)
	suite.ctx = context.Background()
}

func (suite *AuthServiceTestSuite) TearDownTest() {
	if sqlDB, err := suite.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (suite *AuthServiceTestSuite) register(username, addr, password string) *AuthResponse {
	t := suite.T()
	require.NoError(t, suite.authService.SendRegistrationOTP(suite.ctx, RegisterRequest{
		Username: username, Email: addr, Password: password,
	}))
	sent, ok := suite.mailer.LastOTP(addr)
	require.True(t, ok)
	resp, err := suite.authService.VerifyRegistrationOTP(suite.ctx, addr, sent.Code)
	require.NoError(t, err)
	return resp
}

func (suite *AuthServiceTestSuite) TestRegistrationCreatesUserOnlyAfterVerification() {
	t := suite.T()
	require.NoError(t, suite.authService.Register(suite.ctx, RegisterRequest{
		Username: "alice", Email: "Alice@Example.com", Password: "secret123",
	}))

	_, err := suite.store.Users.GetByEmail(suite.ctx, "alice@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	sent, ok := suite.mailer.LastOTP("alice@example.com")
	require.True(t, ok)
	assert.Equal(t, otp.PurposeRegistration, sent.Purpose)

	resp, err := suite.authService.VerifyRegistrationOTP(suite.ctx, "alice@example.com", sent.Code)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.User.Username)
	assert.NotEqual(t, "secret123", resp.User.PasswordHash)

	claims, err := suite.authService.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
}

func (suite *AuthServiceTestSuite) TestVerifyReplayFails() {
	t := suite.T()
	suite.register("bob", "bob@example.com", "secret123")
	sent, _ := suite.mailer.LastOTP("bob@example.com")

	_, err := suite.authService.VerifyRegistrationOTP(suite.ctx, "bob@example.com", sent.Code)
	assert.ErrorIs(t, err, ErrInvalidOTP)
	assert.Equal(t, "invalid or expired OTP", ErrInvalidOTP.Error())
}

func (suite *AuthServiceTestSuite) TestDuplicateRegistrationRejected() {
	t := suite.T()
	suite.register("carol", "carol@example.com", "secret123")

	err := suite.authService.SendRegistrationOTP(suite.ctx, RegisterRequest{
		Username: "carol2", Email: "carol@example.com", Password: "secret123",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	err = suite.authService.SendRegistrationOTP(suite.ctx, RegisterRequest{
		Username: "CAROL", Email: "other@example.com", Password: "secret123",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	count, err := suite.store.Users.Count(suite.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func (suite *AuthServiceTestSuite) TestResendIssuesNewCode() {
	t := suite.T()
	require.NoError(t, suite.authService.SendRegistrationOTP(suite.ctx, RegisterRequest{
		Username: "dave", Email: "dave@example.com", Password: "secret123",
	}))
	require.NoError(t, suite.authService.ResendRegistrationOTP(suite.ctx, "dave@example.com"))

	sent, _ := suite.mailer.LastOTP("dave@example.com")
	resp, err := suite.authService.VerifyRegistrationOTP(suite.ctx, "dave@example.com", sent.Code)
	require.NoError(t, err)
	assert.Equal(t, "dave", resp.User.Username)

	assert.ErrorIs(t, suite.authService.ResendRegistrationOTP(suite.ctx, "nobody@example.com"), ErrNoPendingOTP)
}

func (suite *AuthServiceTestSuite) TestLoginAndLogout() {
	t := suite.T()
	reg := suite.register("erin", "erin@example.com", "secret123")
	require.NoError(t, suite.authService.Logout(suite.ctx, reg.User.ID))

	_, err := suite.authService.Login(suite.ctx, LoginRequest{Email: "erin@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = suite.authService.Login(suite.ctx, LoginRequest{Email: "ghost@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := suite.authService.Login(suite.ctx, LoginRequest{Email: "erin@example.com", Password: "secret123"})
	require.NoError(t, err)
	claims, err := suite.authService.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	stored, err := suite.store.Users.GetByID(suite.ctx, reg.User.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsOnline)

	require.NoError(t, suite.authService.Logout(suite.ctx, reg.User.ID))
	stored, err = suite.store.Users.GetByID(suite.ctx, reg.User.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOnline)
	assert.NotNil(t, stored.LastSeen)
}

func (suite *AuthServiceTestSuite) TestPasswordResetFlow() {
	t := suite.T()
	suite.register("frank", "frank@example.com", "secret123")

	require.NoError(t, suite.authService.ForgotPassword(suite.ctx, "unknown@example.com"))
	_, ok := suite.mailer.LastOTP("unknown@example.com")
	assert.False(t, ok)

	require.NoError(t, suite.authService.ForgotPassword(suite.ctx, "frank@example.com"))
	sent, ok := suite.mailer.LastOTP("frank@example.com")
	require.True(t, ok)
	assert.Equal(t, otp.PurposePasswordReset, sent.Purpose)

	resetToken, _, err := suite.authService.VerifyResetOTP(suite.ctx, "frank@example.com", sent.Code)
	require.NoError(t, err)

	// A reset token never authenticates requests.
	_, err = suite.authService.ValidateToken(suite.ctx, resetToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, suite.authService.ResetPassword(suite.ctx, resetToken, "newsecret"))
	_, err = suite.authService.Login(suite.ctx, LoginRequest{Email: "frank@example.com", Password: "newsecret"})
	assert.NoError(t, err)

	// The same reset token cannot be replayed.
	err = suite.authService.ResetPassword(suite.ctx, resetToken, "again123")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = suite.authService.Login(suite.ctx, LoginRequest{Email: "frank@example.com", Password: "newsecret"})
	assert.NoError(t, err)
}

func (suite *AuthServiceTestSuite) TestFailedResetKeepsTokenUsable() {
	t := suite.T()
	grant := "grant-ghost"
	require.NoError(t, suite.authService.otps.Grant(suite.ctx, otp.PurposeResetGrant, grant, ResetTokenTTL))
	token, _, err := suite.authService.tokens.IssueWithID("ghost-user", PurposePasswordReset, grant, ResetTokenTTL)
	require.NoError(t, err)

	// The update fails, so the grant goes back and a retry fails the same way
	// instead of being rejected as a spent token.
	err = suite.authService.ResetPassword(suite.ctx, token, "newsecret")
	require.ErrorIs(t, err, repository.ErrNotFound)
	err = suite.authService.ResetPassword(suite.ctx, token, "newsecret")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func (suite *AuthServiceTestSuite) TestResetPasswordRejectsSessionToken() {
	t := suite.T()
	reg := suite.register("gina", "gina@example.com", "secret123")
	err := suite.authService.ResetPassword(suite.ctx, reg.Token, "hijacked")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func (suite *AuthServiceTestSuite) TestChangePassword() {
	t := suite.T()
	reg := suite.register("hank", "hank@example.com", "secret123")

	assert.ErrorIs(t, suite.authService.ChangePassword(suite.ctx, reg.User.ID, "nope", "next123"), ErrWrongPassword)
	require.NoError(t, suite.authService.ChangePassword(suite.ctx, reg.User.ID, "secret123", "next123"))

	_, err := suite.authService.Login(suite.ctx, LoginRequest{Email: "hank@example.com", Password: "next123"})
	assert.NoError(t, err)
}

func (suite *AuthServiceTestSuite) TestTooManyAttempts() {
	t := suite.T()
	require.NoError(t, suite.authService.SendRegistrationOTP(suite.ctx, RegisterRequest{
		Username: "ivan", Email: "ivan@example.com", Password: "secret123",
	}))
	var err error
	for i := 0; i < otp.MaxAttempts; i++ {
		_, err = suite.authService.VerifyRegistrationOTP(suite.ctx, "ivan@example.com", "000000x")
	}
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	sent, _ := suite.mailer.LastOTP("ivan@example.com")
	_, err = suite.authService.VerifyRegistrationOTP(suite.ctx, "ivan@example.com", sent.Code)
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func (suite *AuthServiceTestSuite) TestMiddleware() {
	t := suite.T()
	gin.SetMode(gin.TestMode)
	reg := suite.register("jane", "jane@example.com", "secret123")

	router := gin.New()
	router.GET("/me", suite.authService.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id")})
	})

	do := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusForbidden, do("Bearer not-a-jwt"))
	assert.Equal(t, http.StatusOK, do("Bearer "+reg.Token))

	other := NewTokenIssuer([]byte("other_secret"))
	forged, _, err := other.Issue(reg.User.ID, "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do("Bearer "+forged))
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

func TestTokenExpiry(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"))
	base := time.Now()
	issuer.now = func() time.Time { return base }

	token, expiresAt, err := issuer.Issue("user-1", "", SessionTokenTTL)
	require.NoError(t, err)
	assert.Equal(t, base.Add(7*24*time.Hour).Unix(), expiresAt.Unix())

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.True(t, claims.IsSession())

	issuer.now = func() time.Time { return base.Add(SessionTokenTTL + time.Minute) }
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"))
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"})
	s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Parse(s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
