package kernel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReportsMissingDependencies(t *testing.T) {
	err := New().Validate()
	require.Error(t, err)

	var initErr *InitializationError
	require.True(t, errors.As(err, &initErr))
	assert.Contains(t, initErr.MissingDeps, "database (DB)")
	assert.Contains(t, initErr.MissingDeps, "auth service")
	assert.Contains(t, err.Error(), "Missing required dependencies")
}

func TestCleanupRunsInReverseOrderAndKeepsGoing(t *testing.T) {
	var order []int
	boom := errors.New("boom")

	k := New()
	k.OnCleanup(func(context.Context) error { order = append(order, 1); return nil })
	k.OnCleanup(func(context.Context) error { order = append(order, 2); return boom })
	k.OnCleanup(func(context.Context) error { order = append(order, 3); return nil })

	err := k.Cleanup(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{3, 2, 1}, order)

	// Functions run once.
	require.NoError(t, k.Cleanup(context.Background()))
	assert.Len(t, order, 3)
}

func TestMockKernelIsFullyWired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock, err := NewMock(ctx)
	require.NoError(t, err)
	defer mock.Cleanup(context.Background())

	require.NoError(t, mock.Validate())
	assert.NotNil(t, mock.Hub())
	assert.NotNil(t, mock.OTPManager())
	assert.NotNil(t, mock.Messaging())
	assert.Same(t, mock.Mailer, mock.Kernel.Mailer())
	assert.NotNil(t, mock.WebSocket())
	assert.Nil(t, mock.AvatarUploader())

	router := mock.Router(ctx, nil, false)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMockKernelIssuesSessionTokens(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock, err := NewMock(ctx)
	require.NoError(t, err)
	defer mock.Cleanup(context.Background())

	user := &models.User{Username: "keeper", Email: "keeper@example.com", PasswordHash: "x"}
	require.NoError(t, mock.Store().Users.Create(ctx, user))

	tokenUser, err := mock.Auth().ValidateToken(ctx, mustToken(t, mock, user.ID))
	require.NoError(t, err)
	assert.Equal(t, user.ID, tokenUser.ID)

	require.NoError(t, mock.Store().Users.SetOnline(ctx, user.ID, true))
	reloaded, err := mock.Store().Users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsOnline)
}

func mustToken(t *testing.T, mock *MockKernel, userID string) string {
	t.Helper()
	token, _, err := mock.Auth().IssueToken(userID)
	require.NoError(t, err)
	return token
}
