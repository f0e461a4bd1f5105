package kernel

import (
	"context"

	"github.com/sportsocial/backend/internal/cache"
	"github.com/sportsocial/backend/internal/database"
	"github.com/sportsocial/backend/internal/email"
	"github.com/sportsocial/backend/internal/storage"
	"go.uber.org/zap"
)

// MockJWTSecret signs the tokens of a mock kernel.
const MockJWTSecret = "test_jwt_secret_key"

// MockKernel is a fully wired kernel over an in-memory SQLite store, for
// tests. Emailed codes are captured by Mailer.
type MockKernel struct {
	*Kernel
	Mailer *email.LogMailer
}

// NewMock builds a kernel with no Redis, no S3 and a logging mailer.
func NewMock(ctx context.Context) (*MockKernel, error) {
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		return nil, err
	}

	k := New().WithDB(db).WithLogger(zap.NewNop())
	k.OnCleanup(func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	mailer := email.NewLogMailer()
	wire(ctx, k, db, []byte(MockJWTSecret), mailer)
	return &MockKernel{Kernel: k, Mailer: mailer}, nil
}

// WithMockAvatarUploader installs avatar storage on the kernel and on the
// already built handlers.
func (m *MockKernel) WithMockAvatarUploader(uploader storage.AvatarUploader) *MockKernel {
	m.SetAvatarUploader(uploader)
	m.Handlers().SetAvatarUploader(uploader)
	return m
}

// WithMockCache registers a Redis client. Services built by NewMock keep
// their in-memory stores; only the router's rate limiters pick it up.
func (m *MockKernel) WithMockCache(client *cache.RedisClient) *MockKernel {
	m.SetCache(client)
	return m
}

// WithMockLogger sets a test logger
func (m *MockKernel) WithMockLogger(l *zap.Logger) *MockKernel {
	m.SetLogger(l)
	return m
}
