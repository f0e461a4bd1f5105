package storage

import (
	"context"
	"io"
)

// AvatarUploader stores profile pictures. Handlers depend on this so tests
// can swap in a fake.
type AvatarUploader interface {
	UploadAvatar(ctx context.Context, body io.Reader, size int64, filename, userID string) (*UploadResult, error)
	DeleteFile(ctx context.Context, key string) error
	// KeyFromURL returns the object key behind a URL this uploader issued.
	KeyFromURL(url string) (string, bool)
}

// Ensure S3Uploader implements AvatarUploader
var _ AvatarUploader = (*S3Uploader)(nil)
