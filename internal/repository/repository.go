// Package repository is the data-access layer: one repository per entity,
// each a thin typed wrapper over gorm. Store errors are logged here and
// returned to the caller; single-row lookups report ErrNotFound.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sportsocial/backend/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("record already exists")
	ErrInvalidInput = errors.New("invalid input")
	ErrAdminMember  = errors.New("group chat admin cannot be removed")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is limit/offset pagination.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Store bundles every repository over one connection.
type Store struct {
	db *gorm.DB

	Users              UserRepository
	Follows            FollowRepository
	Posts              PostRepository
	GroupChats         GroupChatRepository
	Messages           MessageRepository
	DirectMessages     DirectMessageRepository
	Notifications      NotificationRepository
	Reviews            ReviewRepository
	Settings           SettingsRepository
	EventRegistrations EventRegistrationRepository
}

// NewStore wires all repositories to db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:                 db,
		Users:              NewUserRepository(db),
		Follows:            NewFollowRepository(db),
		Posts:              NewPostRepository(db),
		GroupChats:         NewGroupChatRepository(db),
		Messages:           NewMessageRepository(db),
		DirectMessages:     NewDirectMessageRepository(db),
		Notifications:      NewNotificationRepository(db),
		Reviews:            NewReviewRepository(db),
		Settings:           NewSettingsRepository(db),
		EventRegistrations: NewEventRegistrationRepository(db),
	}
}

// DB exposes the underlying connection for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// storeError maps gorm errors onto the package sentinels. Anything that is
// not a not-found or duplicate is logged as a fault before being returned.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrAdminMember):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Log.Error("Store operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}
