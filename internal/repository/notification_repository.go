package repository

import (
	"context"
	"errors"

	"github.com/sportsocial/backend/internal/models"
	"gorm.io/gorm"
)

// CreateNotificationInput describes one notification for one user.
type CreateNotificationInput struct {
	UserID  string
	Type    string
	Title   string
	Message string
	Data    map[string]any
}

// NotificationFilter narrows an inbox listing.
type NotificationFilter struct {
	UnreadOnly bool
	Page       Page
}

// NotificationRepository manages per-user inbox entries.
type NotificationRepository interface {
	// Create stores the notification unless the recipient's preferences
	// turn this type off, in which case created is false and nothing is
	// written. Users without a preferences row get the defaults.
	Create(ctx context.Context, input CreateNotificationInput) (notification *models.Notification, created bool, err error)
	List(ctx context.Context, userID string, filter NotificationFilter) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	// MarkAsRead marks the given notifications read; empty ids means all.
	MarkAsRead(ctx context.Context, userID string, ids []string) (int64, error)
	Delete(ctx context.Context, userID, notificationID string) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, input CreateNotificationInput) (*models.Notification, bool, error) {
	if input.UserID == "" || input.Type == "" || input.Title == "" {
		return nil, false, storeError("notification.create", ErrInvalidInput)
	}
	db := r.db.WithContext(ctx)

	prefs := models.DefaultPreferences(input.UserID)
	err := db.Where("user_id = ?", input.UserID).First(&prefs).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, storeError("notification.create", err)
	}
	if !prefs.Allows(input.Type) {
		return nil, false, nil
	}

	data := input.Data
	if data == nil {
		data = map[string]any{}
	}
	notification := &models.Notification{
		UserID:  input.UserID,
		Type:    input.Type,
		Title:   input.Title,
		Message: input.Message,
		Data:    data,
	}
	if err := db.Create(notification).Error; err != nil {
		return nil, false, storeError("notification.create", err)
	}
	return notification, true, nil
}

func (r *notificationRepository) List(ctx context.Context, userID string, filter NotificationFilter) ([]models.Notification, error) {
	page := filter.Page.Normalize()
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	notifications := []models.Notification{}
	err := query.Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&notifications).Error
	return notifications, storeError("notification.list", err)
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, storeError("notification.unread_count", err)
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, userID string, ids []string) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	res := query.Update("is_read", true)
	if res.Error != nil {
		return 0, storeError("notification.mark_read", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *notificationRepository) Delete(ctx context.Context, userID, notificationID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return storeError("notification.delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return storeError("notification.delete", ErrNotFound)
	}
	return nil
}
