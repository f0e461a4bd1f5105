package repository

import (
	"context"
	"time"

	"github.com/sportsocial/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRegistrationRepository stores attendance sign-ups for posts.
type EventRegistrationRepository interface {
	// Register creates or refreshes the user's registration for a post. A
	// cancelled registration becomes active again.
	Register(ctx context.Context, registration *models.EventRegistration) (*models.EventRegistration, error)
	ListForUser(ctx context.Context, userID string) ([]models.EventRegistration, error)
	ListForPost(ctx context.Context, postID string) ([]models.EventRegistration, error)
	Cancel(ctx context.Context, registrationID, userID string) error
}

type eventRegistrationRepository struct {
	db *gorm.DB
}

func NewEventRegistrationRepository(db *gorm.DB) EventRegistrationRepository {
	return &eventRegistrationRepository{db: db}
}

func (r *eventRegistrationRepository) Register(ctx context.Context, registration *models.EventRegistration) (*models.EventRegistration, error) {
	if registration == nil || registration.PostID == "" || registration.UserID == "" || registration.FullName == "" || registration.Email == "" {
		return nil, storeError("event_registration.register", ErrInvalidInput)
	}
	registration.Status = models.RegistrationStatusRegistered

	var stored models.EventRegistration
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").Where("id = ?", registration.PostID).First(&post).Error; err != nil {
			return err
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"full_name", "email", "phone", "notes", "status", "updated_at"}),
		}).Create(registration).Error
		if err != nil {
			return err
		}
		return tx.Where("post_id = ? AND user_id = ?", registration.PostID, registration.UserID).First(&stored).Error
	})
	if err != nil {
		return nil, storeError("event_registration.register", err)
	}
	return &stored, nil
}

func (r *eventRegistrationRepository) ListForUser(ctx context.Context, userID string) ([]models.EventRegistration, error) {
	registrations := []models.EventRegistration{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&registrations).Error
	return registrations, storeError("event_registration.list_for_user", err)
}

func (r *eventRegistrationRepository) ListForPost(ctx context.Context, postID string) ([]models.EventRegistration, error) {
	registrations := []models.EventRegistration{}
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND status = ?", postID, models.RegistrationStatusRegistered).
		Order("created_at ASC").
		Find(&registrations).Error
	return registrations, storeError("event_registration.list_for_post", err)
}

func (r *eventRegistrationRepository) Cancel(ctx context.Context, registrationID, userID string) error {
	res := r.db.WithContext(ctx).Model(&models.EventRegistration{}).
		Where("id = ? AND user_id = ?", registrationID, userID).
		Updates(map[string]any{
			"status":     models.RegistrationStatusCancelled,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return storeError("event_registration.cancel", res.Error)
	}
	if res.RowsAffected == 0 {
		return storeError("event_registration.cancel", ErrNotFound)
	}
	return nil
}
