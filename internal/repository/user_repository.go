package repository

import (
	"context"
	"strings"
	"time"

	"github.com/sportsocial/backend/internal/models"
	"gorm.io/gorm"
)

// UserRepository handles all database operations for users
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetMany(ctx context.Context, userIDs []string) ([]models.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	Search(ctx context.Context, query string, page Page) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetOnline(ctx context.Context, userID string, online bool) error
	SetAdmin(ctx context.Context, email string, admin bool) error
	Count(ctx context.Context) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user == nil || user.Email == "" || user.Username == "" {
		return storeError("user.create", ErrInvalidInput)
	}
	if user.Sports == nil {
		user.Sports = []string{}
	}
	if user.Tags == nil {
		user.Tags = []string{}
	}
	return storeError("user.create", r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, storeError("user.get", err)
	}
	return &user, nil
}

// GetByEmail looks a user up case-insensitively.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?)", strings.TrimSpace(email)).
		First(&user).Error
	if err != nil {
		return nil, storeError("user.get_by_email", err)
	}
	return &user, nil
}

// GetByUsername looks a user up case-insensitively.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) = LOWER(?)", strings.TrimSpace(username)).
		First(&user).Error
	if err != nil {
		return nil, storeError("user.get_by_username", err)
	}
	return &user, nil
}

func (r *userRepository) GetMany(ctx context.Context, userIDs []string) ([]models.User, error) {
	users := []models.User{}
	if len(userIDs) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error
	return users, storeError("user.get_many", err)
}

// ExistsByEmailOrUsername is the registration pre-check. The unique indexes
// remain the final guard against concurrent registrations.
func (r *userRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = LOWER(?) OR LOWER(username) = LOWER(?)", strings.TrimSpace(email), strings.TrimSpace(username)).
		Count(&count).Error
	if err != nil {
		return false, storeError("user.exists", err)
	}
	return count > 0, nil
}

func (r *userRepository) Search(ctx context.Context, query string, page Page) ([]models.User, error) {
	page = page.Normalize()
	users := []models.User{}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	err := r.db.WithContext(ctx).
		Where("LOWER(username) LIKE ? OR LOWER(bio) LIKE ?", pattern, pattern).
		Order("username ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&users).Error
	return users, storeError("user.search", err)
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if user == nil || user.ID == "" {
		return storeError("user.update", ErrInvalidInput)
	}
	return storeError("user.update", r.db.WithContext(ctx).Save(user).Error)
}

func (r *userRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", passwordHash)
	if result.Error != nil {
		return storeError("user.update_password", result.Error)
	}
	if result.RowsAffected == 0 {
		return storeError("user.update_password", ErrNotFound)
	}
	return nil
}

// SetOnline flips the presence flag. Going offline also stamps last_seen.
func (r *userRepository) SetOnline(ctx context.Context, userID string, online bool) error {
	updates := map[string]any{"is_online": online}
	if !online {
		updates["last_seen"] = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
	return storeError("user.set_online", err)
}

func (r *userRepository) SetAdmin(ctx context.Context, email string, admin bool) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = LOWER(?)", email).
		Update("is_admin", admin)
	if result.Error != nil {
		return storeError("user.set_admin", result.Error)
	}
	if result.RowsAffected == 0 {
		return storeError("user.set_admin", ErrNotFound)
	}
	return nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, storeError("user.count", err)
}
