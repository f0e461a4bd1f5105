package repository

import (
	"context"

	"github.com/sportsocial/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository manages the follow graph.
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followingID string) (bool, error)
	Unfollow(ctx context.Context, followerID, followingID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
	Followers(ctx context.Context, userID string, page Page) ([]models.User, error)
	Following(ctx context.Context, userID string, page Page) ([]models.User, error)
}

type followRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

// Follow inserts the edge. It reports false when the edge already existed.
func (r *followRepository) Follow(ctx context.Context, followerID, followingID string) (bool, error) {
	if followerID == "" || followingID == "" || followerID == followingID {
		return false, storeError("follow.create", ErrInvalidInput)
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UserFollower{FollowerID: followerID, FollowingID: followingID})
	if result.Error != nil {
		return false, storeError("follow.create", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Unfollow deletes the edge. It reports false when there was no edge.
func (r *followRepository) Unfollow(ctx context.Context, followerID, followingID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.UserFollower{})
	if result.Error != nil {
		return false, storeError("follow.delete", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *followRepository) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserFollower{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	return count > 0, storeError("follow.exists", err)
}

func (r *followRepository) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&models.UserFollower{}).
		Where("following_id = ?", userID).
		Order("created_at ASC").
		Pluck("follower_id", &ids).Error
	return ids, storeError("follow.follower_ids", err)
}

func (r *followRepository) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&models.UserFollower{}).
		Where("follower_id = ?", userID).
		Order("created_at ASC").
		Pluck("following_id", &ids).Error
	return ids, storeError("follow.following_ids", err)
}

func (r *followRepository) Followers(ctx context.Context, userID string, page Page) ([]models.User, error) {
	page = page.Normalize()
	users := []models.User{}
	err := r.db.WithContext(ctx).
		Joins("JOIN user_followers uf ON uf.follower_id = users.id").
		Where("uf.following_id = ?", userID).
		Order("uf.created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&users).Error
	return users, storeError("follow.followers", err)
}

func (r *followRepository) Following(ctx context.Context, userID string, page Page) ([]models.User, error) {
	page = page.Normalize()
	users := []models.User{}
	err := r.db.WithContext(ctx).
		Joins("JOIN user_followers uf ON uf.following_id = users.id").
		Where("uf.follower_id = ?", userID).
		Order("uf.created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&users).Error
	return users, storeError("follow.following", err)
}
