package repository

import (
	"context"
	"strings"

	"github.com/sportsocial/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewFilter narrows review listings.
type ReviewFilter struct {
	Category  string
	AuthorID  string
	Tag       string
	MinRating int
	Page      Page
}

// ReviewRepository handles reviews and helpfulness votes.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	GetByID(ctx context.Context, reviewID string) (*models.Review, error)
	Update(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, reviewID string) error
	// ListWithVotes returns reviews newest first, each with viewerID's own
	// vote (nil when the viewer has not voted).
	ListWithVotes(ctx context.Context, filter ReviewFilter, viewerID string) ([]models.ReviewWithVote, error)
	GetWithVote(ctx context.Context, reviewID, viewerID string) (*models.ReviewWithVote, error)
	// Vote upserts the user's vote and recomputes both counters from the
	// vote rows, in one transaction.
	Vote(ctx context.Context, reviewID, userID string, helpful bool) (*models.Review, error)
}

type reviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review == nil || review.AuthorID == "" || !models.ValidRating(review.Rating) {
		return storeError("review.create", ErrInvalidInput)
	}
	if review.Tags == nil {
		review.Tags = []string{}
	}
	review.HelpfulCount, review.NotHelpfulCount = 0, 0
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(review).Error
	return storeError("review.create", err)
}

func (r *reviewRepository) GetByID(ctx context.Context, reviewID string) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).Preload("Author").Where("id = ?", reviewID).First(&review).Error
	if err != nil {
		return nil, storeError("review.get", err)
	}
	return &review, nil
}

func (r *reviewRepository) Update(ctx context.Context, review *models.Review) error {
	if review == nil || review.ID == "" || !models.ValidRating(review.Rating) {
		return storeError("review.update", ErrInvalidInput)
	}
	if review.Tags == nil {
		review.Tags = []string{}
	}
	err := r.db.WithContext(ctx).Model(review).
		Select("title", "content", "rating", "category", "tags", "updated_at").
		Updates(review).Error
	return storeError("review.update", err)
}

func (r *reviewRepository) Delete(ctx context.Context, reviewID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("review_id = ?", reviewID).Delete(&models.ReviewVote{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", reviewID).Delete(&models.Review{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return storeError("review.delete", err)
}

func (r *reviewRepository) ListWithVotes(ctx context.Context, filter ReviewFilter, viewerID string) ([]models.ReviewWithVote, error) {
	page := filter.Page.Normalize()
	db := r.db.WithContext(ctx)

	query := db.Preload("Author")
	if filter.Category != "" {
		query = query.Where("LOWER(category) = LOWER(?)", filter.Category)
	}
	if filter.AuthorID != "" {
		query = query.Where("author_id = ?", filter.AuthorID)
	}
	if filter.Tag != "" {
		query = query.Where("CAST(tags AS TEXT) LIKE ?", `%"`+strings.ReplaceAll(filter.Tag, `"`, "")+`"%`)
	}
	if filter.MinRating > 0 {
		query = query.Where("rating >= ?", filter.MinRating)
	}

	var reviews []models.Review
	err := query.Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&reviews).Error
	if err != nil {
		return nil, storeError("review.list", err)
	}

	votes, err := r.viewerVotes(db, reviews, viewerID)
	if err != nil {
		return nil, storeError("review.list", err)
	}

	results := make([]models.ReviewWithVote, 0, len(reviews))
	for _, review := range reviews {
		results = append(results, models.ReviewWithVote{Review: review, UserVote: votes[review.ID]})
	}
	return results, nil
}

func (r *reviewRepository) viewerVotes(db *gorm.DB, reviews []models.Review, viewerID string) (map[string]*bool, error) {
	votes := map[string]*bool{}
	if viewerID == "" || len(reviews) == 0 {
		return votes, nil
	}
	ids := make([]string, 0, len(reviews))
	for _, review := range reviews {
		ids = append(ids, review.ID)
	}

	var rows []models.ReviewVote
	if err := db.Where("user_id = ? AND review_id IN ?", viewerID, ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		helpful := row.IsHelpful
		votes[row.ReviewID] = &helpful
	}
	return votes, nil
}

func (r *reviewRepository) GetWithVote(ctx context.Context, reviewID, viewerID string) (*models.ReviewWithVote, error) {
	review, err := r.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	votes, err := r.viewerVotes(r.db.WithContext(ctx), []models.Review{*review}, viewerID)
	if err != nil {
		return nil, storeError("review.get_with_vote", err)
	}
	return &models.ReviewWithVote{Review: *review, UserVote: votes[review.ID]}, nil
}

func (r *reviewRepository) Vote(ctx context.Context, reviewID, userID string, helpful bool) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", reviewID).First(&review).Error; err != nil {
			return err
		}

		vote := models.ReviewVote{ReviewID: reviewID, UserID: userID, IsHelpful: helpful}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "review_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_helpful", "updated_at"}),
		}).Create(&vote).Error
		if err != nil {
			return err
		}

		var tally struct {
			Helpful    int
			NotHelpful int
		}
		err = tx.Model(&models.ReviewVote{}).
			Select(
				"COALESCE(SUM(CASE WHEN is_helpful THEN 1 ELSE 0 END), 0) AS helpful, "+
					"COALESCE(SUM(CASE WHEN is_helpful THEN 0 ELSE 1 END), 0) AS not_helpful").
			Where("review_id = ?", reviewID).
			Scan(&tally).Error
		if err != nil {
			return err
		}

		review.HelpfulCount = tally.Helpful
		review.NotHelpfulCount = tally.NotHelpful
		return tx.Model(&models.Review{}).
			Where("id = ?", reviewID).
			Updates(map[string]any{
				"helpful_count":     tally.Helpful,
				"not_helpful_count": tally.NotHelpful,
			}).Error
	})
	if err != nil {
		return nil, storeError("review.vote", err)
	}
	return &review, nil
}
