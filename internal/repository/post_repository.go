package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/sportsocial/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostFilter narrows post listings. Zero values mean "any".
type PostFilter struct {
	Sport    string
	Tag      string
	AuthorID string
	Active   *bool
	Query    string
	Page     Page
}

// InterestResult reports what ExpressInterest changed.
type InterestResult struct {
	GroupChat       *models.GroupChat
	InterestCreated bool
	MemberAdded     bool
}

// PostRepository handles posts and the interest relation hanging off them.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, postID string) (*models.Post, error)
	List(ctx context.Context, filter PostFilter) ([]models.Post, error)
	Nearby(ctx context.Context, lat, lng, radiusKm float64, filter PostFilter) ([]models.PostWithDistance, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, postID string) error

	// ExpressInterest records the interest, gets or creates the post's group
	// chat with the author as admin, and adds the user as a member, all in
	// one transaction. Repeating it changes nothing.
	ExpressInterest(ctx context.Context, postID, userID string) (*InterestResult, error)
	// RemoveInterest drops the interest and the user's non-admin membership.
	RemoveInterest(ctx context.Context, postID, userID string) (bool, error)
	InterestedUsers(ctx context.Context, postID string) ([]models.User, error)
	HasInterest(ctx context.Context, postID, userID string) (bool, error)
	InterestCounts(ctx context.Context, postIDs []string) (map[string]int64, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if post == nil || post.AuthorID == "" || !ValidCoordinates(post.Latitude, post.Longitude) {
		return storeError("post.create", ErrInvalidInput)
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error
	return storeError("post.create", err)
}

func (r *postRepository) GetByID(ctx context.Context, postID string) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Preload("Author").Where("id = ?", postID).First(&post).Error
	if err != nil {
		return nil, storeError("post.get", err)
	}
	return &post, nil
}

func (r *postRepository) filtered(ctx context.Context, filter PostFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Post{})
	if filter.Sport != "" {
		query = query.Where("LOWER(sport) = LOWER(?)", filter.Sport)
	}
	if filter.Tag != "" {
		// Tags are a JSON array on both drivers; match the quoted element.
		query = query.Where("CAST(tags AS TEXT) LIKE ?", `%"`+strings.ReplaceAll(filter.Tag, `"`, "")+`"%`)
	}
	if filter.AuthorID != "" {
		query = query.Where("author_id = ?", filter.AuthorID)
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("(LOWER(heading) LIKE ? OR LOWER(description) LIKE ?)", pattern, pattern)
	}
	return query
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]models.Post, error) {
	page := filter.Page.Normalize()
	posts := []models.Post{}
	err := r.filtered(ctx, filter).
		Preload("Author").
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&posts).Error
	return posts, storeError("post.list", err)
}

// Nearby pre-filters with a bounding box in SQL, then computes exact
// distances and sorts nearest first.
func (r *postRepository) Nearby(ctx context.Context, lat, lng, radiusKm float64, filter PostFilter) ([]models.PostWithDistance, error) {
	if !ValidCoordinates(lat, lng) || radiusKm <= 0 {
		return nil, storeError("post.nearby", ErrInvalidInput)
	}
	box := newBoundingBox(lat, lng, radiusKm)

	query := r.filtered(ctx, filter).
		Preload("Author").
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat)
	// A box crossing the antimeridian is filtered by distance alone.
	if box.MinLng >= -180 && box.MaxLng <= 180 {
		query = query.Where("longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng)
	}

	var candidates []models.Post
	if err := query.Find(&candidates).Error; err != nil {
		return nil, storeError("post.nearby", err)
	}

	results := make([]models.PostWithDistance, 0, len(candidates))
	for _, post := range candidates {
		distance := HaversineKm(lat, lng, post.Latitude, post.Longitude)
		if distance <= radiusKm {
			results = append(results, models.PostWithDistance{Post: post, DistanceKm: distance})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})

	page := filter.Page.Normalize()
	if page.Offset >= len(results) {
		return []models.PostWithDistance{}, nil
	}
	end := page.Offset + page.Limit
	if end > len(results) {
		end = len(results)
	}
	return results[page.Offset:end], nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	if post == nil || post.ID == "" || !ValidCoordinates(post.Latitude, post.Longitude) {
		return storeError("post.update", ErrInvalidInput)
	}
	err := r.db.WithContext(ctx).Omit(clause.Associations).Save(post).Error
	return storeError("post.update", err)
}

// Delete removes the post together with its interests, registrations and
// group chat. Children go first so the foreign keys never dangle.
func (r *postRepository) Delete(ctx context.Context, postID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").Where("id = ?", postID).First(&post).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostInterest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.EventRegistration{}).Error; err != nil {
			return err
		}

		var chatIDs []string
		if err := tx.Model(&models.GroupChat{}).Where("post_id = ?", postID).Pluck("id", &chatIDs).Error; err != nil {
			return err
		}
		if len(chatIDs) > 0 {
			if err := tx.Where("group_chat_id IN ?", chatIDs).Delete(&models.Message{}).Error; err != nil {
				return err
			}
			if err := tx.Where("group_chat_id IN ?", chatIDs).Delete(&models.GroupChatMember{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", chatIDs).Delete(&models.GroupChat{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", postID).Delete(&models.Post{}).Error
	})
	return storeError("post.delete", err)
}

func (r *postRepository) ExpressInterest(ctx context.Context, postID, userID string) (*InterestResult, error) {
	result := &InterestResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Where("id = ?", postID).First(&post).Error; err != nil {
			return err
		}

		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.PostInterest{PostID: postID, UserID: userID})
		if insert.Error != nil {
			return insert.Error
		}
		result.InterestCreated = insert.RowsAffected > 0

		chat, err := ensurePostGroupChatTx(tx, &post)
		if err != nil {
			return err
		}
		result.GroupChat = chat

		added, err := addMemberTx(tx, chat.ID, userID, models.GroupRoleMember)
		if err != nil {
			return err
		}
		result.MemberAdded = added
		return nil
	})
	if err != nil {
		return nil, storeError("post.express_interest", err)
	}
	return result, nil
}

func (r *postRepository) RemoveInterest(ctx context.Context, postID, userID string) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostInterest{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0

		return tx.Where("user_id = ? AND role <> ? AND group_chat_id IN (?)",
			userID, models.GroupRoleAdmin,
			tx.Model(&models.GroupChat{}).Select("id").Where("post_id = ?", postID),
		).Delete(&models.GroupChatMember{}).Error
	})
	if err != nil {
		return false, storeError("post.remove_interest", err)
	}
	return removed, nil
}

func (r *postRepository) InterestedUsers(ctx context.Context, postID string) ([]models.User, error) {
	users := []models.User{}
	err := r.db.WithContext(ctx).
		Joins("JOIN post_interests pi ON pi.user_id = users.id").
		Where("pi.post_id = ?", postID).
		Order("pi.created_at ASC").
		Find(&users).Error
	return users, storeError("post.interested_users", err)
}

func (r *postRepository) HasInterest(ctx context.Context, postID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PostInterest{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	return count > 0, storeError("post.has_interest", err)
}

func (r *postRepository) InterestCounts(ctx context.Context, postIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		PostID string
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.PostInterest{}).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, storeError("post.interest_counts", err)
	}
	for _, row := range rows {
		counts[row.PostID] = row.Total
	}
	return counts, nil
}
