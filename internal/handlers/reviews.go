package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/sportsocial/backend/internal/util"
	"go.uber.org/zap"
)

// CreateReviewRequest is the body of POST /api/reviews.
type CreateReviewRequest struct {
	Title    string   `json:"title" binding:"required,max=200"`
	Content  string   `json:"content" binding:"required,max=10000"`
	Rating   int      `json:"rating" binding:"gte=1,lte=5"`
	Category string   `json:"category" binding:"max=50"`
	Tags     []string `json:"tags" binding:"omitempty,max=20,dive,tag"`
}

// UpdateReviewRequest changes only the fields that are present.
type UpdateReviewRequest struct {
	Title    *string  `json:"title" binding:"omitempty,min=1,max=200"`
	Content  *string  `json:"content" binding:"omitempty,min=1,max=10000"`
	Rating   *int     `json:"rating" binding:"omitempty,gte=1,lte=5"`
	Category *string  `json:"category" binding:"omitempty,max=50"`
	Tags     []string `json:"tags" binding:"omitempty,max=20,dive,tag"`
}

type voteRequest struct {
	Helpful *bool `json:"helpful" binding:"required"`
}

// ListReviews lists reviews newest first with the caller's own votes
// GET /api/reviews?category=&author_id=&tag=&min_rating=
func (h *Handlers) ListReviews(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	filter := repository.ReviewFilter{
		Category:  strings.TrimSpace(c.Query("category")),
		AuthorID:  c.Query("author_id"),
		Tag:       strings.TrimSpace(c.Query("tag")),
		MinRating: util.ParseInt(c.Query("min_rating"), 0),
		Page:      util.ParsePage(c),
	}
	reviews, err := h.store.Reviews.ListWithVotes(c.Request.Context(), filter, userID)
	if util.HandleDBError(c, err, "review") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

// GetReview
// GET /api/reviews/:id
func (h *Handlers) GetReview(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	review, err := h.store.Reviews.GetWithVote(c.Request.Context(), c.Param("id"), userID)
	if util.HandleDBError(c, err, "review") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": review})
}

// CreateReview
// POST /api/reviews
func (h *Handlers) CreateReview(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req CreateReviewRequest
	if !bindJSON(c, &req) {
		return
	}

	review := &models.Review{
		AuthorID: userID,
		Title:    strings.TrimSpace(req.Title),
		Content:  req.Content,
		Rating:   req.Rating,
		Category: strings.TrimSpace(req.Category),
		Tags:     util.NormalizeTags(req.Tags),
	}
	if err := h.store.Reviews.Create(c.Request.Context(), review); util.HandleDBError(c, err, "review") {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"review": review})
}

// loadOwnReview fetches a review and answers 403 unless userID wrote it.
func (h *Handlers) loadOwnReview(c *gin.Context, userID string) (*models.Review, bool) {
	review, err := h.store.Reviews.GetByID(c.Request.Context(), c.Param("id"))
	if util.HandleDBError(c, err, "review") {
		return nil, false
	}
	if review.AuthorID != userID {
		util.RespondForbidden(c, "Only the author can modify this review")
		return nil, false
	}
	return review, true
}

// UpdateReview
// PUT /api/reviews/:id
func (h *Handlers) UpdateReview(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req UpdateReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	review, ok := h.loadOwnReview(c, userID)
	if !ok {
		return
	}

	if req.Title != nil {
		review.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		review.Content = *req.Content
	}
	if req.Rating != nil {
		review.Rating = *req.Rating
	}
	if req.Category != nil {
		review.Category = strings.TrimSpace(*req.Category)
	}
	if req.Tags != nil {
		review.Tags = util.NormalizeTags(req.Tags)
	}

	if err := h.store.Reviews.Update(c.Request.Context(), review); util.HandleDBError(c, err, "review") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": review})
}

// DeleteReview
// DELETE /api/reviews/:id
func (h *Handlers) DeleteReview(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	review, ok := h.loadOwnReview(c, userID)
	if !ok {
		return
	}
	if err := h.store.Reviews.Delete(c.Request.Context(), review.ID); util.HandleDBError(c, err, "review") {
		return
	}
	util.RespondMessage(c, http.StatusOK, "Review deleted")
}

// VoteReview records whether the caller found a review helpful. Voting
// again replaces the earlier vote. The author hears about a first helpful
// vote.
// POST /api/reviews/:id/vote
func (h *Handlers) VoteReview(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req voteRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	before, err := h.store.Reviews.GetWithVote(ctx, c.Param("id"), user.ID)
	if util.HandleDBError(c, err, "review") {
		return
	}
	review, err := h.store.Reviews.Vote(ctx, before.ID, user.ID, *req.Helpful)
	if util.HandleDBError(c, err, "review") {
		return
	}

	if before.UserVote == nil && *req.Helpful && review.AuthorID != user.ID {
		_, err := h.notifier.Notify(ctx, repository.CreateNotificationInput{
			UserID:  review.AuthorID,
			Type:    models.NotificationTypeReview,
			Title:   "Your review was helpful",
			Message: user.Username + " found \"" + util.Truncate(review.Title, 60) + "\" helpful",
			Data:    map[string]any{"review_id": review.ID, "user_id": user.ID},
		})
		if err != nil {
			logger.Log.Warn("Failed to notify review author", logger.WithUserID(review.AuthorID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"review": review, "user_vote": *req.Helpful})
}
