package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/metrics"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/sportsocial/backend/internal/util"
	"go.uber.org/zap"
)

const (
	defaultNearbyRadiusKm = 10.0
	maxNearbyRadiusKm     = 500.0
)

// CreatePostRequest is the body of POST /api/posts. Latitude and longitude
// are pointers so a missing location fails validation instead of becoming
// (0, 0).
type CreatePostRequest struct {
	Sport         string     `json:"sport" binding:"required,sport"`
	Heading       string     `json:"heading" binding:"required,max=120"`
	Description   string     `json:"description" binding:"max=5000"`
	Tags          []string   `json:"tags" binding:"omitempty,max=20,dive,tag"`
	Latitude      *float64   `json:"latitude" binding:"required,latitude"`
	Longitude     *float64   `json:"longitude" binding:"required,longitude"`
	LocationName  string     `json:"location_name" binding:"max=200"`
	EventTime     *time.Time `json:"event_time"`
	PlayersNeeded int        `json:"players_needed" binding:"gte=0,lte=1000"`
}

// UpdatePostRequest changes only the fields that are present.
type UpdatePostRequest struct {
	Sport         *string    `json:"sport" binding:"omitempty,sport"`
	Heading       *string    `json:"heading" binding:"omitempty,max=120"`
	Description   *string    `json:"description" binding:"omitempty,max=5000"`
	Tags          []string   `json:"tags" binding:"omitempty,max=20,dive,tag"`
	Latitude      *float64   `json:"latitude" binding:"omitempty,latitude"`
	Longitude     *float64   `json:"longitude" binding:"omitempty,longitude"`
	LocationName  *string    `json:"location_name" binding:"omitempty,max=200"`
	EventTime     *time.Time `json:"event_time"`
	PlayersNeeded *int       `json:"players_needed" binding:"omitempty,gte=0,lte=1000"`
	IsActive      *bool      `json:"is_active"`
}

// PostResponse decorates a post with its interest count.
type PostResponse struct {
	models.Post
	InterestCount int64 `json:"interest_count"`
}

// NearbyPostResponse is a PostResponse with its distance from the query point.
type NearbyPostResponse struct {
	models.PostWithDistance
	InterestCount int64 `json:"interest_count"`
}

func (h *Handlers) withInterestCounts(ctx context.Context, posts []models.Post) ([]PostResponse, error) {
	ids := make([]string, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	counts, err := h.store.Posts.InterestCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	result := make([]PostResponse, len(posts))
	for i := range posts {
		result[i] = PostResponse{Post: posts[i], InterestCount: counts[posts[i].ID]}
	}
	return result, nil
}

func postFilterFromQuery(c *gin.Context) repository.PostFilter {
	return repository.PostFilter{
		Sport:    strings.TrimSpace(c.Query("sport")),
		Tag:      strings.TrimSpace(c.Query("tag")),
		AuthorID: c.Query("author_id"),
		Active:   util.ParseBoolQuery(c, "active"),
		Query:    c.Query("q"),
		Page:     util.ParsePage(c),
	}
}

// ListPosts lists posts newest first
// GET /api/posts?sport=&tag=&author_id=&active=&q=&limit=&offset=
func (h *Handlers) ListPosts(c *gin.Context) {
	ctx := c.Request.Context()
	posts, err := h.store.Posts.List(ctx, postFilterFromQuery(c))
	if util.HandleDBError(c, err, "post") {
		return
	}
	result, err := h.withInterestCounts(ctx, posts)
	if util.HandleDBError(c, err, "post") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": result})
}

// NearbyPosts lists posts within radius_km of a point, nearest first
// GET /api/posts/nearby?lat=&lng=&radius_km=
func (h *Handlers) NearbyPosts(c *gin.Context) {
	lat, err := util.ParseFloatParam(c.Query("lat"))
	if err != nil || lat < -90 || lat > 90 {
		util.RespondValidationError(c, "lat", "lat must be a valid latitude (-90 to 90)")
		return
	}
	lng, err := util.ParseFloatParam(c.Query("lng"))
	if err != nil || lng < -180 || lng > 180 {
		util.RespondValidationError(c, "lng", "lng must be a valid longitude (-180 to 180)")
		return
	}
	radius := defaultNearbyRadiusKm
	if raw := c.Query("radius_km"); raw != "" {
		radius, err = util.ParseFloatParam(raw)
		if err != nil || radius <= 0 || radius > maxNearbyRadiusKm {
			util.RespondValidationError(c, "radius_km", "radius_km must be between 0 and 500")
			return
		}
	}

	filter := postFilterFromQuery(c)
	if filter.Active == nil {
		active := true
		filter.Active = &active
	}

	ctx := c.Request.Context()
	posts, err := h.store.Posts.Nearby(ctx, lat, lng, radius, filter)
	if util.HandleDBError(c, err, "location") {
		return
	}

	ids := make([]string, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	counts, err := h.store.Posts.InterestCounts(ctx, ids)
	if util.HandleDBError(c, err, "post") {
		return
	}
	result := make([]NearbyPostResponse, len(posts))
	for i := range posts {
		result[i] = NearbyPostResponse{PostWithDistance: posts[i], InterestCount: counts[posts[i].ID]}
	}

	c.JSON(http.StatusOK, gin.H{"posts": result, "radius_km": radius})
}

// GetPost returns one post with the caller's interest state
// GET /api/posts/:id
func (h *Handlers) GetPost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	post, err := h.store.Posts.GetByID(ctx, c.Param("id"))
	if util.HandleDBError(c, err, "post") {
		return
	}
	counts, err := h.store.Posts.InterestCounts(ctx, []string{post.ID})
	if util.HandleDBError(c, err, "post") {
		return
	}
	interested, err := h.store.Posts.HasInterest(ctx, post.ID, userID)
	if util.HandleDBError(c, err, "post") {
		return
	}

	response := gin.H{
		"post":          PostResponse{Post: *post, InterestCount: counts[post.ID]},
		"is_interested": interested,
	}
	chat, err := h.store.GroupChats.GetByPostID(ctx, post.ID)
	switch {
	case err == nil:
		response["group_chat_id"] = chat.ID
	case !util.IsNotFound(err):
		util.HandleDBError(c, err, "post")
		return
	}

	c.JSON(http.StatusOK, response)
}

// CreatePost creates a post at a location and tells nearby users about it
// POST /api/posts
func (h *Handlers) CreatePost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req CreatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	post := &models.Post{
		AuthorID:      userID,
		Sport:         strings.TrimSpace(req.Sport),
		Heading:       strings.TrimSpace(req.Heading),
		Description:   req.Description,
		Tags:          util.NormalizeTags(req.Tags),
		Latitude:      *req.Latitude,
		Longitude:     *req.Longitude,
		LocationName:  req.LocationName,
		EventTime:     req.EventTime,
		PlayersNeeded: req.PlayersNeeded,
		IsActive:      true,
	}
	if err := h.store.Posts.Create(c.Request.Context(), post); util.HandleDBError(c, err, "post") {
		return
	}
	metrics.RecordPostCreated()
	logger.Log.Info("Post created", logger.WithPostID(post.ID), logger.WithUserID(userID), zap.String("sport", post.Sport))

	created := *post
	h.runBackground(c, func(ctx context.Context) {
		sent, err := h.notifier.NotifyNearbyPost(ctx, &created)
		if err != nil {
			logger.Log.Warn("Nearby post fan-out failed", logger.WithPostID(created.ID), zap.Error(err))
			return
		}
		logger.Log.Debug("Nearby post fan-out done", logger.WithPostID(created.ID), zap.Int("sent", sent))
	})

	c.JSON(http.StatusCreated, gin.H{"post": PostResponse{Post: *post}})
}

// loadOwnPost fetches a post and answers 403 unless userID wrote it.
func (h *Handlers) loadOwnPost(c *gin.Context, userID string) (*models.Post, bool) {
	post, err := h.store.Posts.GetByID(c.Request.Context(), c.Param("id"))
	if util.HandleDBError(c, err, "post") {
		return nil, false
	}
	if post.AuthorID != userID {
		util.RespondForbidden(c, "Only the post author can do this")
		return nil, false
	}
	return post, true
}

// UpdatePost edits a post. Only the author may do this.
// PUT /api/posts/:id
func (h *Handlers) UpdatePost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req UpdatePostRequest
	if !bindJSON(c, &req) {
		return
	}
	post, ok := h.loadOwnPost(c, userID)
	if !ok {
		return
	}

	if req.Sport != nil {
		post.Sport = strings.TrimSpace(*req.Sport)
	}
	if req.Heading != nil {
		if strings.TrimSpace(*req.Heading) == "" {
			util.RespondValidationError(c, "heading", "heading is required")
			return
		}
		post.Heading = strings.TrimSpace(*req.Heading)
	}
	if req.Description != nil {
		post.Description = *req.Description
	}
	if req.Tags != nil {
		post.Tags = util.NormalizeTags(req.Tags)
	}
	if req.Latitude != nil {
		post.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		post.Longitude = *req.Longitude
	}
	if req.LocationName != nil {
		post.LocationName = *req.LocationName
	}
	if req.EventTime != nil {
		post.EventTime = req.EventTime
	}
	if req.PlayersNeeded != nil {
		post.PlayersNeeded = *req.PlayersNeeded
	}
	if req.IsActive != nil {
		post.IsActive = *req.IsActive
	}

	if err := h.store.Posts.Update(c.Request.Context(), post); util.HandleDBError(c, err, "post") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// DeletePost removes a post with its interests, registrations and chat
// DELETE /api/posts/:id
func (h *Handlers) DeletePost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	post, ok := h.loadOwnPost(c, userID)
	if !ok {
		return
	}
	if err := h.store.Posts.Delete(c.Request.Context(), post.ID); util.HandleDBError(c, err, "post") {
		return
	}
	logger.Log.Info("Post deleted", logger.WithPostID(post.ID), logger.WithUserID(userID))
	util.RespondMessage(c, http.StatusOK, "Post deleted")
}

// ExpressInterest records interest in a post and joins its group chat.
// Repeating the call returns the same chat and notifies the author once.
// POST /api/posts/:id/interest
func (h *Handlers) ExpressInterest(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	postID := c.Param("id")

	result, err := h.store.Posts.ExpressInterest(ctx, postID, user.ID)
	if util.HandleDBError(c, err, "post") {
		return
	}

	if result.InterestCreated {
		post, err := h.store.Posts.GetByID(ctx, postID)
		if err == nil && post.AuthorID != user.ID {
			_, err = h.notifier.Notify(ctx, repository.CreateNotificationInput{
				UserID:  post.AuthorID,
				Type:    models.NotificationTypeInterest,
				Title:   "New interest in your post",
				Message: user.Username + " is interested in " + post.Heading,
				Data: map[string]any{
					"post_id":       post.ID,
					"user_id":       user.ID,
					"username":      user.Username,
					"group_chat_id": result.GroupChat.ID,
				},
			})
		}
		if err != nil {
			logger.Log.Warn("Failed to notify post author", logger.WithPostID(postID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Interest recorded",
		"group_chat": result.GroupChat,
		"created":    result.InterestCreated,
	})
}

// RemoveInterest withdraws interest and leaves the post's group chat
// DELETE /api/posts/:id/interest
func (h *Handlers) RemoveInterest(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	removed, err := h.store.Posts.RemoveInterest(c.Request.Context(), c.Param("id"), userID)
	if util.HandleDBError(c, err, "post") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Interest removed", "removed": removed})
}

// GetInterestedUsers lists users interested in a post, earliest first
// GET /api/posts/:id/interested
func (h *Handlers) GetInterestedUsers(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.store.Posts.GetByID(ctx, c.Param("id")); util.HandleDBError(c, err, "post") {
		return
	}
	users, err := h.store.Posts.InterestedUsers(ctx, c.Param("id"))
	if util.HandleDBError(c, err, "post") {
		return
	}
	listed, ok := h.listedUsers(c, users)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": listed})
}

// GetPostRegistrations lists active registrations. Only the author sees
// attendee contact details.
// GET /api/posts/:id/registrations
func (h *Handlers) GetPostRegistrations(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	post, ok := h.loadOwnPost(c, userID)
	if !ok {
		return
	}
	registrations, err := h.store.EventRegistrations.ListForPost(c.Request.Context(), post.ID)
	if util.HandleDBError(c, err, "registration") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": registrations})
}
