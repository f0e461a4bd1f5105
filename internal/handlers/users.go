package handlers

import (
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

// UserProfile is a user as seen by another user. Email is never included.
type UserProfile struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Bio            string     `json:"bio"`
	Sports         []string   `json:"sports"`
	Tags           []string   `json:"tags"`
	AvatarURL      string     `json:"avatar_url"`
	IsOnline       bool       `json:"is_online"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	Followers      []string   `json:"followers"`
	Following      []string   `json:"following"`
	FollowersCount int        `json:"followers_count"`
	FollowingCount int        `json:"following_count"`
	IsFollowing    bool       `json:"is_following"`
}

// SearchUsers finds users by username or bio
// GET /api/users/search?q=
func (h *Handlers) SearchUsers(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		util.RespondValidationError(c, "q", "q is required")
		return
	}

	users, err := h.store.Users.Search(c.Request.Context(), query, util.ParsePage(c))
	if util.HandleDBError(c, err, "user") {
		return
	}
	listed, ok := h.listedUsers(c, users)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": listed})
}

// GetUserProfile returns a profile with its follow lists. Profile
// visibility settings apply to everyone but the owner.
// GET /api/users/:id
func (h *Handlers) GetUserProfile(c *gin.Context) {
	viewerID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	targetID := c.Param("id")

	user, err := h.store.Users.GetByID(ctx, targetID)
	if util.HandleDBError(c, err, "user") {
		return
	}
	followers, err := h.store.Follows.FollowerIDs(ctx, targetID)
	if util.HandleDBError(c, err, "user") {
		return
	}
	following, err := h.store.Follows.FollowingIDs(ctx, targetID)
	if util.HandleDBError(c, err, "user") {
		return
	}

	isFollowing := false
	for _, id := range followers {
		if id == viewerID {
			isFollowing = true
			break
		}
	}

	showOnline, ok := h.profileAccess(c, viewerID, targetID)
	if !ok {
		return
	}

	profile := UserProfile{
		ID:             user.ID,
		Username:       user.Username,
		Bio:            user.Bio,
		Sports:         user.Sports,
		Tags:           user.Tags,
		AvatarURL:      user.AvatarURL,
		CreatedAt:      user.CreatedAt,
		Followers:      followers,
		Following:      following,
		FollowersCount: len(followers),
		FollowingCount: len(following),
		IsFollowing:    isFollowing,
	}
	if showOnline {
		profile.IsOnline = user.IsOnline
		profile.LastSeen = user.LastSeen
	}

	c.JSON(http.StatusOK, gin.H{"user": profile})
}

// GetUserFollowers lists who follows a user
// GET /api/users/:id/followers
func (h *Handlers) GetUserFollowers(c *gin.Context) {
	if _, ok := h.viewableProfile(c); !ok {
		return
	}
	users, err := h.store.Follows.Followers(c.Request.Context(), c.Param("id"), util.ParsePage(c))
	if util.HandleDBError(c, err, "user") {
		return
	}
	listed, ok := h.listedUsers(c, users)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"followers": listed})
}

// GetUserFollowing lists who a user follows
// GET /api/users/:id/following
func (h *Handlers) GetUserFollowing(c *gin.Context) {
	if _, ok := h.viewableProfile(c); !ok {
		return
	}
	users, err := h.store.Follows.Following(c.Request.Context(), c.Param("id"), util.ParsePage(c))
	if util.HandleDBError(c, err, "user") {
		return
	}
	listed, ok := h.listedUsers(c, users)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": listed})
}

// FollowUser follows a user. Following twice is not an error.
// POST /api/users/:id/follow
func (h *Handlers) FollowUser(c *gin.Context) {
	follower, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	targetID := c.Param("id")

	if targetID == follower.ID {
		util.RespondBadRequest(c, "You cannot follow yourself")
		return
	}
	if _, err := h.store.Users.GetByID(ctx, targetID); util.HandleDBError(c, err, "user") {
		return
	}

	created, err := h.store.Follows.Follow(ctx, follower.ID, targetID)
	if util.HandleDBError(c, err, "follow") {
		return
	}

	if created {
		metrics.RecordFollow("follow")
		_, err := h.notifier.Notify(ctx, repository.CreateNotificationInput{
			UserID:  targetID,
			Type:    models.NotificationTypeFollow,
			Title:   "New follower",
			Message: follower.Username + " started following you",
			Data:    map[string]any{"follower_id": follower.ID, "username": follower.Username},
		})
		if err != nil {
			logger.Log.Warn("Failed to notify followed user", logger.WithUserID(targetID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Followed", "following": true})
}

// UnfollowUser removes a follow edge. Unfollowing twice is not an error.
// POST /api/users/:id/unfollow
func (h *Handlers) UnfollowUser(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	removed, err := h.store.Follows.Unfollow(c.Request.Context(), userID, c.Param("id"))
	if util.HandleDBError(c, err, "follow") {
		return
	}
	if removed {
		metrics.RecordFollow("unfollow")
	}
	c.JSON(http.StatusOK, gin.H{"message": "Unfollowed", "following": false})
}

// GetUserPosts lists a user's posts, newest first
// GET /api/users/:id/posts
func (h *Handlers) GetUserPosts(c *gin.Context) {
	if _, ok := h.viewableProfile(c); !ok {
		return
	}
	posts, err := h.store.Posts.List(c.Request.Context(), repository.PostFilter{
		AuthorID: c.Param("id"),
		Page:     util.ParsePage(c),
	})
	if util.HandleDBError(c, err, "post") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// viewableProfile resolves the :id user and applies its visibility settings
// to the caller. It writes the error response itself.
func (h *Handlers) viewableProfile(c *gin.Context) (*models.User, bool) {
	viewerID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return nil, false
	}
	user, err := h.store.Users.GetByID(c.Request.Context(), c.Param("id"))
	if util.HandleDBError(c, err, "user") {
		return nil, false
	}
	if _, ok := h.profileAccess(c, viewerID, user.ID); !ok {
		return nil, false
	}
	return user, true
}

// profileAccess checks targetID's profile visibility for viewerID and
// reports whether its online status may be shown. The owner always passes.
func (h *Handlers) profileAccess(c *gin.Context, viewerID, targetID string) (showOnline bool, ok bool) {
	if viewerID == targetID {
		return true, true
	}
	ctx := c.Request.Context()
	settings, err := h.store.Settings.GetSettings(ctx, targetID)
	if util.HandleDBError(c, err, "user") {
		return false, false
	}
	switch settings.ProfileVisibility {
	case models.VisibilityPrivate:
		util.RespondForbidden(c, "This profile is private")
		return false, false
	case models.VisibilityFollowers:
		following, err := h.store.Follows.IsFollowing(ctx, viewerID, targetID)
		if util.HandleDBError(c, err, "follow") {
			return false, false
		}
		if !following {
			util.RespondForbidden(c, "This profile is only visible to followers")
			return false, false
		}
	}
	return settings.ShowOnlineStatus, true
}

// listedUsers trims users for a list response, blanking presence for anyone
// who hides it from others.
func (h *Handlers) listedUsers(c *gin.Context, users []models.User) ([]models.PublicUser, bool) {
	viewerID, _ := util.GetUserIDFromContext(c)
	ids := make([]string, 0, len(users))
	for i := range users {
		ids = append(ids, users[i].ID)
	}
	hidden, err := h.store.Settings.HiddenOnlineStatus(c.Request.Context(), ids)
	if util.HandleDBError(c, err, "user") {
		return nil, false
	}
	listed := publicUsers(users)
	for i := range listed {
		if hidden[listed[i].ID] && listed[i].ID != viewerID {
			listed[i].IsOnline = false
			listed[i].LastSeen = nil
		}
	}
	return listed, true
}
