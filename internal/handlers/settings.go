package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apierrors "github.com/sportsocial/backend/internal/errors"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/storage"
	"github.com/sportsocial/backend/internal/util"
	"go.uber.org/zap"
)

// UpdateSettingsRequest changes only the fields that are present.
type UpdateSettingsRequest struct {
	ProfileVisibility  *string `json:"profile_visibility" binding:"omitempty,oneof=public followers private"`
	ShowOnlineStatus   *bool   `json:"show_online_status"`
	EmailNotifications *bool   `json:"email_notifications"`
	PushNotifications  *bool   `json:"push_notifications"`
	Language           *string `json:"language" binding:"omitempty,min=2,max=8"`
}

// UpdatePreferencesRequest changes only the fields that are present. A home
// location is set with both coordinates or cleared with clear_location.
type UpdatePreferencesRequest struct {
	NotificationMessages    *bool    `json:"notification_messages"`
	NotificationFollows     *bool    `json:"notification_follows"`
	NotificationInterests   *bool    `json:"notification_interests"`
	NotificationNearbyPosts *bool    `json:"notification_nearby_posts"`
	NotificationReviews     *bool    `json:"notification_reviews"`
	PreferredSports         []string `json:"preferred_sports" binding:"omitempty,max=30,dive,sport"`
	Latitude                *float64 `json:"latitude" binding:"omitempty,latitude,required_with=Longitude"`
	Longitude               *float64 `json:"longitude" binding:"omitempty,longitude,required_with=Latitude"`
	ClearLocation           bool     `json:"clear_location"`
	MaxDistanceKm           *float64 `json:"max_distance_km" binding:"omitempty,gt=0,lte=500"`
}

// UpdateProfileRequest changes only the fields that are present.
type UpdateProfileRequest struct {
	Username *string  `json:"username" binding:"omitempty,min=3,max=30"`
	Bio      *string  `json:"bio" binding:"omitempty,max=500"`
	Sports   []string `json:"sports" binding:"omitempty,max=30,dive,sport"`
	Tags     []string `json:"tags" binding:"omitempty,max=30,dive,tag"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

// GetSettings
// GET /api/settings
func (h *Handlers) GetSettings(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	settings, err := h.store.Settings.GetSettings(c.Request.Context(), userID)
	if util.HandleDBError(c, err, "settings") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// UpdateSettings
// PUT /api/settings
func (h *Handlers) UpdateSettings(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req UpdateSettingsRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	settings, err := h.store.Settings.GetSettings(ctx, userID)
	if util.HandleDBError(c, err, "settings") {
		return
	}
	if req.ProfileVisibility != nil {
		settings.ProfileVisibility = *req.ProfileVisibility
	}
	if req.ShowOnlineStatus != nil {
		settings.ShowOnlineStatus = *req.ShowOnlineStatus
	}
	if req.EmailNotifications != nil {
		settings.EmailNotifications = *req.EmailNotifications
	}
	if req.PushNotifications != nil {
		settings.PushNotifications = *req.PushNotifications
	}
	if req.Language != nil {
		settings.Language = strings.ToLower(*req.Language)
	}

	if err := h.store.Settings.UpdateSettings(ctx, settings); util.HandleDBError(c, err, "settings") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// GetPreferences
// GET /api/settings/preferences
func (h *Handlers) GetPreferences(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	prefs, err := h.store.Settings.GetPreferences(c.Request.Context(), userID)
	if util.HandleDBError(c, err, "preferences") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// UpdatePreferences
// PUT /api/settings/preferences
func (h *Handlers) UpdatePreferences(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req UpdatePreferencesRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	prefs, err := h.store.Settings.GetPreferences(ctx, userID)
	if util.HandleDBError(c, err, "preferences") {
		return
	}
	if req.NotificationMessages != nil {
		prefs.NotificationMessages = *req.NotificationMessages
	}
	if req.NotificationFollows != nil {
		prefs.NotificationFollows = *req.NotificationFollows
	}
	if req.NotificationInterests != nil {
		prefs.NotificationInterests = *req.NotificationInterests
	}
	if req.NotificationNearbyPosts != nil {
		prefs.NotificationNearbyPosts = *req.NotificationNearbyPosts
	}
	if req.NotificationReviews != nil {
		prefs.NotificationReviews = *req.NotificationReviews
	}
	if req.PreferredSports != nil {
		prefs.PreferredSports = util.NormalizeTags(req.PreferredSports)
	}
	switch {
	case req.ClearLocation:
		prefs.Latitude, prefs.Longitude = nil, nil
	case req.Latitude != nil && req.Longitude != nil:
		prefs.Latitude, prefs.Longitude = req.Latitude, req.Longitude
	}
	if req.MaxDistanceKm != nil {
		prefs.MaxDistanceKm = *req.MaxDistanceKm
	}

	if err := h.store.Settings.UpdatePreferences(ctx, prefs); util.HandleDBError(c, err, "preferences") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// UpdateProfile edits the caller's public profile
// PUT /api/settings/profile
func (h *Handlers) UpdateProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username != user.Username {
			existing, err := h.store.Users.GetByUsername(ctx, username)
			switch {
			case err == nil && existing.ID != user.ID:
				util.RespondValidationError(c, "username", "Username is already taken")
				return
			case err != nil && !util.IsNotFound(err):
				util.HandleDBError(c, err, "user")
				return
			}
			user.Username = username
		}
	}
	if req.Bio != nil {
		user.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.Sports != nil {
		user.Sports = util.NormalizeTags(req.Sports)
	}
	if req.Tags != nil {
		user.Tags = util.NormalizeTags(req.Tags)
	}

	if err := h.store.Users.Update(ctx, user); util.HandleDBError(c, err, "user") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Account()})
}

// ChangePassword
// PUT /api/settings/password
func (h *Handlers) ChangePassword(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		respondAuthError(c, err)
		return
	}
	util.RespondMessage(c, http.StatusOK, "Password updated")
}

// UploadAvatar stores a new profile picture and removes the old one
// POST /api/settings/avatar (multipart field "avatar")
func (h *Handlers) UploadAvatar(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if h.avatars == nil {
		util.RespondWithAPIError(c, apierrors.ServiceUnavailable("avatar storage"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxAvatarBytes+1<<20)
	file, err := c.FormFile("avatar")
	if err != nil {
		util.RespondValidationError(c, "avatar", "avatar file is required")
		return
	}
	if file.Size > storage.MaxAvatarBytes {
		util.RespondValidationError(c, "avatar", "avatar must be 5MB or smaller")
		return
	}
	if _, ok := storage.ImageContentType(file.Filename); !ok {
		util.RespondValidationError(c, "avatar", "avatar must be a jpg, png, gif or webp image")
		return
	}

	src, err := file.Open()
	if err != nil {
		util.RespondBadRequest(c, "Could not read upload")
		return
	}
	defer src.Close()

	ctx := c.Request.Context()
	result, err := h.avatars.UploadAvatar(ctx, src, file.Size, file.Filename, user.ID)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImage) {
			util.RespondValidationError(c, "avatar", "avatar must be a jpg, png, gif or webp image")
			return
		}
		logger.Log.Error("Avatar upload failed", logger.WithUserID(user.ID), zap.Error(err))
		util.RespondInternalError(c, "Failed to upload avatar")
		return
	}

	previous := user.AvatarURL
	user.AvatarURL = result.URL
	if err := h.store.Users.Update(ctx, user); util.HandleDBError(c, err, "user") {
		return
	}

	if key, ok := h.avatars.KeyFromURL(previous); previous != "" && ok {
		if err := h.avatars.DeleteFile(ctx, key); err != nil {
			logger.Log.Warn("Failed to delete old avatar", logger.WithUserID(user.ID), zap.String("key", key), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"avatar_url": result.URL, "user": user.Account()})
}
