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

// RegisterEventRequest is the body of POST /api/event-registrations.
type RegisterEventRequest struct {
	PostID   string `json:"post_id" binding:"required"`
	FullName string `json:"full_name" binding:"required,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"max=40"`
	Notes    string `json:"notes" binding:"max=2000"`
}

// RegisterForEvent signs the caller up for a post's event. Registering
// again updates the details and reactivates a cancelled registration.
// POST /api/event-registrations
func (h *Handlers) RegisterForEvent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req RegisterEventRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	post, err := h.store.Posts.GetByID(ctx, req.PostID)
	if util.HandleDBError(c, err, "post") {
		return
	}
	if !post.IsActive {
		util.RespondBadRequest(c, "This event is no longer accepting registrations")
		return
	}

	registration, err := h.store.EventRegistrations.Register(ctx, &models.EventRegistration{
		PostID:   post.ID,
		UserID:   user.ID,
		FullName: strings.TrimSpace(req.FullName),
		Email:    strings.TrimSpace(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		Notes:    req.Notes,
	})
	if util.HandleDBError(c, err, "registration") {
		return
	}

	if post.AuthorID != user.ID {
		_, err := h.notifier.Notify(ctx, repository.CreateNotificationInput{
			UserID:  post.AuthorID,
			Type:    models.NotificationTypeEventRegistration,
			Title:   "New registration",
			Message: registration.FullName + " registered for " + post.Heading,
			Data:    map[string]any{"post_id": post.ID, "registration_id": registration.ID, "user_id": user.ID},
		})
		if err != nil {
			logger.Log.Warn("Failed to notify event organizer", logger.WithPostID(post.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, gin.H{"registration": registration})
}

// GetMyRegistrations
// GET /api/event-registrations
func (h *Handlers) GetMyRegistrations(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	registrations, err := h.store.EventRegistrations.ListForUser(c.Request.Context(), userID)
	if util.HandleDBError(c, err, "registration") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": registrations})
}

// CancelRegistration
// DELETE /api/event-registrations/:id
func (h *Handlers) CancelRegistration(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	if err := h.store.EventRegistrations.Cancel(c.Request.Context(), c.Param("id"), userID); util.HandleDBError(c, err, "registration") {
		return
	}
	util.RespondMessage(c, http.StatusOK, "Registration cancelled")
}
