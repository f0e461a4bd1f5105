package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/sportsocial/backend/internal/util"
)

type markNotificationsRequest struct {
	IDs []string `json:"ids"`
}

// GetNotifications lists the caller's notifications, newest first
// GET /api/notifications?unread=true
func (h *Handlers) GetNotifications(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	filter := repository.NotificationFilter{Page: util.ParsePage(c)}
	if unread := util.ParseBoolQuery(c, "unread"); unread != nil {
		filter.UnreadOnly = *unread
	}

	ctx := c.Request.Context()
	notifications, err := h.store.Notifications.List(ctx, userID, filter)
	if util.HandleDBError(c, err, "notification") {
		return
	}
	unread, err := h.store.Notifications.UnreadCount(ctx, userID)
	if util.HandleDBError(c, err, "notification") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "unread_count": unread})
}

// GetNotificationUnreadCount
// GET /api/notifications/unread-count
func (h *Handlers) GetNotificationUnreadCount(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	unread, err := h.store.Notifications.UnreadCount(c.Request.Context(), userID)
	if util.HandleDBError(c, err, "notification") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": unread})
}

// MarkNotificationsRead marks the listed notifications read, or all of
// them when ids is empty or the body is absent
// POST /api/notifications/read
func (h *Handlers) MarkNotificationsRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req markNotificationsRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	updated, err := h.store.Notifications.MarkAsRead(c.Request.Context(), userID, req.IDs)
	if util.HandleDBError(c, err, "notification") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notifications marked as read", "updated": updated})
}

// MarkNotificationRead marks one notification read. Marking an already read
// or foreign notification changes nothing.
// POST /api/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	updated, err := h.store.Notifications.MarkAsRead(c.Request.Context(), userID, []string{c.Param("id")})
	if util.HandleDBError(c, err, "notification") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read", "updated": updated})
}

// DeleteNotification
// DELETE /api/notifications/:id
func (h *Handlers) DeleteNotification(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	if err := h.store.Notifications.Delete(c.Request.Context(), userID, c.Param("id")); util.HandleDBError(c, err, "notification") {
		return
	}
	util.RespondMessage(c, http.StatusOK, "Notification deleted")
}
