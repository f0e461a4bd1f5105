package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/util"
	"go.uber.org/zap"
)

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type addMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// loadMemberChat fetches a chat and answers 403 unless userID belongs to it.
func (h *Handlers) loadMemberChat(c *gin.Context, userID string) (*models.GroupChat, bool) {
	ctx := c.Request.Context()
	chat, err := h.store.GroupChats.GetByID(ctx, c.Param("id"))
	if util.HandleDBError(c, err, "group chat") {
		return nil, false
	}
	member, err := h.store.GroupChats.IsMember(ctx, chat.ID, userID)
	if util.HandleDBError(c, err, "group chat") {
		return nil, false
	}
	if !member {
		util.RespondForbidden(c, "You are not a member of this group chat")
		return nil, false
	}
	return chat, true
}

// ListGroupChats lists the caller's chats with unread counts
// GET /api/messages/groups
func (h *Handlers) ListGroupChats(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	chats, err := h.store.GroupChats.ListForUser(c.Request.Context(), userID)
	if util.HandleDBError(c, err, "group chat") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"group_chats": chats})
}

// GetGroupChat returns a chat with its members
// GET /api/messages/groups/:id
func (h *Handlers) GetGroupChat(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	chat, ok := h.loadMemberChat(c, userID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"group_chat": chat})
}

// GetGroupMessages returns a page of a chat's messages, oldest first
// GET /api/messages/groups/:id/messages
func (h *Handlers) GetGroupMessages(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	chat, ok := h.loadMemberChat(c, userID)
	if !ok {
		return
	}
	messages, err := h.store.Messages.GroupMessages(c.Request.Context(), chat.ID, util.ParsePage(c))
	if util.HandleDBError(c, err, "message") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendGroupMessage posts to a chat. Non-members get 403 and nothing is stored.
// POST /api/messages/groups/:id/messages
func (h *Handlers) SendGroupMessage(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messaging.SendGroup(c.Request.Context(), userID, c.Param("id"), req.Content)
	if err != nil {
		respondMessagingError(c, err, "group chat")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MarkGroupRead moves the caller's read marker to now
// POST /api/messages/groups/:id/read
func (h *Handlers) MarkGroupRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	chat, ok := h.loadMemberChat(c, userID)
	if !ok {
		return
	}
	if err := h.store.GroupChats.MarkRead(c.Request.Context(), chat.ID, userID, time.Now().UTC()); util.HandleDBError(c, err, "group chat") {
		return
	}
	util.RespondMessage(c, http.StatusOK, "Marked as read")
}

// AddGroupMember adds a user to a chat. Only the chat admin may do this.
// POST /api/messages/groups/:id/members
func (h *Handlers) AddGroupMember(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req addMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	chat, err := h.store.GroupChats.GetByID(ctx, c.Param("id"))
	if util.HandleDBError(c, err, "group chat") {
		return
	}
	if chat.AdminID != userID {
		util.RespondForbidden(c, "Only the group admin can add members")
		return
	}
	if _, err := h.store.Users.GetByID(ctx, req.UserID); util.HandleDBError(c, err, "user") {
		return
	}

	added, err := h.store.GroupChats.AddMember(ctx, chat.ID, req.UserID)
	if util.HandleDBError(c, err, "group chat") {
		return
	}
	if added {
		logger.Log.Info("Group member added", logger.WithGroupChatID(chat.ID), logger.WithUserID(req.UserID))
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member added", "added": added})
}

// RemoveGroupMember removes a member. The admin may remove anyone else and
// members may remove themselves; the admin cannot leave.
// DELETE /api/messages/groups/:id/members/:userId
func (h *Handlers) RemoveGroupMember(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	targetID := c.Param("userId")

	chat, err := h.store.GroupChats.GetByID(ctx, c.Param("id"))
	if util.HandleDBError(c, err, "group chat") {
		return
	}
	if chat.AdminID != userID && targetID != userID {
		util.RespondForbidden(c, "Only the group admin can remove other members")
		return
	}

	removed, err := h.messaging.RemoveGroupMember(ctx, chat.ID, targetID)
	if util.HandleDBError(c, err, "group chat") {
		return
	}
	if removed {
		logger.Log.Info("Group member removed",
			logger.WithGroupChatID(chat.ID),
			logger.WithUserID(targetID),
			zap.String("removed_by", userID),
		)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member removed", "removed": removed})
}

// GetUnreadCount totals unread direct and group messages
// GET /api/messages/unread-count
func (h *Handlers) GetUnreadCount(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	counts, err := h.store.Messages.CountUnread(c.Request.Context(), userID)
	if util.HandleDBError(c, err, "message") {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"direct": counts.Direct,
		"group":  counts.Group,
		"total":  counts.Total(),
	})
}

// DeleteMessage hides a message. Only its sender may delete it.
// DELETE /api/messages/:id
func (h *Handlers) DeleteMessage(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	msg, err := h.store.Messages.GetByID(ctx, c.Param("id"))
	if util.HandleDBError(c, err, "message") {
		return
	}
	if msg.SenderID != userID {
		util.RespondForbidden(c, "Only the sender can delete this message")
		return
	}
	if err := h.store.Messages.SoftDelete(ctx, msg.ID, userID); util.HandleDBError(c, err, "message") {
		return
	}
	util.RespondMessage(c, http.StatusOK, "Message deleted")
}
