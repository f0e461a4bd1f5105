package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/util"
)

type startConversationRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
}

type sendDirectMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	Content     string `json:"content" binding:"required"`
}

// ListConversations lists the caller's conversations with unread counts
// GET /api/direct-messages/conversations
func (h *Handlers) ListConversations(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	conversations, err := h.store.DirectMessages.ConversationsWithUnread(c.Request.Context(), userID)
	if util.HandleDBError(c, err, "conversation") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// StartConversation gets or creates the conversation with a user
// POST /api/direct-messages/conversations
func (h *Handlers) StartConversation(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req startConversationRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.RecipientID == userID {
		util.RespondBadRequest(c, "You cannot message yourself")
		return
	}
	ctx := c.Request.Context()

	other, err := h.store.Users.GetByID(ctx, req.RecipientID)
	if util.HandleDBError(c, err, "recipient") {
		return
	}
	conversation, err := h.store.DirectMessages.GetOrCreateConversation(ctx, userID, req.RecipientID)
	if util.HandleDBError(c, err, "conversation") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conversation, "other_user": other.Public()})
}

// GetConversationMessages returns a page of a conversation, oldest first.
// Non-participants get 404.
// GET /api/direct-messages/conversations/:id/messages
func (h *Handlers) GetConversationMessages(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	messages, err := h.store.DirectMessages.Messages(c.Request.Context(), c.Param("id"), userID, util.ParsePage(c))
	if util.HandleDBError(c, err, "conversation") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// MarkConversationRead marks read the messages in one conversation that
// were sent to the caller
// POST /api/direct-messages/conversations/:id/read
func (h *Handlers) MarkConversationRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	conversation, err := h.store.DirectMessages.GetConversation(ctx, c.Param("id"))
	if util.HandleDBError(c, err, "conversation") {
		return
	}
	if !conversation.Participant(userID) {
		util.RespondNotFound(c, "conversation")
		return
	}
	updated, err := h.store.DirectMessages.MarkConversationRead(ctx, conversation.ID, userID)
	if util.HandleDBError(c, err, "conversation") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Marked as read", "updated": updated})
}

// SendDirectMessage sends a message, creating the conversation if needed
// POST /api/direct-messages/send
func (h *Handlers) SendDirectMessage(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req sendDirectMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messaging.SendDirect(c.Request.Context(), userID, req.RecipientID, req.Content)
	if err != nil {
		respondMessagingError(c, err, "conversation")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
