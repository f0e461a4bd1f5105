package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/auth"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/messaging"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/sportsocial/backend/internal/util"
	"go.uber.org/zap"
)

// Authenticator resolves a session token to its user.
type Authenticator interface {
	ValidateToken(ctx context.Context, token string) (*models.User, error)
}

// MessageSender is the part of messaging.Service the socket uses.
type MessageSender interface {
	SendDirect(ctx context.Context, senderID, recipientID, content string) (*models.Message, error)
	SendGroup(ctx context.Context, senderID, groupChatID, content string) (*models.Message, error)
	CanJoinGroup(ctx context.Context, groupChatID, userID string) (bool, error)
}

// Handler upgrades HTTP requests and serves client events.
type Handler struct {
	hub            *Hub
	auth           Authenticator
	messages       MessageSender
	originPatterns []string
}

// NewHandler creates a socket handler. allowedOrigins are full origins such
// as the frontend URL; an empty list only accepts same-host requests.
func NewHandler(hub *Hub, authenticator Authenticator, messages MessageSender, allowedOrigins ...string) *Handler {
	h := &Handler{
		hub:      hub,
		auth:     authenticator,
		messages: messages,
	}
	for _, origin := range allowedOrigins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			h.originPatterns = append(h.originPatterns, u.Host)
		}
	}
	h.RegisterDefaultHandlers()
	return h
}

// HandleWebSocket authenticates with ?token=... or "Authorization: Bearer"
// and then serves the socket until it closes.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	user, ok := h.authenticateRequest(c)
	if !ok {
		return
	}

	conn, err := websocket.Accept(newUpgradeWriter(c.Writer), c.Request, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Warn("Socket upgrade failed", logger.WithUserID(user.ID), zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, user.ID, user.Username)
	client.RemoteAddr = c.ClientIP()
	client.UserAgent = c.GetHeader("User-Agent")

	if !h.hub.Register(client) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	_ = client.Send(NewMessage(MessageTypeSystem, SystemPayload{
		Event:   "connected",
		Message: "Connected to Sports Social",
		Data: map[string]interface{}{
			"user_id":     user.ID,
			"username":    user.Username,
			"server_time": time.Now().UTC().UnixMilli(),
		},
	}))

	go client.WritePump()
	client.ReadPump()
}

// authenticateRequest writes the error response itself: 401 without a
// token, 403 for a token that does not verify.
func (h *Handler) authenticateRequest(c *gin.Context) (*models.User, bool) {
	token := c.Query("token")
	if token == "" {
		token = auth.BearerToken(c.Request)
	}
	if token == "" {
		util.RespondUnauthorized(c, "Access token required")
		return nil, false
	}

	user, err := h.auth.ValidateToken(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			util.RespondForbidden(c, "Invalid or expired token")
		} else {
			logger.Log.Error("Socket token validation failed", zap.Error(err))
			util.RespondInternalError(c)
		}
		return nil, false
	}
	return user, true
}

// Stats returns the hub counters for the health endpoint.
func (h *Handler) Stats() MetricsSnapshot {
	return h.hub.GetMetrics()
}

// RegisterDefaultHandlers wires the client events.
func (h *Handler) RegisterDefaultHandlers() {
	h.hub.RegisterHandler(MessageTypeJoin, h.handleJoin)
	h.hub.RegisterHandler(MessageTypeSendDirectMessage, h.handleSendDirectMessage)
	h.hub.RegisterHandler(MessageTypeSendGroupMessage, h.handleSendGroupMessage)
	h.hub.RegisterHandler(MessageTypeJoinGroupChat, h.handleJoinGroupChat)
	h.hub.RegisterHandler(MessageTypeLeaveGroupChat, h.handleLeaveGroupChat)
	h.hub.RegisterHandler(MessageTypeTyping, h.handleTyping)
}

// handleJoin answers with the identity taken from the token. Any user id in
// the payload is ignored; the socket already sits in its user's room.
func (h *Handler) handleJoin(client *Client, message *Message) error {
	return client.Send(NewReply(message, MessageTypeSystem, SystemPayload{
		Event: "joined",
		Data: map[string]interface{}{
			"user_id":  client.UserID,
			"username": client.Username,
		},
	}))
}

func (h *Handler) handleSendDirectMessage(client *Client, message *Message) error {
	var req SendDirectMessagePayload
	if err := message.ParsePayload(&req); err != nil || req.RecipientID == "" {
		return client.Send(NewReply(message, MessageTypeMessageError, ErrorPayload{
			Code:    "invalid_payload",
			Message: "recipientId and content are required",
		}))
	}

	ctx, cancel := context.WithTimeout(client.Context(), handlerTimeout)
	defer cancel()

	msg, err := h.messages.SendDirect(ctx, client.UserID, req.RecipientID, req.Content)
	if err != nil {
		return h.sendFailed(client, message, err)
	}
	return client.Send(NewReply(message, MessageTypeMessageDelivered, map[string]interface{}{"message": msg}))
}

func (h *Handler) handleSendGroupMessage(client *Client, message *Message) error {
	var req SendGroupMessagePayload
	if err := message.ParsePayload(&req); err != nil || req.GroupChat == "" {
		return client.Send(NewReply(message, MessageTypeMessageError, ErrorPayload{
			Code:    "invalid_payload",
			Message: "groupChat and content are required",
		}))
	}

	ctx, cancel := context.WithTimeout(client.Context(), handlerTimeout)
	defer cancel()

	msg, err := h.messages.SendGroup(ctx, client.UserID, req.GroupChat, req.Content)
	if err != nil {
		return h.sendFailed(client, message, err)
	}
	return client.Send(NewReply(message, MessageTypeMessageDelivered, map[string]interface{}{"message": msg}))
}

// sendFailed reports a failed send to the sending socket only.
func (h *Handler) sendFailed(client *Client, message *Message, err error) error {
	payload := ErrorPayload{Code: "internal_error", Message: "Failed to send message"}
	switch {
	case errors.Is(err, messaging.ErrNotMember):
		payload = ErrorPayload{Code: "forbidden", Message: err.Error()}
	case errors.Is(err, messaging.ErrRecipientAbsent), errors.Is(err, repository.ErrNotFound):
		payload = ErrorPayload{Code: "not_found", Message: err.Error()}
	case errors.Is(err, messaging.ErrEmptyContent),
		errors.Is(err, messaging.ErrContentTooLong),
		errors.Is(err, messaging.ErrSelfMessage):
		payload = ErrorPayload{Code: "invalid_message", Message: err.Error()}
	default:
		logger.Log.Error("Socket message send failed",
			logger.WithUserID(client.UserID),
			zap.String("type", message.Type),
			zap.Error(err))
	}
	return client.Send(NewReply(message, MessageTypeMessageError, payload))
}

func (h *Handler) handleJoinGroupChat(client *Client, message *Message) error {
	var req GroupChatPayload
	if err := message.ParsePayload(&req); err != nil || req.GroupChat == "" {
		return client.Send(NewReply(message, MessageTypeError, ErrorPayload{
			Code:    "invalid_payload",
			Message: "groupChat is required",
		}))
	}

	ctx, cancel := context.WithTimeout(client.Context(), handlerTimeout)
	defer cancel()

	member, err := h.messages.CanJoinGroup(ctx, req.GroupChat, client.UserID)
	if err != nil {
		return err
	}
	if !member {
		return client.Send(NewReply(message, MessageTypeError, ErrorPayload{
			Code:    "forbidden",
			Message: messaging.ErrNotMember.Error(),
		}))
	}

	if !h.hub.JoinGroup(client, req.GroupChat) {
		return client.Send(NewReply(message, MessageTypeError, ErrorPayload{
			Code:    "not_connected",
			Message: "socket is not registered",
		}))
	}
	logger.Log.Debug("Socket joined group chat",
		logger.WithUserID(client.UserID),
		logger.WithGroupChatID(req.GroupChat))

	return client.Send(NewReply(message, MessageTypeSystem, SystemPayload{
		Event: "joinedGroupChat",
		Data:  map[string]interface{}{"groupChat": req.GroupChat},
	}))
}

func (h *Handler) handleLeaveGroupChat(client *Client, message *Message) error {
	var req GroupChatPayload
	if err := message.ParsePayload(&req); err != nil || req.GroupChat == "" {
		return client.Send(NewReply(message, MessageTypeError, ErrorPayload{
			Code:    "invalid_payload",
			Message: "groupChat is required",
		}))
	}

	h.hub.LeaveGroup(client, req.GroupChat)
	return client.Send(NewReply(message, MessageTypeSystem, SystemPayload{
		Event: "leftGroupChat",
		Data:  map[string]interface{}{"groupChat": req.GroupChat},
	}))
}

// handleTyping relays the indicator without persisting anything. Group
// typing is only relayed from sockets that joined the chat.
func (h *Handler) handleTyping(client *Client, message *Message) error {
	var req TypingPayload
	if err := message.ParsePayload(&req); err != nil {
		return client.Send(NewReply(message, MessageTypeError, ErrorPayload{
			Code:    "invalid_payload",
			Message: "Invalid typing payload",
		}))
	}

	event := TypingPayload{
		UserID:   client.UserID,
		Username: client.Username,
		IsTyping: req.IsTyping,
	}

	switch {
	case req.RecipientID != "":
		if req.RecipientID == client.UserID {
			return nil
		}
		event.RecipientID = req.RecipientID
		h.hub.PublishToUser(req.RecipientID, MessageTypeUserTyping, event)
	case req.GroupChat != "":
		if !h.hub.InGroup(client, req.GroupChat) {
			return client.Send(NewReply(message, MessageTypeError, ErrorPayload{
				Code:    "forbidden",
				Message: "Join the group chat first",
			}))
		}
		event.GroupChat = req.GroupChat
		h.hub.PublishToGroup(req.GroupChat, MessageTypeUserTyping, event)
	default:
		return client.Send(NewReply(message, MessageTypeError, ErrorPayload{
			Code:    "invalid_payload",
			Message: "recipientId or groupChat is required",
		}))
	}
	return nil
}

// Shutdown gracefully shuts down the WebSocket handler
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.hub.Shutdown(ctx)
}

// GetHub returns the hub for services that publish events.
func (h *Handler) GetHub() *Hub {
	return h.hub
}

// StatusHandler reports hub counters as JSON.
func (h *Handler) StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"websocket":    h.hub.GetMetrics(),
		"online_users": len(h.hub.GetOnlineUsers()),
		"timestamp":    time.Now().UTC(),
	})
}
