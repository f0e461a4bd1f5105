// Package messaging sends direct and group messages. The HTTP handlers and
// the realtime socket both go through Service, so a message behaves the
// same whichever way it arrives.
package messaging

import (
	"context"
	"errors"
	"strings"

	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/metrics"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/realtime"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/sportsocial/backend/internal/telemetry"
	"github.com/sportsocial/backend/internal/util"
	"go.uber.org/zap"
)

// MaxContentLength bounds a single message body in runes.
const MaxContentLength = 4000

var (
	ErrEmptyContent    = errors.New("message content is required")
	ErrContentTooLong  = errors.New("message content is too long")
	ErrSelfMessage     = errors.New("cannot message yourself")
	ErrNotMember       = errors.New("not a member of this group chat")
	ErrRecipientAbsent = errors.New("recipient not found")
)

// Notifier creates an inbox entry for a user.
type Notifier interface {
	Notify(ctx context.Context, input repository.CreateNotificationInput) (*models.Notification, error)
}

// MessageEvent is the payload of newDirectMessage and newGroupMessage.
type MessageEvent struct {
	Message *models.Message   `json:"message"`
	Sender  models.PublicUser `json:"sender"`
}

type Service struct {
	users     repository.UserRepository
	direct    repository.DirectMessageRepository
	messages  repository.MessageRepository
	groups    repository.GroupChatRepository
	notifier  Notifier
	publisher realtime.Publisher
}

func NewService(store *repository.Store, notifier Notifier, publisher realtime.Publisher) *Service {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Service{
		users:     store.Users,
		direct:    store.DirectMessages,
		messages:  store.Messages,
		groups:    store.GroupChats,
		notifier:  notifier,
		publisher: publisher,
	}
}

// SendDirect persists a direct message and pushes it to both participants'
// rooms. The recipient also gets a message notification.
func (s *Service) SendDirect(ctx context.Context, senderID, recipientID, content string) (msg *models.Message, err error) {
	ctx, span := telemetry.StartMessageSpan(ctx, models.MessageTypeDirect, senderID, recipientID)
	defer func() { telemetry.EndSpan(span, err) }()

	content, err = cleanContent(content)
	if err != nil {
		return nil, err
	}
	if senderID == recipientID {
		return nil, ErrSelfMessage
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRecipientAbsent
		}
		return nil, err
	}

	msg, err = s.direct.Send(ctx, repository.SendDirectMessageInput{
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordMessagePersisted(models.MessageTypeDirect)

	event := MessageEvent{Message: msg, Sender: sender.Public()}
	s.publisher.PublishToUser(recipientID, realtime.EventNewDirectMessage, event)
	s.publisher.PublishToUser(senderID, realtime.EventNewDirectMessage, event)

	if s.notifier != nil {
		_, nerr := s.notifier.Notify(ctx, repository.CreateNotificationInput{
			UserID:  recipientID,
			Type:    models.NotificationTypeMessage,
			Title:   "New message from " + sender.Username,
			Message: util.Truncate(content, 140),
			Data: map[string]any{
				"conversation_id": deref(msg.ConversationID),
				"message_id":      msg.ID,
				"sender_id":       senderID,
			},
		})
		if nerr != nil {
			logger.Log.Warn("Failed to notify message recipient",
				logger.WithUserID(recipientID),
				logger.WithConversationID(deref(msg.ConversationID)),
				zap.Error(nerr))
		}
	}
	return msg, nil
}

// SendGroup persists a group message from a member and pushes it to the
// chat's room. Non-members get ErrNotMember and nothing is written.
func (s *Service) SendGroup(ctx context.Context, senderID, groupChatID, content string) (msg *models.Message, err error) {
	ctx, span := telemetry.StartMessageSpan(ctx, models.MessageTypeGroup, senderID, groupChatID)
	defer func() { telemetry.EndSpan(span, err) }()

	content, err = cleanContent(content)
	if err != nil {
		return nil, err
	}

	if _, err := s.groups.GetByID(ctx, groupChatID); err != nil {
		return nil, err
	}
	member, err := s.groups.IsMember(ctx, groupChatID, senderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotMember
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg, err = s.messages.CreateGroupMessage(ctx, groupChatID, senderID, content)
	if err != nil {
		return nil, err
	}
	metrics.RecordMessagePersisted(models.MessageTypeGroup)

	s.publisher.PublishToGroup(groupChatID, realtime.EventNewGroupMessage, MessageEvent{Message: msg, Sender: sender.Public()})
	return msg, nil
}

// RemoveGroupMember drops userID from the chat and evicts their sockets
// from its room. Authorization is the caller's job.
func (s *Service) RemoveGroupMember(ctx context.Context, groupChatID, userID string) (bool, error) {
	removed, err := s.groups.RemoveMember(ctx, groupChatID, userID)
	if err != nil {
		return false, err
	}
	s.publisher.EvictFromGroup(groupChatID, userID)
	return removed, nil
}

// CanJoinGroup reports whether userID may subscribe to the chat's room.
func (s *Service) CanJoinGroup(ctx context.Context, groupChatID, userID string) (bool, error) {
	return s.groups.IsMember(ctx, groupChatID, userID)
}

func cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if len([]rune(content)) > MaxContentLength {
		return "", ErrContentTooLong
	}
	return content, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
