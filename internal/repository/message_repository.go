package repository

import (
	"context"
	"strings"

	"github.com/sportsocial/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnreadCounts splits a user's unread messages by thread kind.
type UnreadCounts struct {
	Direct int64 `json:"direct"`
	Group  int64 `json:"group"`
}

// Total is the sum of both kinds.
func (u UnreadCounts) Total() int64 {
	return u.Direct + u.Group
}

// MessageRepository handles group messages and message-level operations
// shared by both thread kinds.
type MessageRepository interface {
	GetByID(ctx context.Context, messageID string) (*models.Message, error)
	// CreateGroupMessage inserts the message, bumps the chat's last message
	// and marks the chat read for the sender, in one transaction.
	CreateGroupMessage(ctx context.Context, chatID, senderID, content string) (*models.Message, error)
	GroupMessages(ctx context.Context, chatID string, page Page) ([]models.Message, error)
	CountUnread(ctx context.Context, userID string) (UnreadCounts, error)
	SoftDelete(ctx context.Context, messageID, senderID string) error
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) GetByID(ctx context.Context, messageID string) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).Preload("Sender").Where("id = ?", messageID).First(&message).Error
	if err != nil {
		return nil, storeError("message.get", err)
	}
	return &message, nil
}

func (r *messageRepository) CreateGroupMessage(ctx context.Context, chatID, senderID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if chatID == "" || senderID == "" || content == "" {
		return nil, storeError("message.create_group", ErrInvalidInput)
	}

	message := &models.Message{
		SenderID:    senderID,
		GroupChatID: &chatID,
		Content:     content,
		MessageType: models.MessageTypeGroup,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(message).Error; err != nil {
			return err
		}
		bump := tx.Model(&models.GroupChat{}).
			Where("id = ?", chatID).
			Updates(map[string]any{
				"last_message_id": message.ID,
				"last_message_at": message.CreatedAt,
			})
		if bump.Error != nil {
			return bump.Error
		}
		if bump.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&models.GroupChatMember{}).
			Where("group_chat_id = ? AND user_id = ?", chatID, senderID).
			Update("last_read_at", message.CreatedAt).Error
	})
	if err != nil {
		return nil, storeError("message.create_group", err)
	}
	return r.withSender(ctx, message), nil
}

func (r *messageRepository) withSender(ctx context.Context, message *models.Message) *models.Message {
	var sender models.User
	if err := r.db.WithContext(ctx).Where("id = ?", message.SenderID).First(&sender).Error; err == nil {
		message.Sender = &sender
	}
	return message
}

// GroupMessages returns one page of the newest messages, oldest first.
func (r *messageRepository) GroupMessages(ctx context.Context, chatID string, page Page) ([]models.Message, error) {
	page = page.Normalize()
	messages := []models.Message{}
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("group_chat_id = ? AND is_deleted = ?", chatID, false).
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&messages).Error
	if err != nil {
		return nil, storeError("message.group_messages", err)
	}
	reverseMessages(messages)
	return messages, nil
}

func reverseMessages(messages []models.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}

func (r *messageRepository) CountUnread(ctx context.Context, userID string) (UnreadCounts, error) {
	var counts UnreadCounts
	db := r.db.WithContext(ctx)

	err := db.Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = ? AND is_deleted = ?", userID, false, false).
		Count(&counts.Direct).Error
	if err != nil {
		return counts, storeError("message.count_unread", err)
	}

	perChat, err := groupUnreadByChat(db, userID, nil)
	if err != nil {
		return counts, storeError("message.count_unread", err)
	}
	for _, n := range perChat {
		counts.Group += n
	}
	return counts, nil
}

// SoftDelete hides a message; only its sender may delete it.
func (r *messageRepository) SoftDelete(ctx context.Context, messageID, senderID string) error {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND sender_id = ?", messageID, senderID).
		Update("is_deleted", true)
	if res.Error != nil {
		return storeError("message.soft_delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return storeError("message.soft_delete", ErrNotFound)
	}
	return nil
}
