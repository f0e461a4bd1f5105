package repository

import (
	"context"
	"strings"

	"github.com/sportsocial/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SendDirectMessageInput is the payload of a direct send.
type SendDirectMessageInput struct {
	SenderID    string
	RecipientID string
	Content     string
}

// ConversationSummary is a conversation as listed in a participant's inbox.
type ConversationSummary struct {
	Conversation models.DirectConversation `json:"conversation"`
	OtherUser    *models.PublicUser        `json:"other_user"`
	LastMessage  *models.Message           `json:"last_message,omitempty"`
	UnreadCount  int64                     `json:"unread_count"`
}

// DirectMessageRepository covers one-to-one conversations.
type DirectMessageRepository interface {
	// GetOrCreateConversation returns the conversation for the unordered
	// pair, creating it on first use.
	GetOrCreateConversation(ctx context.Context, userA, userB string) (*models.DirectConversation, error)
	GetConversation(ctx context.Context, conversationID string) (*models.DirectConversation, error)
	// Send gets or creates the conversation, inserts the message and bumps
	// the conversation's last message, in one transaction.
	Send(ctx context.Context, input SendDirectMessageInput) (*models.Message, error)
	// Messages returns a page of the conversation, oldest first. Callers who
	// are not participants get ErrNotFound.
	Messages(ctx context.Context, conversationID, userID string, page Page) ([]models.Message, error)
	// ConversationsWithUnread lists the user's conversations, most recently
	// active first, each with the other participant, last message and the
	// number of unread messages addressed to the user.
	ConversationsWithUnread(ctx context.Context, userID string) ([]ConversationSummary, error)
	// MarkConversationRead marks read only the messages in this conversation
	// addressed to userID and returns how many changed.
	MarkConversationRead(ctx context.Context, conversationID, userID string) (int64, error)
}

type directMessageRepository struct {
	db *gorm.DB
}

func NewDirectMessageRepository(db *gorm.DB) DirectMessageRepository {
	return &directMessageRepository{db: db}
}

func (r *directMessageRepository) GetOrCreateConversation(ctx context.Context, userA, userB string) (*models.DirectConversation, error) {
	var conversation *models.DirectConversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		conversation, err = getOrCreateConversationTx(tx, userA, userB)
		return err
	})
	if err != nil {
		return nil, storeError("direct.get_or_create_conversation", err)
	}
	return conversation, nil
}

func getOrCreateConversationTx(tx *gorm.DB, userA, userB string) (*models.DirectConversation, error) {
	if userA == "" || userB == "" || userA == userB {
		return nil, ErrInvalidInput
	}
	first, second := models.OrderedPair(userA, userB)

	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.DirectConversation{UserAID: first, UserBID: second}).Error
	if err != nil {
		return nil, err
	}

	var conversation models.DirectConversation
	if err := tx.Where("user_a_id = ? AND user_b_id = ?", first, second).First(&conversation).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *directMessageRepository) GetConversation(ctx context.Context, conversationID string) (*models.DirectConversation, error) {
	var conversation models.DirectConversation
	if err := r.db.WithContext(ctx).Where("id = ?", conversationID).First(&conversation).Error; err != nil {
		return nil, storeError("direct.get_conversation", err)
	}
	return &conversation, nil
}

func (r *directMessageRepository) Send(ctx context.Context, input SendDirectMessageInput) (*models.Message, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, storeError("direct.send", ErrInvalidInput)
	}

	var message *models.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conversation, err := getOrCreateConversationTx(tx, input.SenderID, input.RecipientID)
		if err != nil {
			return err
		}

		recipientID := input.RecipientID
		conversationID := conversation.ID
		message = &models.Message{
			SenderID:       input.SenderID,
			RecipientID:    &recipientID,
			ConversationID: &conversationID,
			Content:        content,
			MessageType:    models.MessageTypeDirect,
		}
		if err := tx.Omit(clause.Associations).Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&models.DirectConversation{}).
			Where("id = ?", conversation.ID).
			Updates(map[string]any{
				"last_message_id": message.ID,
				"last_message_at": message.CreatedAt,
			}).Error
	})
	if err != nil {
		return nil, storeError("direct.send", err)
	}

	var sender models.User
	if err := r.db.WithContext(ctx).Where("id = ?", message.SenderID).First(&sender).Error; err == nil {
		message.Sender = &sender
	}
	return message, nil
}

func (r *directMessageRepository) Messages(ctx context.Context, conversationID, userID string, page Page) ([]models.Message, error) {
	conversation, err := r.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.Participant(userID) {
		return nil, storeError("direct.messages", ErrNotFound)
	}

	page = page.Normalize()
	messages := []models.Message{}
	err = r.db.WithContext(ctx).
		Preload("Sender").
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&messages).Error
	if err != nil {
		return nil, storeError("direct.messages", err)
	}
	reverseMessages(messages)
	return messages, nil
}

func (r *directMessageRepository) ConversationsWithUnread(ctx context.Context, userID string) ([]ConversationSummary, error) {
	db := r.db.WithContext(ctx)

	var conversations []models.DirectConversation
	err := db.
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("last_message_at IS NULL, last_message_at DESC, created_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, storeError("direct.conversations", err)
	}
	summaries := make([]ConversationSummary, 0, len(conversations))
	if len(conversations) == 0 {
		return summaries, nil
	}

	conversationIDs := make([]string, 0, len(conversations))
	otherIDs := make([]string, 0, len(conversations))
	var lastIDs []string
	for _, c := range conversations {
		conversationIDs = append(conversationIDs, c.ID)
		otherIDs = append(otherIDs, c.Other(userID))
		if c.LastMessageID != nil {
			lastIDs = append(lastIDs, *c.LastMessageID)
		}
	}

	var unreadRows []struct {
		ConversationID string
		Total          int64
	}
	err = db.Model(&models.Message{}).
		Select("conversation_id, COUNT(*) AS total").
		Where("conversation_id IN ? AND recipient_id = ? AND is_read = ? AND is_deleted = ?", conversationIDs, userID, false, false).
		Group("conversation_id").
		Scan(&unreadRows).Error
	if err != nil {
		return nil, storeError("direct.conversations", err)
	}
	unread := make(map[string]int64, len(unreadRows))
	for _, row := range unreadRows {
		unread[row.ConversationID] = row.Total
	}

	var others []models.User
	if err := db.Where("id IN ?", otherIDs).Find(&others).Error; err != nil {
		return nil, storeError("direct.conversations", err)
	}
	users := make(map[string]*models.PublicUser, len(others))
	for i := range others {
		public := others[i].Public()
		users[others[i].ID] = &public
	}

	lastMessages := map[string]*models.Message{}
	if len(lastIDs) > 0 {
		var messages []models.Message
		if err := db.Where("id IN ?", lastIDs).Find(&messages).Error; err != nil {
			return nil, storeError("direct.conversations", err)
		}
		for i := range messages {
			lastMessages[messages[i].ID] = &messages[i]
		}
	}

	for _, c := range conversations {
		summary := ConversationSummary{
			Conversation: c,
			OtherUser:    users[c.Other(userID)],
			UnreadCount:  unread[c.ID],
		}
		if c.LastMessageID != nil {
			summary.LastMessage = lastMessages[*c.LastMessageID]
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (r *directMessageRepository) MarkConversationRead(ctx context.Context, conversationID, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", conversationID, userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, storeError("direct.mark_read", res.Error)
	}
	return res.RowsAffected, nil
}
