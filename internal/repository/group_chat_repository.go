package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sportsocial/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GroupChatSummary is a chat as listed in a member's inbox.
type GroupChatSummary struct {
	models.GroupChat
	MemberCount int64           `json:"member_count"`
	UnreadCount int64           `json:"unread_count"`
	LastMessage *models.Message `json:"last_message,omitempty"`
}

// GroupChatRepository manages group chats and their membership join table.
type GroupChatRepository interface {
	GetByID(ctx context.Context, chatID string) (*models.GroupChat, error)
	GetByPostID(ctx context.Context, postID string) (*models.GroupChat, error)
	// EnsureForPost gets or creates the chat for a post, with the author as
	// its admin member.
	EnsureForPost(ctx context.Context, post *models.Post) (*models.GroupChat, error)
	ListForUser(ctx context.Context, userID string) ([]GroupChatSummary, error)
	IsMember(ctx context.Context, chatID, userID string) (bool, error)
	AddMember(ctx context.Context, chatID, userID string) (bool, error)
	RemoveMember(ctx context.Context, chatID, userID string) (bool, error)
	MemberIDs(ctx context.Context, chatID string) ([]string, error)
	MarkRead(ctx context.Context, chatID, userID string, at time.Time) error
}

type groupChatRepository struct {
	db *gorm.DB
}

func NewGroupChatRepository(db *gorm.DB) GroupChatRepository {
	return &groupChatRepository{db: db}
}

func (r *groupChatRepository) GetByID(ctx context.Context, chatID string) (*models.GroupChat, error) {
	var chat models.GroupChat
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Preload("Members.User").
		Where("id = ?", chatID).
		First(&chat).Error
	if err != nil {
		return nil, storeError("group_chat.get", err)
	}
	return &chat, nil
}

func (r *groupChatRepository) GetByPostID(ctx context.Context, postID string) (*models.GroupChat, error) {
	var chat models.GroupChat
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).First(&chat).Error; err != nil {
		return nil, storeError("group_chat.get_by_post", err)
	}
	return &chat, nil
}

func (r *groupChatRepository) EnsureForPost(ctx context.Context, post *models.Post) (*models.GroupChat, error) {
	var chat *models.GroupChat
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		chat, err = ensurePostGroupChatTx(tx, post)
		return err
	})
	if err != nil {
		return nil, storeError("group_chat.ensure_for_post", err)
	}
	return chat, nil
}

// ensurePostGroupChatTx relies on the unique post_id index: a concurrent
// creator loses the insert and both read back the same row.
func ensurePostGroupChatTx(tx *gorm.DB, post *models.Post) (*models.GroupChat, error) {
	var chat models.GroupChat
	err := tx.Where("post_id = ?", post.ID).First(&chat).Error
	if err == nil {
		return &chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	postID := post.ID
	chat = models.GroupChat{
		Name:    post.Heading,
		PostID:  &postID,
		AdminID: post.AuthorID,
	}
	if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&chat).Error; err != nil {
		return nil, err
	}

	var stored models.GroupChat
	if err := tx.Where("post_id = ?", post.ID).First(&stored).Error; err != nil {
		return nil, err
	}
	if _, err := addMemberTx(tx, stored.ID, stored.AdminID, models.GroupRoleAdmin); err != nil {
		return nil, err
	}
	return &stored, nil
}

// addMemberTx is a single insert; an existing membership is left untouched.
func addMemberTx(tx *gorm.DB, chatID, userID, role string) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.GroupChatMember{GroupChatID: chatID, UserID: userID, Role: role})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *groupChatRepository) ListForUser(ctx context.Context, userID string) ([]GroupChatSummary, error) {
	db := r.db.WithContext(ctx)

	var chats []models.GroupChat
	err := db.
		Joins("JOIN group_chat_members gm ON gm.group_chat_id = group_chats.id").
		Where("gm.user_id = ?", userID).
		Order("group_chats.last_message_at IS NULL, group_chats.last_message_at DESC, group_chats.created_at DESC").
		Find(&chats).Error
	if err != nil {
		return nil, storeError("group_chat.list_for_user", err)
	}
	summaries := make([]GroupChatSummary, 0, len(chats))
	if len(chats) == 0 {
		return summaries, nil
	}

	chatIDs := make([]string, 0, len(chats))
	var lastIDs []string
	for _, chat := range chats {
		chatIDs = append(chatIDs, chat.ID)
		if chat.LastMessageID != nil {
			lastIDs = append(lastIDs, *chat.LastMessageID)
		}
	}

	var memberRows []struct {
		GroupChatID string
		Total       int64
	}
	err = db.Model(&models.GroupChatMember{}).
		Select("group_chat_id, COUNT(*) AS total").
		Where("group_chat_id IN ?", chatIDs).
		Group("group_chat_id").
		Scan(&memberRows).Error
	if err != nil {
		return nil, storeError("group_chat.list_for_user", err)
	}
	memberCounts := make(map[string]int64, len(memberRows))
	for _, row := range memberRows {
		memberCounts[row.GroupChatID] = row.Total
	}

	unread, err := groupUnreadByChat(db, userID, chatIDs)
	if err != nil {
		return nil, storeError("group_chat.list_for_user", err)
	}

	lastMessages := map[string]*models.Message{}
	if len(lastIDs) > 0 {
		var messages []models.Message
		if err := db.Preload("Sender").Where("id IN ?", lastIDs).Find(&messages).Error; err != nil {
			return nil, storeError("group_chat.list_for_user", err)
		}
		for i := range messages {
			lastMessages[messages[i].ID] = &messages[i]
		}
	}

	for _, chat := range chats {
		summary := GroupChatSummary{
			GroupChat:   chat,
			MemberCount: memberCounts[chat.ID],
			UnreadCount: unread[chat.ID],
		}
		if chat.LastMessageID != nil {
			summary.LastMessage = lastMessages[*chat.LastMessageID]
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// groupUnreadByChat counts, per chat, messages newer than the member's
// last_read_at that the member did not send.
func groupUnreadByChat(db *gorm.DB, userID string, chatIDs []string) (map[string]int64, error) {
	query := db.Table("messages").
		Select("messages.group_chat_id AS group_chat_id, COUNT(*) AS total").
		Joins("JOIN group_chat_members gm ON gm.group_chat_id = messages.group_chat_id AND gm.user_id = ?", userID).
		Where("messages.sender_id <> ?", userID).
		Where("messages.is_deleted = ?", false).
		Where("(gm.last_read_at IS NULL OR messages.created_at > gm.last_read_at)")
	if chatIDs != nil {
		query = query.Where("messages.group_chat_id IN ?", chatIDs)
	}

	var rows []struct {
		GroupChatID string
		Total       int64
	}
	if err := query.Group("messages.group_chat_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.GroupChatID] = row.Total
	}
	return counts, nil
}

func (r *groupChatRepository) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GroupChatMember{}).
		Where("group_chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	return count > 0, storeError("group_chat.is_member", err)
}

func (r *groupChatRepository) AddMember(ctx context.Context, chatID, userID string) (bool, error) {
	added, err := addMemberTx(r.db.WithContext(ctx), chatID, userID, models.GroupRoleMember)
	return added, storeError("group_chat.add_member", err)
}

// RemoveMember deletes the membership row. The admin's row is protected by
// the role predicate, so the delete stays a single statement.
func (r *groupChatRepository) RemoveMember(ctx context.Context, chatID, userID string) (bool, error) {
	db := r.db.WithContext(ctx)
	res := db.Where("group_chat_id = ? AND user_id = ? AND role <> ?", chatID, userID, models.GroupRoleAdmin).
		Delete(&models.GroupChatMember{})
	if res.Error != nil {
		return false, storeError("group_chat.remove_member", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var admin int64
	err := db.Model(&models.GroupChatMember{}).
		Where("group_chat_id = ? AND user_id = ? AND role = ?", chatID, userID, models.GroupRoleAdmin).
		Count(&admin).Error
	if err != nil {
		return false, storeError("group_chat.remove_member", err)
	}
	if admin > 0 {
		return false, storeError("group_chat.remove_member", ErrAdminMember)
	}
	return false, nil
}

func (r *groupChatRepository) MemberIDs(ctx context.Context, chatID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&models.GroupChatMember{}).
		Where("group_chat_id = ?", chatID).
		Order("joined_at ASC").
		Pluck("user_id", &ids).Error
	return ids, storeError("group_chat.member_ids", err)
}

func (r *groupChatRepository) MarkRead(ctx context.Context, chatID, userID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.GroupChatMember{}).
		Where("group_chat_id = ? AND user_id = ?", chatID, userID).
		Update("last_read_at", at.UTC())
	if res.Error != nil {
		return storeError("group_chat.mark_read", res.Error)
	}
	if res.RowsAffected == 0 {
		return storeError("group_chat.mark_read", ErrNotFound)
	}
	return nil
}
