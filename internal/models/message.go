package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	MessageTypeDirect = "direct"
	MessageTypeGroup  = "group"

	GroupRoleAdmin  = "admin"
	GroupRoleMember = "member"
)

// Message is either direct (RecipientID and ConversationID set) or group
// (GroupChatID set), never both.
type Message struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SenderID       string    `gorm:"type:varchar(36);not null;index" json:"sender_id"`
	Sender         *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	RecipientID    *string   `gorm:"type:varchar(36);index:idx_messages_recipient_unread" json:"recipient_id,omitempty"`
	ConversationID *string   `gorm:"type:varchar(36);index" json:"conversation_id,omitempty"`
	GroupChatID    *string   `gorm:"type:varchar(36);index" json:"group_chat_id,omitempty"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	MessageType    string    `gorm:"size:16;not null" json:"message_type"`
	IsRead         bool      `gorm:"not null;index:idx_messages_recipient_unread" json:"is_read"`
	IsDeleted      bool      `gorm:"not null" json:"is_deleted"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// DirectConversation is identified by its ordered participant pair.
type DirectConversation struct {
	ID            string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserAID       string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_direct_conversations_pair" json:"user_a_id"`
	UserBID       string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_direct_conversations_pair;index" json:"user_b_id"`
	LastMessageID *string    `gorm:"type:varchar(36)" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// OrderedPair returns the two user ids in the canonical conversation order.
func OrderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// Participant reports whether userID is one of the two participants.
func (c *DirectConversation) Participant(userID string) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// Other returns the participant that is not userID.
func (c *DirectConversation) Other(userID string) string {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// GroupChat is a many-member thread, usually attached to a post.
type GroupChat struct {
	ID            string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name          string            `gorm:"not null" json:"name"`
	PostID        *string           `gorm:"type:varchar(36);uniqueIndex" json:"post_id,omitempty"`
	AdminID       string            `gorm:"type:varchar(36);not null;index" json:"admin_id"`
	LastMessageID *string           `gorm:"type:varchar(36)" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time        `json:"last_message_at,omitempty"`
	Members       []GroupChatMember `gorm:"foreignKey:GroupChatID" json:"members,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// GroupChatMember is one row per (chat, user); the admin always has a row.
type GroupChatMember struct {
	GroupChatID string     `gorm:"primaryKey;type:varchar(36)" json:"group_chat_id"`
	UserID      string     `gorm:"primaryKey;type:varchar(36);index" json:"user_id"`
	User        *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role        string     `gorm:"size:16;not null" json:"role"`
	LastReadAt  *time.Time `json:"last_read_at,omitempty"`
	JoinedAt    time.Time  `gorm:"autoCreateTime" json:"joined_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateUUID()
	}
	return nil
}

func (c *DirectConversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	return nil
}

func (g *GroupChat) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = generateUUID()
	}
	return nil
}
