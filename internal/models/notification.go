package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification types
const (
	NotificationTypeFollow            = "follow"
	NotificationTypeInterest          = "interest"
	NotificationTypeNearbyPost        = "nearby_post"
	NotificationTypeMessage           = "message"
	NotificationTypeGroupMessage      = "group_message"
	NotificationTypeReview            = "review"
	NotificationTypeEventRegistration = "event_registration"
	NotificationTypeSystem            = "system"
)

// Notification is an inbox entry for a single user.
type Notification struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string         `gorm:"type:varchar(36);not null;index:idx_notifications_user_read" json:"user_id"`
	Type      string         `gorm:"size:32;not null" json:"type"`
	Title     string         `gorm:"not null" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	Data      map[string]any `gorm:"type:jsonb;serializer:json" json:"data"`
	IsRead    bool           `gorm:"not null;index:idx_notifications_user_read" json:"is_read"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = generateUUID()
	}
	return nil
}
