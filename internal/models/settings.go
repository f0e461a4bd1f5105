package models

import "time"

const (
	VisibilityPublic    = "public"
	VisibilityFollowers = "followers"
	VisibilityPrivate   = "private"

	DefaultMaxDistanceKm = 25.0
)

// UserSettings holds account-level toggles.
type UserSettings struct {
	UserID             string    `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	ProfileVisibility  string    `gorm:"size:16;not null" json:"profile_visibility"`
	ShowOnlineStatus   bool      `gorm:"not null" json:"show_online_status"`
	EmailNotifications bool      `gorm:"not null" json:"email_notifications"`
	PushNotifications  bool      `gorm:"not null" json:"push_notifications"`
	Language           string    `gorm:"size:8;not null" json:"language"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// UserPreferences holds notification toggles and discovery preferences.
type UserPreferences struct {
	UserID                  string    `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	NotificationMessages    bool      `gorm:"not null" json:"notification_messages"`
	NotificationFollows     bool      `gorm:"not null" json:"notification_follows"`
	NotificationInterests   bool      `gorm:"not null" json:"notification_interests"`
	NotificationNearbyPosts bool      `gorm:"not null" json:"notification_nearby_posts"`
	NotificationReviews     bool      `gorm:"not null" json:"notification_reviews"`
	PreferredSports         []string  `gorm:"type:jsonb;serializer:json" json:"preferred_sports"`
	Latitude                *float64  `json:"latitude,omitempty"`
	Longitude               *float64  `json:"longitude,omitempty"`
	MaxDistanceKm           float64   `gorm:"not null" json:"max_distance_km"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// DefaultSettings returns the settings a new account starts with.
func DefaultSettings(userID string) UserSettings {
	return UserSettings{
		UserID:             userID,
		ProfileVisibility:  VisibilityPublic,
		ShowOnlineStatus:   true,
		EmailNotifications: true,
		PushNotifications:  true,
		Language:           "en",
	}
}

// DefaultPreferences returns preferences with every notification enabled.
func DefaultPreferences(userID string) UserPreferences {
	return UserPreferences{
		UserID:                  userID,
		NotificationMessages:    true,
		NotificationFollows:     true,
		NotificationInterests:   true,
		NotificationNearbyPosts: true,
		NotificationReviews:     true,
		PreferredSports:         []string{},
		MaxDistanceKm:           DefaultMaxDistanceKm,
	}
}
