package models

import (
	"time"

	"gorm.io/gorm"
)

// Post organizes a meetup for a sport at a location.
// Latitude and Longitude are always set; a post without a location is rejected.
type Post struct {
	ID            string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID      string     `gorm:"type:varchar(36);not null;index" json:"author_id"`
	Author        *User      `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Sport         string     `gorm:"not null;index" json:"sport"`
	Heading       string     `gorm:"not null" json:"heading"`
	Description   string     `gorm:"type:text" json:"description"`
	Tags          []string   `gorm:"type:jsonb;serializer:json" json:"tags"`
	Latitude      float64    `gorm:"not null" json:"latitude"`
	Longitude     float64    `gorm:"not null" json:"longitude"`
	LocationName  string     `json:"location_name"`
	EventTime     *time.Time `json:"event_time,omitempty"`
	PlayersNeeded int        `gorm:"not null" json:"players_needed"`
	IsActive      bool       `gorm:"not null;index" json:"is_active"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PostWithDistance decorates a post with its distance from a query point.
type PostWithDistance struct {
	Post
	DistanceKm float64 `json:"distance_km"`
}

// PostInterest records that a user wants to join a post's meetup.
type PostInterest struct {
	PostID    string    `gorm:"primaryKey;type:varchar(36)" json:"post_id"`
	UserID    string    `gorm:"primaryKey;type:varchar(36);index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRegistration captures contact details for attending a post's event.
type EventRegistration struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PostID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_event_registrations_post_user" json:"post_id"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_event_registrations_post_user;index" json:"user_id"`
	FullName  string    `gorm:"not null" json:"full_name"`
	Email     string    `gorm:"not null" json:"email"`
	Phone     string    `json:"phone"`
	Notes     string    `gorm:"type:text" json:"notes"`
	Status    string    `gorm:"not null;size:16" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	RegistrationStatusRegistered = "registered"
	RegistrationStatusCancelled  = "cancelled"
)

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

func (r *EventRegistration) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	if r.Status == "" {
		r.Status = RegistrationStatusRegistered
	}
	return nil
}
