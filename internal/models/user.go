package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a Sports Social account. Users are never hard-deleted.
// Its JSON form is safe to show other users; the owner sees Account.
type User struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username     string     `gorm:"uniqueIndex;not null;size:30" json:"username"`
	Email        string     `gorm:"uniqueIndex;not null" json:"-"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Bio          string     `gorm:"type:text" json:"bio"`
	Sports       []string   `gorm:"type:jsonb;serializer:json" json:"sports"`
	Tags         []string   `gorm:"type:jsonb;serializer:json" json:"tags"`
	AvatarURL    string     `json:"avatar_url"`
	IsOnline     bool       `gorm:"not null" json:"is_online"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`
	IsAdmin      bool       `gorm:"not null" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Account is a user as seen by its owner.
type Account struct {
	*User
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Account adds the owner-only fields back.
func (u *User) Account() Account {
	return Account{User: u, Email: u.Email, IsAdmin: u.IsAdmin}
}

// PublicUser is the trimmed user shape embedded in other responses.
type PublicUser struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	AvatarURL string     `json:"avatar_url"`
	IsOnline  bool       `json:"is_online"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// Public returns the subset of fields safe to show to other users.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		IsOnline:  u.IsOnline,
		LastSeen:  u.LastSeen,
	}
}

// UserFollower is a directed follow edge. Self-follows are rejected before insert.
type UserFollower struct {
	FollowerID  string    `gorm:"primaryKey;type:varchar(36)" json:"follower_id"`
	FollowingID string    `gorm:"primaryKey;type:varchar(36);index" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = generateUUID()
	}
	return nil
}

func generateUUID() string {
	return uuid.New().String()
}
