package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	MinReviewRating = 1
	MaxReviewRating = 5
)

// Review is a rated write-up; vote counts are recomputed from ReviewVote rows.
type Review struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID        string    `gorm:"type:varchar(36);not null;index" json:"author_id"`
	Author          *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Title           string    `gorm:"not null" json:"title"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	Rating          int       `gorm:"not null" json:"rating"`
	Category        string    `gorm:"index" json:"category"`
	Tags            []string  `gorm:"type:jsonb;serializer:json" json:"tags"`
	HelpfulCount    int       `gorm:"not null" json:"helpful_count"`
	NotHelpfulCount int       `gorm:"not null" json:"not_helpful_count"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ReviewVote is one user's helpfulness vote on a review.
type ReviewVote struct {
	ReviewID  string    `gorm:"primaryKey;type:varchar(36)" json:"review_id"`
	UserID    string    `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	IsHelpful bool      `gorm:"not null" json:"is_helpful"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReviewWithVote is a review plus the viewer's own vote, if any.
type ReviewWithVote struct {
	Review
	UserVote *bool `gorm:"column:user_vote" json:"user_vote"`
}

// ValidRating reports whether rating is within the accepted range.
func ValidRating(rating int) bool {
	return rating >= MinReviewRating && rating <= MaxReviewRating
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	return nil
}
