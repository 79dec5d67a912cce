package models

import (
	"time"

	"gorm.io/gorm"
)

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	CommentApproved CommentStatus = "APPROVED"
	CommentPending  CommentStatus = "PENDING"
	CommentRejected CommentStatus = "REJECTED"
)

// Valid reports whether s is a known moderation state.
func (s CommentStatus) Valid() bool {
	switch s {
	case CommentApproved, CommentPending, CommentRejected:
		return true
	}
	return false
}

// Comment is a reply to a post or, when ParentID is set, to another comment.
type Comment struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Content   string        `gorm:"type:text;not null" json:"content"`
	Status    CommentStatus `gorm:"size:16;not null;default:APPROVED;index" json:"status"`
	PostID    uint          `gorm:"index;not null" json:"post_id"`
	AuthorID  uint          `gorm:"index;not null" json:"author_id"`
	ParentID  *uint         `gorm:"index" json:"parent_id"`
	CreatedAt time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Author    *User         `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Post      *Post         `gorm:"foreignKey:PostID" json:"post,omitempty"`
	Replies   []Comment     `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
}

// BeforeCreate normalises a caller-supplied creation time to UTC.
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if !c.CreatedAt.IsZero() {
		c.CreatedAt = c.CreatedAt.UTC()
	}
	return nil
}
