package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostDraft     PostStatus = "DRAFT"
	PostPublished PostStatus = "PUBLISHED"
	PostArchived  PostStatus = "ARCHIVED"
)

// Valid reports whether s is one of the known post states.
func (s PostStatus) Valid() bool {
	switch s {
	case PostDraft, PostPublished, PostArchived:
		return true
	}
	return false
}

// MaxTagLength bounds a single tag.
const MaxTagLength = 64

// Post represents a blog post written by a user.
type Post struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Title        string     `gorm:"size:255;not null" json:"title"`
	Content      string     `gorm:"type:text;not null" json:"content"`
	Status       PostStatus `gorm:"size:16;not null;default:DRAFT;index" json:"status"`
	IsFeatured   bool       `gorm:"not null;default:false;index" json:"is_featured"`
	Views        int64      `gorm:"not null;default:0" json:"views"`
	AuthorID     uint       `gorm:"index;not null" json:"author_id"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Author       *User      `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	TagLinks     []PostTag  `gorm:"foreignKey:PostID" json:"-"`
	Comments     []Comment  `gorm:"foreignKey:PostID" json:"comments,omitempty"`
	CommentCount int64      `gorm:"->;-:migration" json:"comment_count"`

	// Tags mirrors TagLinks; it is filled after every query that preloads them.
	Tags []string `gorm:"-" json:"tags"`
}

// PostTag is one tag of a post. A post's tag set is the set of its rows.
type PostTag struct {
	ID     uint   `gorm:"primaryKey" json:"-"`
	PostID uint   `gorm:"index:idx_post_tag,unique;not null" json:"-"`
	Tag    string `gorm:"size:64;index;index:idx_post_tag,unique;not null" json:"tag"`
}

// BeforeCreate normalises a caller-supplied creation time to UTC.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if !p.CreatedAt.IsZero() {
		p.CreatedAt = p.CreatedAt.UTC()
	}
	return nil
}

// AfterFind exposes the preloaded tag rows as a plain string slice.
func (p *Post) AfterFind(tx *gorm.DB) error {
	p.Tags = make([]string, 0, len(p.TagLinks))
	for _, t := range p.TagLinks {
		p.Tags = append(p.Tags, t.Tag)
	}
	return nil
}

// NewTagLinks builds tag rows for a post from raw tag input.
func NewTagLinks(postID uint, tags []string) []PostTag {
	norm := NormalizeTags(tags)
	links := make([]PostTag, 0, len(norm))
	for _, t := range norm {
		links = append(links, PostTag{PostID: postID, Tag: t})
	}
	return links
}

// NormalizeTags trims, drops empties and duplicates, and truncates overlong tags.
// Input order is preserved.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if r := []rune(t); len(r) > MaxTagLength {
			t = string(r[:MaxTagLength])
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
