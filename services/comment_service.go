package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/cppla/blogsvc/models"
	"github.com/cppla/blogsvc/utils"
)

// MaxCommentLength bounds comment content in characters.
const MaxCommentLength = 2000

// CommentService implements comment creation, lookup, moderation and deletion.
type CommentService struct {
	db *gorm.DB
}

// NewCommentService creates a CommentService on the given database handle.
func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{db: db}
}

// CreateCommentInput is the payload of a new comment; ParentID makes it a reply.
type CreateCommentInput struct {
	PostID   uint   `json:"post_id" binding:"required"`
	ParentID *uint  `json:"parent_id"`
	Content  string `json:"content" binding:"required"`
}

// UpdateCommentInput is a partial update. Status is honoured for admins only.
type UpdateCommentInput struct {
	Content *string               `json:"content" binding:"omitempty,min=1"`
	Status  *models.CommentStatus `json:"status" binding:"omitempty,oneof=APPROVED PENDING REJECTED"`
}

// CreateComment attaches a comment to a post, or to a comment of the same post.
func (s *CommentService) CreateComment(ctx context.Context, actor Actor, in CreateCommentInput) (*models.Comment, error) {
	content, err := cleanCommentContent(in.Content)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{
		Content:  content,
		Status:   models.CommentApproved,
		PostID:   in.PostID,
		AuthorID: actor.UserID,
		ParentID: in.ParentID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureActiveUser(tx, actor.UserID); err != nil {
			return err
		}
		var post models.Post
		if err := tx.Select("id").First(&post, in.PostID).Error; err != nil {
			return notFound(err, "post", in.PostID)
		}
		if in.ParentID != nil {
			var parent models.Comment
			if err := tx.Select("id", "post_id").First(&parent, *in.ParentID).Error; err != nil {
				return notFound(err, "parent comment", *in.ParentID)
			}
			if parent.PostID != in.PostID {
				return invalidf("parent comment %d belongs to another post", parent.ID)
			}
		}
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Preload("Author", authorColumns).First(&comment, comment.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetComment returns one comment with its author, post summary and approved replies.
func (s *CommentService) GetComment(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).
		Preload("Author", authorColumns).
		Preload("Post", postSummaryColumns).
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", models.CommentApproved).Order("created_at ASC").Order("id ASC")
		}).
		Preload("Replies.Author", authorColumns).
		First(&comment, id).Error
	if err != nil {
		return nil, notFound(err, "comment", id)
	}
	return &comment, nil
}

// ListByAuthor returns every comment written by authorID, newest first.
func (s *CommentService) ListByAuthor(ctx context.Context, authorID uint) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.db.WithContext(ctx).
		Preload("Post", postSummaryColumns).
		Where("author_id = ?", authorID).
		Order("created_at DESC").Order("id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments of user %d: %w", authorID, err)
	}
	return comments, nil
}

// UpdateComment edits a comment for its owner or an admin. A non-admin's
// status change is dropped, not rejected.
func (s *CommentService) UpdateComment(ctx context.Context, id uint, actor Actor, in UpdateCommentInput) (*models.Comment, error) {
	if !actor.IsAdmin() {
		in.Status = nil
	}

	var updated models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.First(&comment, id).Error; err != nil {
			return notFound(err, "comment", id)
		}
		if !actor.CanModify(comment.AuthorID) {
			return fmt.Errorf("update comment %d: %w", id, ErrForbidden)
		}
		updates, err := in.columns()
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(&comment).Updates(updates).Error; err != nil {
				return err
			}
		}
		return tx.Preload("Author", authorColumns).First(&updated, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (in UpdateCommentInput) columns() (map[string]interface{}, error) {
	updates := map[string]interface{}{}
	if in.Content != nil {
		content, err := cleanCommentContent(*in.Content)
		if err != nil {
			return nil, err
		}
		updates["content"] = content
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, invalidf("unknown comment status %q", *in.Status)
		}
		updates["status"] = *in.Status
	}
	return updates, nil
}

// DeleteComment removes a comment and every reply beneath it.
func (s *CommentService) DeleteComment(ctx context.Context, id uint, actor Actor) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.Select("id", "author_id").First(&comment, id).Error; err != nil {
			return notFound(err, "comment", id)
		}
		if !actor.CanModify(comment.AuthorID) {
			return fmt.Errorf("delete comment %d: %w", id, ErrForbidden)
		}

		ids := []uint{id}
		frontier := []uint{id}
		for len(frontier) > 0 {
			var children []uint
			if err := tx.Model(&models.Comment{}).Where("parent_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
				return err
			}
			ids = append(ids, children...)
			frontier = children
		}
		return tx.Delete(&models.Comment{}, ids).Error
	})
}

func cleanCommentContent(raw string) (string, error) {
	content := strings.TrimSpace(utils.Sanitize(raw))
	if content == "" {
		return "", invalidf("content cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return "", invalidf("content exceeds %d characters", MaxCommentLength)
	}
	return content, nil
}

func postSummaryColumns(db *gorm.DB) *gorm.DB {
	return db.Select("id", "title", "status", "author_id")
}
