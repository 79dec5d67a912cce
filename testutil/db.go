// Package testutil provides an in-memory database and seed helpers for tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cppla/blogsvc/config"
	"github.com/cppla/blogsvc/models"
)

// NewDB opens a private in-memory sqlite database with every model migrated.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(config.AppConfig{
		DBDriver:    "sqlite",
		DatabaseURI: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		LogLevel:    "silent",
	}, models.All()...)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts an account with the given role and status.
func CreateUser(t testing.TB, db *gorm.DB, username string, role models.Role, status models.UserStatus) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Role: role, Status: status}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// PostSeed describes a post to insert directly, bypassing the service layer.
type PostSeed struct {
	Title      string
	Content    string
	Tags       []string
	Status     models.PostStatus
	IsFeatured bool
	Views      int64
	CreatedAt  time.Time
}

// CreatePost inserts a post for author.
func CreatePost(t testing.TB, db *gorm.DB, author *models.User, seed PostSeed) *models.Post {
	t.Helper()
	if seed.Status == "" {
		seed.Status = models.PostPublished
	}
	if seed.Content == "" {
		seed.Content = "content of " + seed.Title
	}
	p := &models.Post{
		Title:      seed.Title,
		Content:    seed.Content,
		Status:     seed.Status,
		IsFeatured: seed.IsFeatured,
		Views:      seed.Views,
		AuthorID:   author.ID,
		CreatedAt:  seed.CreatedAt,
		TagLinks:   models.NewTagLinks(0, seed.Tags),
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create post %s: %v", seed.Title, err)
	}
	return p
}

// CreateComment inserts a comment, optionally as a reply to parent.
func CreateComment(t testing.TB, db *gorm.DB, post *models.Post, author *models.User, parent *models.Comment, content string, status models.CommentStatus, createdAt time.Time) *models.Comment {
	t.Helper()
	c := &models.Comment{
		Content:   content,
		Status:    status,
		PostID:    post.ID,
		AuthorID:  author.ID,
		CreatedAt: createdAt,
	}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create comment %q: %v", content, err)
	}
	return c
}
