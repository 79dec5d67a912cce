package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/blogsvc/models"
	"github.com/cppla/blogsvc/utils"
)

// sortColumns is the allow-list of sortable fields, keyed by the accepted query names.
var sortColumns = map[string]string{
	"createdAt":  "created_at",
	"created_at": "created_at",
	"updatedAt":  "updated_at",
	"updated_at": "updated_at",
	"title":      "title",
	"views":      "views",
}

// PostService implements the post query and mutation layer.
type PostService struct {
	db *gorm.DB
}

// NewPostService creates a PostService on the given database handle.
func NewPostService(db *gorm.DB) *PostService {
	return &PostService{db: db}
}

// CreatePostInput is the payload for a new post. The author is never part of it.
type CreatePostInput struct {
	Title      string            `json:"title" binding:"required,min=1,max=255"`
	Content    string            `json:"content" binding:"required"`
	Tags       []string          `json:"tags"`
	Status     models.PostStatus `json:"status" binding:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	IsFeatured bool              `json:"is_featured"`
}

// UpdatePostInput is a partial update; nil fields are left untouched.
type UpdatePostInput struct {
	Title      *string            `json:"title" binding:"omitempty,min=1,max=255"`
	Content    *string            `json:"content" binding:"omitempty,min=1"`
	Tags       *[]string          `json:"tags"`
	Status     *models.PostStatus `json:"status" binding:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	IsFeatured *bool              `json:"is_featured"`
}

// PostQuery holds the optional filters, pagination and sort of a listing.
type PostQuery struct {
	Search     string
	Tags       []string
	IsFeatured *bool
	Status     models.PostStatus
	AuthorID   uint
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
}

// PostList is one page of posts plus pagination metadata.
type PostList struct {
	Data       []models.Post    `json:"data"`
	Pagination utils.Pagination `json:"pagination"`
}

// AuthorPosts is every post of one author with the author's post total.
type AuthorPosts struct {
	Data  []models.Post `json:"data"`
	Total int64         `json:"total"`
}

// CreatePost stores a new post owned by the caller. Only admins may feature a post.
func (s *PostService) CreatePost(ctx context.Context, actor Actor, in CreatePostInput) (*models.Post, error) {
	title := utils.SanitizeLine(in.Title)
	if title == "" {
		return nil, invalidf("title cannot be empty")
	}
	content := utils.Sanitize(in.Content)
	if strings.TrimSpace(content) == "" {
		return nil, invalidf("content cannot be empty")
	}
	status := in.Status
	if status == "" {
		status = models.PostDraft
	}
	if !status.Valid() {
		return nil, invalidf("unknown post status %q", status)
	}

	post := models.Post{
		Title:      title,
		Content:    content,
		Status:     status,
		IsFeatured: in.IsFeatured && actor.IsAdmin(),
		AuthorID:   actor.UserID,
		TagLinks:   models.NewTagLinks(0, in.Tags),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureActiveUser(tx, actor.UserID); err != nil {
			return err
		}
		return tx.Create(&post).Error
	})
	if err != nil {
		return nil, err
	}
	post.Tags = models.NormalizeTags(in.Tags)
	return &post, nil
}

// ListPosts returns the page of posts matching every active filter. The count and
// the page are read in one transaction so total and data agree.
func (s *PostService) ListPosts(ctx context.Context, q PostQuery) (*PostList, error) {
	orders, err := q.orderBy()
	if err != nil {
		return nil, err
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, invalidf("unknown post status %q", q.Status)
	}
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > utils.MaxPageSize {
		limit = utils.DefaultPageSize
	}

	posts := []models.Post{}
	var total int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).Scopes(q.filters).Count(&total).Error; err != nil {
			return err
		}
		query := tx.Scopes(q.filters, withCommentCount, withListAssociations)
		for _, o := range orders {
			query = query.Order(o)
		}
		return query.Offset(utils.Skip(page, limit)).Limit(limit).Find(&posts).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return &PostList{Data: posts, Pagination: utils.NewPagination(total, page, limit)}, nil
}

// GetPostByID counts a view and returns the post with its approved comment tree.
// The increment and the read share one transaction, so the returned view count
// includes this visit.
func (s *PostService) GetPostByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", id).UpdateColumn("views", gorm.Expr("views + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Scopes(withListAssociations, withCommentTree).First(&post, id).Error; err != nil {
			return err
		}
		return tx.Model(&models.Comment{}).Where("post_id = ?", id).Count(&post.CommentCount).Error
	})
	if err != nil {
		return nil, notFound(err, "post", id)
	}
	return &post, nil
}

// ListMyPosts returns all posts of an active author, newest first.
func (s *PostService) ListMyPosts(ctx context.Context, authorID uint) (*AuthorPosts, error) {
	out := &AuthorPosts{Data: []models.Post{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id", "status").First(&user, authorID).Error; err != nil {
			return notFound(err, "user", authorID)
		}
		if user.Status != models.UserActive {
			return fmt.Errorf("user %d is %s: %w", authorID, strings.ToLower(string(user.Status)), ErrNotFound)
		}
		if err := tx.Scopes(withCommentCount, withTags).
			Where("posts.author_id = ?", authorID).
			Order("posts.created_at DESC").Order("posts.id DESC").
			Find(&out.Data).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("author_id = ?", authorID).Count(&out.Total).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePost applies a partial update on behalf of the owner or an admin.
// A non-admin's IsFeatured change is dropped, not rejected.
func (s *PostService) UpdatePost(ctx context.Context, id uint, actor Actor, in UpdatePostInput) (*models.Post, error) {
	if !actor.IsAdmin() {
		in.IsFeatured = nil
	}

	var updated models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.First(&post, id).Error; err != nil {
			return notFound(err, "post", id)
		}
		if !actor.CanModify(post.AuthorID) {
			return fmt.Errorf("update post %d: %w", id, ErrForbidden)
		}
		updates, err := in.columns()
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(&post).Updates(updates).Error; err != nil {
				return err
			}
		}
		if in.Tags != nil {
			if err := replaceTags(tx, id, *in.Tags); err != nil {
				return err
			}
		}
		return tx.Scopes(withCommentCount, withListAssociations).First(&updated, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// columns validates the set fields and returns them as column updates.
func (in UpdatePostInput) columns() (map[string]interface{}, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		title := utils.SanitizeLine(*in.Title)
		if title == "" {
			return nil, invalidf("title cannot be empty")
		}
		updates["title"] = title
	}
	if in.Content != nil {
		content := utils.Sanitize(*in.Content)
		if strings.TrimSpace(content) == "" {
			return nil, invalidf("content cannot be empty")
		}
		updates["content"] = content
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, invalidf("unknown post status %q", *in.Status)
		}
		updates["status"] = *in.Status
	}
	if in.IsFeatured != nil {
		updates["is_featured"] = *in.IsFeatured
	}
	return updates, nil
}

// DeletePost hard-deletes a post with its tags and comments.
func (s *PostService) DeletePost(ctx context.Context, id uint, actor Actor) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id", "author_id").First(&post, id).Error; err != nil {
			return notFound(err, "post", id)
		}
		if !actor.CanModify(post.AuthorID) {
			return fmt.Errorf("delete post %d: %w", id, ErrForbidden)
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.PostTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
}

// filters appends one AND clause per active filter.
func (q PostQuery) filters(db *gorm.DB) *gorm.DB {
	if search := strings.TrimSpace(q.Search); search != "" {
		// both sides go through the database's LOWER so they fold identically
		pattern := "%" + escapeLike(search) + "%"
		db = db.Where(
			"(LOWER(posts.title) LIKE LOWER(?) ESCAPE '!' OR posts.content LIKE ? ESCAPE '!' OR EXISTS (SELECT 1 FROM post_tags WHERE post_tags.post_id = posts.id AND post_tags.tag = ?))",
			pattern, pattern, search,
		)
	}
	for _, tag := range models.NormalizeTags(q.Tags) {
		db = db.Where("EXISTS (SELECT 1 FROM post_tags WHERE post_tags.post_id = posts.id AND post_tags.tag = ?)", tag)
	}
	if q.IsFeatured != nil {
		db = db.Where("posts.is_featured = ?", *q.IsFeatured)
	}
	if q.Status != "" {
		db = db.Where("posts.status = ?", q.Status)
	}
	if q.AuthorID != 0 {
		db = db.Where("posts.author_id = ?", q.AuthorID)
	}
	return db
}

// likeEscaper makes a search term match literally under LIKE ... ESCAPE '!'.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

// orderBy resolves the sort against the allow-list; ties are broken by id.
func (q PostQuery) orderBy() ([]clause.OrderByColumn, error) {
	field := q.SortBy
	if field == "" {
		field = "createdAt"
	}
	column, ok := sortColumns[field]
	if !ok {
		return nil, invalidf("cannot sort by %q", q.SortBy)
	}

	var desc bool
	switch strings.ToLower(q.SortOrder) {
	case "", "desc":
		desc = true
	case "asc":
	default:
		return nil, invalidf("sort order must be asc or desc, got %q", q.SortOrder)
	}
	return []clause.OrderByColumn{
		{Column: clause.Column{Table: "posts", Name: column}, Desc: desc},
		{Column: clause.Column{Table: "posts", Name: "id"}, Desc: desc},
	}, nil
}

func replaceTags(tx *gorm.DB, postID uint, tags []string) error {
	if err := tx.Where("post_id = ?", postID).Delete(&models.PostTag{}).Error; err != nil {
		return err
	}
	links := models.NewTagLinks(postID, tags)
	if len(links) == 0 {
		return nil
	}
	return tx.Create(&links).Error
}

// ensureActiveUser rejects writes from missing or blocked accounts.
func ensureActiveUser(tx *gorm.DB, userID uint) error {
	var user models.User
	if err := tx.Select("id", "status").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %d: %w", userID, ErrForbidden)
		}
		return err
	}
	if user.Status != models.UserActive {
		return fmt.Errorf("user %d is %s: %w", userID, strings.ToLower(string(user.Status)), ErrForbidden)
	}
	return nil
}

func withCommentCount(db *gorm.DB) *gorm.DB {
	return db.Select("posts.*, (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count")
}

func withTags(db *gorm.DB) *gorm.DB {
	return db.Preload("TagLinks", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

func withListAssociations(db *gorm.DB) *gorm.DB {
	return withTags(db).Preload("Author", authorColumns)
}

// withCommentTree preloads approved comments three levels deep: top level newest
// first, replies oldest first.
func withCommentTree(db *gorm.DB) *gorm.DB {
	topLevel := func(db *gorm.DB) *gorm.DB {
		return db.Where("parent_id IS NULL AND status = ?", models.CommentApproved).Order("created_at DESC").Order("id DESC")
	}
	replies := func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", models.CommentApproved).Order("created_at ASC").Order("id ASC")
	}
	return db.
		Preload("Comments", topLevel).
		Preload("Comments.Author", authorColumns).
		Preload("Comments.Replies", replies).
		Preload("Comments.Replies.Author", authorColumns).
		Preload("Comments.Replies.Replies", replies).
		Preload("Comments.Replies.Replies.Author", authorColumns)
}

// authorColumns keeps private user fields out of embedded authors.
func authorColumns(db *gorm.DB) *gorm.DB {
	return db.Select("id", "username", "role", "status", "created_at")
}
