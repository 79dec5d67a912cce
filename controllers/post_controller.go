package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/blogsvc/models"
	"github.com/cppla/blogsvc/services"
	"github.com/cppla/blogsvc/utils"
)

// PostController exposes the post endpoints.
type PostController struct {
	posts *services.PostService
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{posts: services.NewPostService(db)}
}

// CreatePost stores a post for the authenticated user.
func (p *PostController) CreatePost(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req services.CreatePostInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	post, err := p.posts.CreatePost(ctx.Request.Context(), actor, req)
	if err != nil {
		respondServiceError(ctx, err, 50020, "failed to create post")
		return
	}

	utils.InvalidateByPrefix(ctx.Request.Context(), utils.PostListCachePrefix)
	utils.Created(ctx, post)
}

// ListPosts returns one filtered, sorted page of posts.
func (p *PostController) ListPosts(ctx *gin.Context) {
	q, ok := parsePostQuery(ctx)
	if !ok {
		return
	}

	cacheKey := utils.PostListCachePrefix + ctx.Request.URL.Query().Encode()
	ttl := utils.CacheTTL()
	if ttl > 0 {
		if b, ok := utils.CacheGetBytes(ctx.Request.Context(), cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
			return
		}
	}

	list, err := p.posts.ListPosts(ctx.Request.Context(), q)
	if err != nil {
		respondServiceError(ctx, err, 50022, "failed to list posts")
		return
	}

	utils.CacheSetJSON(ctx.Request.Context(), cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: list}, ttl)
	utils.Success(ctx, list)
}

// GetPost returns a post with its approved comments and counts the view.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid post id")
		return
	}

	post, err := p.posts.GetPostByID(ctx.Request.Context(), id)
	if err != nil {
		respondServiceError(ctx, err, 50023, "failed to get post")
		return
	}
	utils.Success(ctx, post)
}

// ListMyPosts lists every post of the authenticated user.
func (p *PostController) ListMyPosts(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	res, err := p.posts.ListMyPosts(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50024, "failed to list posts")
		return
	}
	utils.Success(ctx, res)
}

// UpdatePost applies a partial update as the owner or an admin.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid post id")
		return
	}

	var req services.UpdatePostInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	post, err := p.posts.UpdatePost(ctx.Request.Context(), id, actor, req)
	if err != nil {
		respondServiceError(ctx, err, 50025, "failed to update post")
		return
	}

	utils.InvalidateByPrefix(ctx.Request.Context(), utils.PostListCachePrefix)
	utils.Success(ctx, post)
}

// DeletePost removes a post with its comments.
func (p *PostController) DeletePost(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid post id")
		return
	}

	if err := p.posts.DeletePost(ctx.Request.Context(), id, actor); err != nil {
		respondServiceError(ctx, err, 50026, "failed to delete post")
		return
	}

	utils.InvalidateByPrefix(ctx.Request.Context(), utils.PostListCachePrefix)
	utils.Success(ctx, gin.H{"id": id})
}

// parsePostQuery reads the listing filters. It answers 400 itself for malformed values.
func parsePostQuery(ctx *gin.Context) (services.PostQuery, bool) {
	q := services.PostQuery{
		Search:    strings.TrimSpace(ctx.Query("search")),
		Status:    models.PostStatus(strings.ToUpper(strings.TrimSpace(ctx.Query("status")))),
		SortBy:    strings.TrimSpace(ctx.Query("sortBy")),
		SortOrder: strings.TrimSpace(ctx.Query("sortOrder")),
	}
	q.Page, q.Limit = utils.ParsePagination(ctx.Query("page"), ctx.Query("limit"))

	for _, raw := range ctx.QueryArray("tags") {
		q.Tags = append(q.Tags, strings.Split(raw, ",")...)
	}

	if raw := strings.TrimSpace(ctx.Query("isFeatured")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40024, "isFeatured must be true or false")
			return q, false
		}
		q.IsFeatured = &v
	}

	if raw := strings.TrimSpace(ctx.Query("authorId")); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || v == 0 {
			utils.Error(ctx, http.StatusBadRequest, 40025, "invalid authorId")
			return q, false
		}
		q.AuthorID = uint(v)
	}
	return q, true
}
