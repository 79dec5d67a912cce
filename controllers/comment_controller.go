package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/blogsvc/services"
	"github.com/cppla/blogsvc/utils"
)

// CommentController exposes the comment endpoints.
type CommentController struct {
	comments *services.CommentService
}

// NewCommentController creates a new CommentController instance.
func NewCommentController(db *gorm.DB) *CommentController {
	return &CommentController{comments: services.NewCommentService(db)}
}

// CreateComment adds a comment or a reply for the authenticated user.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req services.CreateCommentInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	comment, err := c.comments.CreateComment(ctx.Request.Context(), actor, req)
	if err != nil {
		respondServiceError(ctx, err, 50030, "failed to create comment")
		return
	}

	// listed posts carry comment counts
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.PostListCachePrefix)
	utils.Created(ctx, comment)
}

// GetComment returns a comment with its approved replies.
func (c *CommentController) GetComment(ctx *gin.Context) {
	id, ok := parseID(ctx, "commentId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid comment id")
		return
	}

	comment, err := c.comments.GetComment(ctx.Request.Context(), id)
	if err != nil {
		respondServiceError(ctx, err, 50031, "failed to get comment")
		return
	}
	utils.Success(ctx, comment)
}

// ListByAuthor returns every comment of one user.
func (c *CommentController) ListByAuthor(ctx *gin.Context) {
	authorID, ok := parseID(ctx, "authorId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40032, "invalid author id")
		return
	}

	comments, err := c.comments.ListByAuthor(ctx.Request.Context(), authorID)
	if err != nil {
		respondServiceError(ctx, err, 50032, "failed to list comments")
		return
	}
	utils.Success(ctx, gin.H{"data": comments, "total": len(comments)})
}

// UpdateComment edits or moderates a comment.
func (c *CommentController) UpdateComment(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseID(ctx, "commentId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid comment id")
		return
	}

	var req services.UpdateCommentInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	comment, err := c.comments.UpdateComment(ctx.Request.Context(), id, actor, req)
	if err != nil {
		respondServiceError(ctx, err, 50033, "failed to update comment")
		return
	}
	utils.Success(ctx, comment)
}

// DeleteComment removes a comment and its replies.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseID(ctx, "commentId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid comment id")
		return
	}

	if err := c.comments.DeleteComment(ctx.Request.Context(), id, actor); err != nil {
		respondServiceError(ctx, err, 50034, "failed to delete comment")
		return
	}

	utils.InvalidateByPrefix(ctx.Request.Context(), utils.PostListCachePrefix)
	utils.Success(ctx, gin.H{"id": id})
}
