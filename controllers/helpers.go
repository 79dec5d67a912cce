package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/blogsvc/middleware"
	"github.com/cppla/blogsvc/models"
	"github.com/cppla/blogsvc/services"
	"github.com/cppla/blogsvc/utils"
)

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

// currentActor builds the service-level caller from the authenticated context.
func currentActor(ctx *gin.Context) (services.Actor, bool) {
	userID, ok := getUserID(ctx)
	if !ok || userID == 0 {
		return services.Actor{}, false
	}
	role, _ := ctx.Get(middleware.ContextRoleKey)
	r, _ := role.(models.Role)
	return services.Actor{UserID: userID, Role: r}, true
}

// parseID reads a positive numeric path parameter.
func parseID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// respondServiceError maps service sentinels onto HTTP statuses; anything else is a logged 500.
func respondServiceError(ctx *gin.Context, err error, internalCode int, internalMsg string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, err.Error())
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40302, err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		utils.Error(ctx, http.StatusBadRequest, 40010, err.Error())
	default:
		utils.Logger.Error(internalMsg,
			zap.Error(err),
			zap.String("path", ctx.Request.URL.Path),
			zap.String("request_id", ctx.GetString(utils.RequestIDKey)),
		)
		utils.Error(ctx, http.StatusInternalServerError, internalCode, internalMsg)
	}
}
