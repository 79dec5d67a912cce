package controllers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/blogsvc/services"
	"github.com/cppla/blogsvc/utils"
)

// StatsController provides the admin dashboard figures.
type StatsController struct {
	stats *services.StatsService
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{stats: services.NewStatsService(db)}
}

// GetStats returns aggregate statistics over posts, comments and users.
func (s *StatsController) GetStats(ctx *gin.Context) {
	st, err := s.stats.Stats(ctx.Request.Context())
	if err != nil {
		respondServiceError(ctx, err, 50040, "failed to compute stats")
		return
	}
	utils.Success(ctx, st)
}
