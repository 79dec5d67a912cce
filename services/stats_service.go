package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/blogsvc/models"
	"github.com/cppla/blogsvc/utils"
)

// Stats is the dashboard rollup over posts, comments and users.
type Stats struct {
	TotalPosts       int64 `json:"total_posts"`
	PublishedPosts   int64 `json:"published_posts"`
	DraftPosts       int64 `json:"draft_posts"`
	ArchivedPosts    int64 `json:"archived_posts"`
	TotalComments    int64 `json:"total_comments"`
	ApprovedComments int64 `json:"approved_comments"`
	TotalUsers       int64 `json:"total_users"`
	AdminCount       int64 `json:"admin_count"`
	UserCount        int64 `json:"user_count"`
	TotalViews       int64 `json:"total_views"`
	TodayPosts       int64 `json:"today_posts"`
}

// StatsService computes aggregate statistics.
type StatsService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStatsService creates a StatsService on the given database handle.
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db, now: time.Now}
}

// Stats reads every figure inside one transaction so they share a snapshot.
// "Today" is the server's local calendar day.
func (s *StatsService) Stats(ctx context.Context) (*Stats, error) {
	start, end := utils.DayBounds(s.now().In(time.Local))

	var st Stats
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counts := []struct {
			dst   *int64
			model interface{}
			where string
			args  []interface{}
		}{
			{&st.TotalPosts, &models.Post{}, "", nil},
			{&st.PublishedPosts, &models.Post{}, "status = ?", []interface{}{models.PostPublished}},
			{&st.DraftPosts, &models.Post{}, "status = ?", []interface{}{models.PostDraft}},
			{&st.ArchivedPosts, &models.Post{}, "status = ?", []interface{}{models.PostArchived}},
			{&st.TotalComments, &models.Comment{}, "", nil},
			{&st.ApprovedComments, &models.Comment{}, "status = ?", []interface{}{models.CommentApproved}},
			{&st.TotalUsers, &models.User{}, "", nil},
			{&st.AdminCount, &models.User{}, "role = ?", []interface{}{models.RoleAdmin}},
			{&st.UserCount, &models.User{}, "role = ?", []interface{}{models.RoleUser}},
			{&st.TodayPosts, &models.Post{}, "created_at BETWEEN ? AND ?", []interface{}{start.UTC(), end.UTC()}},
		}
		for _, c := range counts {
			q := tx.Model(c.model)
			if c.where != "" {
				q = q.Where(c.where, c.args...)
			}
			if err := q.Count(c.dst).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Post{}).Select("COALESCE(SUM(views), 0)").Scan(&st.TotalViews).Error
	})
	if err != nil {
		return nil, fmt.Errorf("compute stats: %w", err)
	}
	return &st, nil
}
