package repository

import (
	"context"

	"issueInsightsTracker/models"
)

// UserRepositoryI defines operations on User entities.
type UserRepositoryI interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// IssueRepositoryI defines operations on Issue entities.
type IssueRepositoryI interface {
	Create(ctx context.Context, i *models.Issue) (*models.Issue, error)
	GetByID(ctx context.Context, id int64) (*models.Issue, error)
	List(ctx context.Context, f IssueFilter) ([]models.Issue, error)
	Update(ctx context.Context, id int64, p IssuePatch) (*models.Issue, error)
	Delete(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context) (map[models.IssueStatus]int64, error)
}

// DailyStatsRepositoryI defines operations on DailyStats snapshots.
type DailyStatsRepositoryI interface {
	Upsert(ctx context.Context, s *models.DailyStats) error
	GetByDate(ctx context.Context, date string) (*models.DailyStats, error)
	ListRecent(ctx context.Context, limit int) ([]models.DailyStats, error)
}

var (
	_ UserRepositoryI       = (*UserRepository)(nil)
	_ IssueRepositoryI      = (*IssueRepository)(nil)
	_ DailyStatsRepositoryI = (*DailyStatsRepository)(nil)
)
