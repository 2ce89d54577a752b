package repository

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"issueInsightsTracker/models"
)

// DailyStatsRepository stores per-day issue count snapshots.
type DailyStatsRepository struct {
	db *gorm.DB
}

func NewDailyStatsRepository(db *gorm.DB) *DailyStatsRepository {
	return &DailyStatsRepository{db: db}
}

// Upsert inserts the snapshot for s.Date or overwrites the counts of the
// existing one. created_at of an existing row is kept.
func (r *DailyStatsRepository) Upsert(ctx context.Context, s *models.DailyStats) error {
	if s == nil || s.Date == "" {
		return errors.New("daily stats date is required")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"open_count", "triaged_count", "in_progress_count", "done_count"}),
	}).Create(s).Error
	return pkgerrors.Wrapf(err, "upsert daily stats %s", s.Date)
}

func (r *DailyStatsRepository) GetByDate(ctx context.Context, date string) (*models.DailyStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s models.DailyStats
	err := r.db.WithContext(ctx).Where("date = ?", date).Take(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrapf(err, "get daily stats %s", date)
	}
	return &s, nil
}

// ListRecent returns up to limit snapshots, newest date first.
func (r *DailyStatsRepository) ListRecent(ctx context.Context, limit int) ([]models.DailyStats, error) {
	if limit <= 0 {
		limit = 30
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := []models.DailyStats{}
	if err := r.db.WithContext(ctx).Order("date DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list daily stats")
	}
	return out, nil
}

// Count returns the number of stored snapshots.
func (r *DailyStatsRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.DailyStats{}).Count(&n).Error
	return n, err
}
