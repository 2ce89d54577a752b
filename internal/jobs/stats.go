package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"issueInsightsTracker/models"
)

// StatusCounter counts all issues by status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[models.IssueStatus]int64, error)
}

// StatsWriter stores one snapshot per day.
type StatsWriter interface {
	Upsert(ctx context.Context, s *models.DailyStats) error
}

// StatsJob snapshots today's issue counts into daily_stats. Running it
// several times a day overwrites that day's row.
type StatsJob struct {
	Issues StatusCounter
	Stats  StatsWriter
	Log    *zap.Logger
	Now    func() time.Time
}

// Run computes and stores the snapshot for the current UTC day.
func (j *StatsJob) Run(ctx context.Context) (*models.DailyStats, error) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	counts, err := j.Issues.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	s := &models.DailyStats{
		Date:            now().UTC().Format(models.DayLayout),
		OpenCount:       counts[models.IssueStatusOpen],
		TriagedCount:    counts[models.IssueStatusTriaged],
		InProgressCount: counts[models.IssueStatusInProgress],
		DoneCount:       counts[models.IssueStatusDone],
	}
	if err := j.Stats.Upsert(ctx, s); err != nil {
		return nil, err
	}
	if j.Log != nil {
		j.Log.Info("daily stats updated",
			zap.String("date", s.Date),
			zap.Int64("open", s.OpenCount),
			zap.Int64("triaged", s.TriagedCount),
			zap.Int64("in_progress", s.InProgressCount),
			zap.Int64("done", s.DoneCount))
	}
	return s, nil
}

// Job adapts Run to the scheduler.
func (j *StatsJob) Job(ctx context.Context) error {
	_, err := j.Run(ctx)
	return err
}
