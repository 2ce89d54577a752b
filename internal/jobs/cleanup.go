package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"issueInsightsTracker/internal/storage"
)

// DefaultFileMaxAge is how long attachments are kept.
const DefaultFileMaxAge = 30 * 24 * time.Hour

// CleanupJob deletes attachments older than MaxAge. Issue rows that point at
// a deleted file are left as they are.
type CleanupJob struct {
	Store  storage.Store
	MaxAge time.Duration
	Log    *zap.Logger
	Now    func() time.Time
}

// Run returns the names of the deleted objects. Failing to delete one file
// is logged and does not stop the sweep.
func (j *CleanupJob) Run(ctx context.Context) ([]string, error) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	maxAge := j.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultFileMaxAge
	}
	log := j.Log
	if log == nil {
		log = zap.NewNop()
	}

	objs, err := j.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := now().Add(-maxAge)
	deleted := []string{}
	for _, o := range objs {
		if !o.ModTime.Before(cutoff) {
			continue
		}
		if err := j.Store.Remove(ctx, o.Name); err != nil {
			log.Error("delete old file", zap.String("file", o.Name), zap.Error(err))
			continue
		}
		log.Info("deleted old file", zap.String("file", o.Name))
		deleted = append(deleted, o.Name)
	}
	log.Info("cleanup finished", zap.Int("count", len(deleted)))
	return deleted, nil
}

func (j *CleanupJob) Job(ctx context.Context) error {
	_, err := j.Run(ctx)
	return err
}
