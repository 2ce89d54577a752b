package jobs

import (
	"time"

	"go.uber.org/zap"
)

// Schedules, evaluated in UTC.
const (
	StatsDailySpec   = "0 0 * * *"
	StatsRefreshSpec = "*/30 * * * *"
	CleanupSpec      = "0 2 * * *"
)

// Retry delays between attempts.
const (
	DefaultStatsRetryDelay   = 60 * time.Second
	DefaultCleanupRetryDelay = 300 * time.Second
)

// Delays overrides the retry delays; zero keeps the default.
type Delays struct {
	Stats   time.Duration
	Cleanup time.Duration
}

// RegisterAll puts the stats rollup and the file cleanup on s, each wrapped in WithRetry.
func RegisterAll(s Scheduler, stats *StatsJob, cleanup *CleanupJob, d Delays, log *zap.Logger) error {
	if d.Stats <= 0 {
		d.Stats = DefaultStatsRetryDelay
	}
	if d.Cleanup <= 0 {
		d.Cleanup = DefaultCleanupRetryDelay
	}
	statsJob := WithRetry("stats", stats.Job, d.Stats, Attempts, log)
	if err := s.Register("stats-daily", StatsDailySpec, statsJob); err != nil {
		return err
	}
	if err := s.Register("stats-refresh", StatsRefreshSpec, statsJob); err != nil {
		return err
	}
	return s.Register("cleanup", CleanupSpec, WithRetry("cleanup", cleanup.Job, d.Cleanup, Attempts, log))
}
