package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"issueInsightsTracker/internal/metrics"
)

// Scheduler runs registered jobs on cron schedules.
type Scheduler interface {
	Register(name, spec string, job Job) error
	Start()
	Stop(ctx context.Context) error
}

// CronScheduler is a Scheduler on robfig/cron evaluating schedules in UTC.
// A job whose previous run is still going skips its tick. Each tick is
// claimed through the Locker under the job name and the tick's minute, so
// instances sharing a broker run a job once per tick.
type CronScheduler struct {
	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	log     *zap.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func NewCronScheduler(log *zap.Logger, locker Locker) *CronScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if locker == nil {
		locker = NopLocker{}
	}
	cl := cronLogger{log.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &CronScheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		locker:  locker,
		lockTTL: 30 * time.Minute,
		log:     log,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds job under spec (standard five-field cron syntax).
func (s *CronScheduler) Register(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return err
	}
	s.log.Info("job registered", zap.String("job", name), zap.String("schedule", spec))
	return nil
}

func (s *CronScheduler) Start() { s.cron.Start() }

// Stop stops new runs and waits for running jobs until ctx is done, after
// which their context is cancelled.
func (s *CronScheduler) Stop(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		done := s.cron.Stop()
		select {
		case <-done.Done():
		case <-ctx.Done():
			err = ctx.Err()
		}
		s.cancel()
	})
	return err
}

func tickKey(name string, at time.Time) string {
	return name + ":" + at.UTC().Truncate(time.Minute).Format("200601021504")
}

func (s *CronScheduler) run(name string, job Job) {
	ok, err := s.locker.Claim(s.ctx, tickKey(name, s.now()), s.lockTTL)
	if err != nil {
		s.log.Error("acquire job lock", zap.String("job", name), zap.Error(err))
		metrics.JobRuns.WithLabelValues(name, "lock_error").Inc()
		return
	}
	if !ok {
		s.log.Debug("tick claimed by another instance", zap.String("job", name))
		metrics.JobRuns.WithLabelValues(name, "skipped").Inc()
		return
	}

	start := time.Now()
	err = job(s.ctx)
	metrics.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		metrics.JobRuns.WithLabelValues(name, "failure").Inc()
		return
	}
	metrics.JobRuns.WithLabelValues(name, "success").Inc()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
