package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"issueInsightsTracker/internal/db"
	"issueInsightsTracker/internal/jobs"
	"issueInsightsTracker/internal/storage"
)

func newJobsCmd(opts *options) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Background job utilities",
	}
	var noRetry bool
	run := &cobra.Command{
		Use:       "run [stats|cleanup]",
		Short:     "Run one background job now",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"stats", "cleanup"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, d, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(d) }()
			store, err := storage.New(cfg.Storage)
			if err != nil {
				return err
			}
			statsJob, cleanupJob := newJobs(cfg, log, d, store)

			var job jobs.Job
			var delay time.Duration
			switch args[0] {
			case "stats":
				job, delay = statsJob.Job, cfg.Jobs.StatsRetryDelay
			case "cleanup":
				job, delay = cleanupJob.Job, cfg.Jobs.CleanupRetryDelay
			default:
				return fmt.Errorf("unknown job %q", args[0])
			}
			if !noRetry {
				job = jobs.WithRetry(args[0], job, delay, jobs.Attempts, log)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := job(ctx); err != nil {
				return err
			}
			log.Info("job finished", zap.String("job", args[0]))
			return nil
		},
	}
	run.Flags().BoolVar(&noRetry, "no-retry", false, "fail on the first error instead of retrying")
	jobsCmd.AddCommand(run)
	return jobsCmd
}
