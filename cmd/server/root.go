package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"issueInsightsTracker/internal/config"
	"issueInsightsTracker/internal/db"
	"issueInsightsTracker/internal/logging"
)

type options struct {
	devDefaults bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "issue-tracker",
		Short:         "Issues & Insights Tracker backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().BoolVar(&opts.devDefaults, "dev", false, "use a development signing secret when AUTH_SECRET_KEY is unset")
	root.AddCommand(newServeCmd(opts), newMigrateCmd(opts), newJobsCmd(opts), newUsersCmd(opts))
	return root
}

// bootstrap loads config, builds the logger and opens the database.
func bootstrap(opts *options) (*config.Config, *zap.Logger, *gorm.DB, error) {
	load := config.Load
	if opts.devDefaults {
		load = config.LoadWithDefaults
	}
	cfg, err := load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Log.Level)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build logger: %w", err)
	}
	log.Info("configuration loaded", zap.Stringer("config", cfg))

	d, err := db.Open(cfg.Database)
	if err != nil {
		_ = log.Sync()
		return nil, nil, nil, fmt.Errorf("open db: %w", err)
	}
	return cfg, log, d, nil
}
