package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"issueInsightsTracker/internal/db"
)

func newMigrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations and print the applied versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, d, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(d) }()
			versions, err := db.AppliedVersions(d)
			if err != nil {
				return err
			}
			log.Info("migrations applied", zap.Ints("versions", versions))
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recently applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, d, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(d) }()
			if err := db.RollbackLast(d); err != nil {
				return fmt.Errorf("rollback: %w", err)
			}
			versions, err := db.AppliedVersions(d)
			if err != nil {
				return err
			}
			log.Info("rolled back last migration", zap.Ints("remaining", versions))
			return nil
		},
	})
	return cmd
}
