package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"issueInsightsTracker/internal/db"
	"issueInsightsTracker/models"
	"issueInsightsTracker/repository"
)

func newUsersCmd(opts *options) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "User administration",
	}
	usersCmd.AddCommand(newUsersListCmd(opts))
	usersCmd.AddCommand(&cobra.Command{
		Use:   "set-role <email> <admin|maintainer|reporter>",
		Short: "Change the role of an existing user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, role := args[0], models.Role(args[1])
			if !role.Valid() {
				return fmt.Errorf("invalid role %q", role)
			}
			_, log, d, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(d) }()

			repo := repository.NewUserRepository(d)
			u, err := repo.GetByEmail(cmd.Context(), email)
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("no user with email %s", email)
			}
			if err := repo.UpdateRoleByEmail(cmd.Context(), email, role); err != nil {
				return err
			}
			log.Info("role updated", zap.Int64("user_id", u.ID), zap.String("from", string(u.Role)), zap.String("to", string(role)))
			return nil
		},
	})
	return usersCmd
}

func newUsersListCmd(opts *options) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print registered users ordered by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, d, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(d) }()
			return printUsers(cmd.Context(), repository.NewUserRepository(d), cmd.OutOrStdout(), limit, offset)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of users to print")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of users to skip")
	return cmd
}

type userLister interface {
	List(ctx context.Context, limit, offset int) ([]models.User, error)
}

func printUsers(ctx context.Context, users userLister, out io.Writer, limit, offset int) error {
	list, err := users.List(ctx, limit, offset)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tCREATED")
	for _, u := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.CreatedAt.UTC().Format("2006-01-02"))
	}
	return tw.Flush()
}
