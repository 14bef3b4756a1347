package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/templui/feedbackloop/internal/app"
	"github.com/templui/feedbackloop/internal/db"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			err := db.RunMigrations(ctx, a.DB.DB, a.Cfg.DBDriver)
			if err != nil {
				return err
			}
			return printVersion(ctx, cmd, a)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			err := db.MigrateDown(ctx, a.DB.DB, a.Cfg.DBDriver)
			if err != nil {
				return err
			}
			return printVersion(ctx, cmd, a)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			return printVersion(ctx, cmd, a)
		}),
	})

	return cmd
}

func printVersion(ctx context.Context, cmd *cobra.Command, a *app.App) error {
	version, err := db.MigrationVersion(ctx, a.DB.DB, a.Cfg.DBDriver)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
	return nil
}
