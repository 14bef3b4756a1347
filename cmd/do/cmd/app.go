package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/templui/feedbackloop/internal/app"
	"github.com/templui/feedbackloop/internal/config"
	"github.com/templui/feedbackloop/internal/logger"
)

type appRunE func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error

// withApp loads config, opens the database and hands an operator app to fn.
func withApp(fn appRunE) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger.Init(logger.Options{
			Development: cfg.IsDevelopment(),
			Environment: cfg.AppEnv,
			Output:      cmd.ErrOrStderr(),
		})

		a, err := app.NewCLI(cfg)
		if err != nil {
			return err
		}
		defer func() {
			closeErr := a.Close()
			if closeErr != nil {
				slog.Error("failed to close app", "error", closeErr)
			}
		}()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return fn(ctx, cmd, a, args)
	}
}
