package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/templui/feedbackloop/internal/app"
)

func OrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an organization",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			org, err := a.ProjectService.CreateOrganization(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "organization: %s\n", org.ID)
			return nil
		}),
	}
	create.Flags().StringVar(&name, "name", "", "organization name")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}

func ProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects and their API keys",
	}

	cmd.AddCommand(projectCreateCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "rotate-key <project-id>",
		Short: "Issue a new API key; the old key stops working immediately",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			apiKey, err := a.ProjectService.RotateAPIKey(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "api key: %s\n", apiKey)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "deactivate <project-id>",
		Short: "Stop accepting feedback for a project",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			err := a.ProjectService.Deactivate(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "project %s deactivated\n", args[0])
			return nil
		}),
	})

	return cmd
}

func projectCreateCmd() *cobra.Command {
	var (
		orgID       string
		name        string
		origins     []string
		notifyEmail string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project and print its API key",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			p, err := a.ProjectService.CreateProject(ctx, orgID, name, origins, notifyEmail)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "project: %s\n", p.ID)
			fmt.Fprintf(out, "api key: %s\n", p.APIKey)
			if len(p.AllowedOrigins) > 0 {
				fmt.Fprintf(out, "allowed origins: %v\n", []string(p.AllowedOrigins))
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&orgID, "org", "", "owning organization id")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringSliceVar(&origins, "origins", nil, "allowed origins, e.g. app.example.com,*.example.com (empty allows all)")
	cmd.Flags().StringVar(&notifyEmail, "notify-email", "", "address notified of new feedback")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
