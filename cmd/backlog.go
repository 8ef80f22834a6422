package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var backlogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "List the project backlog",
	Long: `Lists the issues that no open sprint claims: issues without a sprint and
the issues of completed sprints. Use --status to narrow it down.`,
	RunE: runBacklog,
}

func init() {
	addListFlags(backlogCmd)
	backlogCmd.Flags().StringSlice("status", nil, "filter by status (comma-separated)")
	rootCmd.AddCommand(backlogCmd)
}

func runBacklog(cmd *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		projectID, opts, groupBy, err := listOptionsFromFlags(cmd, a)
		if err != nil {
			return err
		}

		issues, err := a.engine.ComputeBacklog(ctx, projectID, opts)
		if err != nil {
			return err
		}
		if groupBy != "" {
			return outputGroupedList(issues, groupBy)
		}
		return outputIssueList(issues)
	})
}
