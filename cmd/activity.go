package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/trackflow/internal/activity"
	"github.com/twiced-technology-gmbh/trackflow/internal/output"
)

var activityCmd = &cobra.Command{
	Use:     "activity",
	Aliases: []string{"log"},
	Short:   "Show recent workflow activity",
	Long:    `Shows the most recent successful mutations from the activity log, newest last.`,
	Args:    cobra.NoArgs,
	RunE:    runActivity,
}

func init() {
	activityCmd.Flags().IntP("limit", "n", 20, "number of entries to show (0 for all)") //nolint:mnd // default page
	rootCmd.AddCommand(activityCmd)
}

func runActivity(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	return withApp(func(_ context.Context, a *app) error {
		entries, err := a.activity.Tail(limit)
		if err != nil {
			return err
		}
		if outputFormat() == output.FormatJSON {
			if entries == nil {
				entries = []activity.Entry{}
			}
			return output.JSON(os.Stdout, entries)
		}
		output.ActivityTable(os.Stdout, entries)
		return nil
	})
}
