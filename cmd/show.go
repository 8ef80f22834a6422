package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/trackflow/internal/output"
)

var showCmd = &cobra.Command{
	Use:   "show KEY",
	Short: "Show issue details",
	Long:  `Displays full details of a single issue. KEY may be an issue key or ID.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(_ *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		it, err := a.engine.GetIssue(ctx, args[0])
		if err != nil {
			return err
		}

		switch outputFormat() {
		case output.FormatJSON:
			return output.JSON(os.Stdout, it)
		case output.FormatCompact:
			output.IssueDetailCompact(os.Stdout, it)
		default:
			output.IssueDetail(os.Stdout, it)
		}
		return nil
	})
}
