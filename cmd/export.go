package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/trackflow/internal/export"
	"github.com/twiced-technology-gmbh/trackflow/internal/output"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export issues as markdown files",
	Long: `Writes one markdown file per issue, named KEY-slug.md, with the issue
fields as YAML frontmatter and the description as body. Re-running the
export updates the files in place; --prune also removes files of deleted
issues.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringP("project", "p", "", "project key (default from config)")
	exportCmd.Flags().StringP("out", "o", "", "output directory (default <workspace>/export/<project>)")
	exportCmd.Flags().Bool("prune", false, "remove files of issues that no longer exist")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		projectFlag, _ := cmd.Flags().GetString("project")
		projectID, err := a.defaultProject(projectFlag)
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("out")
		if dir == "" {
			dir = filepath.Join(a.cfg.Dir(), "export", projectID)
		}
		prune, _ := cmd.Flags().GetBool("prune")

		res, err := export.Project(ctx, a.engine, projectID, dir, prune)
		if err != nil {
			return err
		}

		if outputFormat() == output.FormatJSON {
			return output.JSON(os.Stdout, res)
		}
		output.Messagef(os.Stdout, "Exported %d issues to %s", len(res.Written), res.Dir)
		if len(res.Removed) > 0 {
			output.Messagef(os.Stdout, "Removed %d stale files", len(res.Removed))
		}
		return nil
	})
}
