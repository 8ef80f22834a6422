package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/trackflow/internal/output"
	"github.com/twiced-technology-gmbh/trackflow/internal/project"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create KEY NAME",
	Short: "Create a project",
	Long: `Creates a project. KEY is 2-10 upper-case letters or digits starting with
a letter; issue keys are derived from it (KEY-1, KEY-2, ...).`,
	Args: cobra.ExactArgs(2), //nolint:mnd // key and name
	RunE: runProjectCreate,
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	Args:    cobra.NoArgs,
	RunE:    runProjectList,
}

func init() {
	projectCmd.AddCommand(projectCreateCmd, projectListCmd)
	rootCmd.AddCommand(projectCmd)
}

func runProjectCreate(_ *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		var p *project.Project
		err := a.exclusive(func() error {
			var cerr error
			p, cerr = a.engine.CreateProject(ctx, a.actor(), strings.ToUpper(args[0]), args[1])
			return cerr
		})
		if err != nil {
			return err
		}

		if outputFormat() == output.FormatJSON {
			return output.JSON(os.Stdout, p)
		}
		output.Messagef(os.Stdout, "Created project %s: %s", p.ID, p.Name)
		output.Messagef(os.Stdout, "  Hint: add a board for it under 'boards' in %s", a.cfg.ConfigPath())
		return nil
	})
}

func runProjectList(_ *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		projects, err := a.engine.ListProjects(ctx)
		if err != nil {
			return err
		}
		if outputFormat() == output.FormatJSON {
			if projects == nil {
				projects = []*project.Project{}
			}
			return output.JSON(os.Stdout, projects)
		}
		output.ProjectTable(os.Stdout, projects)
		return nil
	})
}
