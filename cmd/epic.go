package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/trackflow/internal/epic"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/output"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

var epicCmd = &cobra.Command{
	Use:   "epic",
	Short: "Group issues under epics",
	Long:  `Creates epics, links issues to them and reports their progress.`,
}

var epicCreateCmd = &cobra.Command{
	Use:   "create SUMMARY",
	Short: "Create an epic",
	Args:  cobra.ExactArgs(1),
	RunE:  runEpicCreate,
}

var epicListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List epics",
	Args:    cobra.NoArgs,
	RunE:    runEpicList,
}

var epicAttachCmd = &cobra.Command{
	Use:   "attach EPIC KEY[,KEY,...]",
	Short: "Link issues to an epic",
	Args:  cobra.ExactArgs(2), //nolint:mnd // epic and issue list
	RunE:  runEpicAttach,
}

var epicDetachCmd = &cobra.Command{
	Use:   "detach KEY[,KEY,...]",
	Short: "Unlink issues from their epic",
	Long:  `Clears the epic link of each issue. The issues themselves are kept.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runEpicDetach,
}

var epicProgressCmd = &cobra.Command{
	Use:     "progress EPIC",
	Aliases: []string{"show"},
	Short:   "Show epic progress",
	Args:    cobra.ExactArgs(1),
	RunE:    runEpicProgress,
}

func init() {
	epicCreateCmd.Flags().StringP("project", "p", "", "project key (default from config)")
	epicCreateCmd.Flags().String("priority", "", "epic priority (default from config)")
	epicListCmd.Flags().StringP("project", "p", "", "project key (default from config)")

	epicCmd.AddCommand(epicCreateCmd, epicListCmd, epicAttachCmd, epicDetachCmd, epicProgressCmd)
	rootCmd.AddCommand(epicCmd)
}

func runEpicCreate(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		projectFlag, _ := cmd.Flags().GetString("project")
		projectID, err := a.defaultProject(projectFlag)
		if err != nil {
			return err
		}
		prioName, _ := cmd.Flags().GetString("priority")
		if prioName == "" {
			prioName = a.cfg.Defaults.Priority
		}
		prio, err := issue.ParsePriority(prioName)
		if err != nil {
			return err
		}

		var ep *epic.Epic
		err = a.exclusive(func() error {
			var cerr error
			ep, cerr = a.engine.CreateEpic(ctx, a.actor(), workflow.EpicInput{
				ProjectID: projectID,
				Summary:   args[0],
				Priority:  prio,
			})
			return cerr
		})
		if err != nil {
			return err
		}

		if outputFormat() == output.FormatJSON {
			return output.JSON(os.Stdout, ep)
		}
		output.Messagef(os.Stdout, "Created epic %q (%s)", ep.Summary, ep.ID)
		return nil
	})
}

func runEpicList(cmd *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		projectFlag, _ := cmd.Flags().GetString("project")
		projectID, err := a.defaultProject(projectFlag)
		if err != nil {
			return err
		}
		epics, err := a.engine.ListEpics(ctx, projectID)
		if err != nil {
			return err
		}

		if outputFormat() == output.FormatJSON {
			if epics == nil {
				epics = []*epic.Epic{}
			}
			return output.JSON(os.Stdout, epics)
		}
		output.EpicTable(os.Stdout, epics)
		return nil
	})
}

func runEpicAttach(_ *cobra.Command, args []string) error {
	refs, err := parseRefs(args[1])
	if err != nil {
		return err
	}
	epicID := args[0]

	return withApp(func(ctx context.Context, a *app) error {
		attach := func(ref string) error {
			return a.exclusive(func() error {
				_, aerr := a.engine.AttachToEpic(ctx, a.actor(), ref, epicID)
				return aerr
			})
		}
		if len(refs) > 1 {
			return runBatch(refs, attach)
		}
		if err := attach(refs[0]); err != nil {
			return err
		}
		if outputFormat() == output.FormatJSON {
			return output.JSON(os.Stdout, map[string]string{"status": "attached", "issue": refs[0], "epic": epicID})
		}
		output.Messagef(os.Stdout, "Attached %s to epic %s", refs[0], epicID)
		return nil
	})
}

func runEpicDetach(_ *cobra.Command, args []string) error {
	refs, err := parseRefs(args[0])
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app) error {
		detach := func(ref string) error {
			return a.exclusive(func() error {
				_, derr := a.engine.DetachFromEpic(ctx, a.actor(), ref)
				return derr
			})
		}
		if len(refs) > 1 {
			return runBatch(refs, detach)
		}
		if err := detach(refs[0]); err != nil {
			return err
		}
		if outputFormat() == output.FormatJSON {
			return output.JSON(os.Stdout, map[string]string{"status": "detached", "issue": refs[0]})
		}
		output.Messagef(os.Stdout, "Detached %s from its epic", refs[0])
		return nil
	})
}

func runEpicProgress(_ *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		p, err := a.engine.ComputeEpicProgress(ctx, args[0])
		if err != nil {
			return err
		}

		switch outputFormat() {
		case output.FormatJSON:
			return output.JSON(os.Stdout, p)
		case output.FormatCompact:
			output.IssueCompact(os.Stdout, p.Issues)
		default:
			output.EpicProgressTable(os.Stdout, p)
		}
		return nil
	})
}
