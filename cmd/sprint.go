package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/date"
	"github.com/twiced-technology-gmbh/trackflow/internal/output"
	"github.com/twiced-technology-gmbh/trackflow/internal/permission"
	"github.com/twiced-technology-gmbh/trackflow/internal/sprint"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

const defaultSprintDays = 14

var sprintCmd = &cobra.Command{
	Use:   "sprint",
	Short: "Plan and run sprints",
	Long: `Creates sprints, plans issues into them and moves them through
Planned, Active and Completed. A project has at most one active sprint.
SPRINT may be a sprint ID or, within the project, its name.`,
}

var sprintCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a planned sprint",
	Args:  cobra.ExactArgs(1),
	RunE:  runSprintCreate,
}

var sprintListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sprints",
	Args:    cobra.NoArgs,
	RunE:    runSprintList,
}

var sprintPlanCmd = &cobra.Command{
	Use:   "plan SPRINT KEY[,KEY,...]",
	Short: "Add issues to a sprint",
	Long: `Adds issues to a planned or active sprint. Issues in another open sprint
are moved over. Either every issue is added or none is.`,
	Args: cobra.ExactArgs(2), //nolint:mnd // sprint and issue list
	RunE: runSprintPlan,
}

var sprintRemoveCmd = &cobra.Command{
	Use:   "remove KEY[,KEY,...]",
	Short: "Take issues out of their sprint",
	Args:  cobra.ExactArgs(1),
	RunE:  runSprintRemove,
}

var sprintStartCmd = &cobra.Command{
	Use:   "start SPRINT",
	Short: "Start a planned sprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runSprintTransition(args[0], "Started", (*workflow.Engine).StartSprint)
	},
}

var sprintCompleteCmd = &cobra.Command{
	Use:   "complete SPRINT",
	Short: "Complete the active sprint",
	Long: `Completes an active sprint. Unfinished issues keep their sprint
reference for reporting and return to the backlog.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runSprintTransition(args[0], "Completed", (*workflow.Engine).CompleteSprint)
	},
}

var sprintReportCmd = &cobra.Command{
	Use:   "report SPRINT",
	Short: "Show sprint statistics and issues",
	Args:  cobra.ExactArgs(1),
	RunE:  runSprintReport,
}

func init() {
	sprintCmd.PersistentFlags().StringP("project", "p", "", "project key (default from config)")
	sprintCreateCmd.Flags().String("start", "", "start date (YYYY-MM-DD, default today)")
	sprintCreateCmd.Flags().String("end", "", "end date (YYYY-MM-DD, default start + 14 days)")
	sprintCreateCmd.Flags().String("goal", "", "sprint goal")

	sprintCmd.AddCommand(sprintCreateCmd, sprintListCmd, sprintPlanCmd, sprintRemoveCmd,
		sprintStartCmd, sprintCompleteCmd, sprintReportCmd)
	rootCmd.AddCommand(sprintCmd)
}

func runSprintCreate(cmd *cobra.Command, args []string) error {
	start, end, err := sprintDates(cmd)
	if err != nil {
		return err
	}
	goal, _ := cmd.Flags().GetString("goal")

	return withApp(func(ctx context.Context, a *app) error {
		projectID, err := sprintProject(cmd, a)
		if err != nil {
			return err
		}

		var s *sprint.Sprint
		err = a.exclusive(func() error {
			var cerr error
			s, cerr = a.engine.CreateSprint(ctx, a.actor(), workflow.SprintInput{
				ProjectID: projectID,
				Name:      args[0],
				Goal:      goal,
				StartDate: start,
				EndDate:   end,
			})
			return cerr
		})
		if err != nil {
			return err
		}

		if outputFormat() == output.FormatJSON {
			return output.JSON(os.Stdout, s)
		}
		output.Messagef(os.Stdout, "Created sprint %q (%s): %s → %s", s.Name, s.ID, s.StartDate, s.EndDate)
		return nil
	})
}

// sprintDates reads --start and --end, defaulting to a two-week sprint
// starting today.
func sprintDates(cmd *cobra.Command) (date.Date, date.Date, error) {
	start := date.Today()
	if v, _ := cmd.Flags().GetString("start"); v != "" {
		d, err := date.Parse(v)
		if err != nil {
			return date.Date{}, date.Date{}, apierr.Newf(apierr.InvalidInput, "invalid --start %q: %v", v, err).
				WithDetails(map[string]any{"field": "start", "input": v})
		}
		start = d
	}
	end := start.AddDays(defaultSprintDays)
	if v, _ := cmd.Flags().GetString("end"); v != "" {
		d, err := date.Parse(v)
		if err != nil {
			return date.Date{}, date.Date{}, apierr.Newf(apierr.InvalidInput, "invalid --end %q: %v", v, err).
				WithDetails(map[string]any{"field": "end", "input": v})
		}
		end = d
	}
	return start, end, nil
}

func sprintProject(cmd *cobra.Command, a *app) (string, error) {
	flag, _ := cmd.Flags().GetString("project")
	return a.defaultProject(flag)
}

// resolveSprint looks ref up as a sprint ID, then by name within the project.
func resolveSprint(ctx context.Context, a *app, projectFlag, ref string) (*sprint.Sprint, error) {
	s, err := a.engine.GetSprint(ctx, ref)
	if err == nil || !apierr.Is(err, apierr.NotFound) {
		return s, err
	}
	projectID, perr := a.defaultProject(projectFlag)
	if perr != nil {
		return nil, err
	}
	sprints, lerr := a.engine.ListSprints(ctx, projectID)
	if lerr != nil {
		return nil, lerr
	}
	var match *sprint.Sprint
	for _, candidate := range sprints {
		if !strings.EqualFold(candidate.Name, ref) {
			continue
		}
		if match != nil {
			return nil, apierr.Newf(apierr.InvalidInput, "sprint name %q is ambiguous; use the sprint ID", ref).
				WithDetails(map[string]any{"sprint": ref})
		}
		match = candidate
	}
	if match == nil {
		return nil, err
	}
	return match, nil
}

func runSprintList(cmd *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		projectID, err := sprintProject(cmd, a)
		if err != nil {
			return err
		}
		sprints, err := a.engine.ListSprints(ctx, projectID)
		if err != nil {
			return err
		}

		switch outputFormat() {
		case output.FormatJSON:
			if sprints == nil {
				sprints = []*sprint.Sprint{}
			}
			return output.JSON(os.Stdout, sprints)
		case output.FormatCompact:
			output.SprintCompact(os.Stdout, sprints)
		default:
			output.SprintTable(os.Stdout, sprints)
		}
		return nil
	})
}

func runSprintPlan(cmd *cobra.Command, args []string) error {
	refs, err := parseRefs(args[1])
	if err != nil {
		return err
	}
	projectFlag, _ := cmd.Flags().GetString("project")

	return withApp(func(ctx context.Context, a *app) error {
		s, err := resolveSprint(ctx, a, projectFlag, args[0])
		if err != nil {
			return err
		}

		var res *workflow.PlanResult
		err = a.exclusive(func() error {
			var perr error
			res, perr = a.engine.PlanSprint(ctx, a.actor(), s.ID, refs)
			return perr
		})
		if err != nil {
			return err
		}

		if outputFormat() == output.FormatJSON {
			return output.JSON(os.Stdout, res)
		}
		if len(res.Added) > 0 {
			output.Messagef(os.Stdout, "Planned into %q: %s", res.Sprint.Name, strings.Join(res.Added, ", "))
		}
		if len(res.Unchanged) > 0 {
			output.Messagef(os.Stdout, "Already in %q: %s", res.Sprint.Name, strings.Join(res.Unchanged, ", "))
		}
		return nil
	})
}

func runSprintRemove(_ *cobra.Command, args []string) error {
	refs, err := parseRefs(args[0])
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app) error {
		remove := func(ref string) error {
			return a.exclusive(func() error {
				_, rerr := a.engine.RemoveFromSprint(ctx, a.actor(), ref)
				return rerr
			})
		}

		if len(refs) > 1 {
			return runBatch(refs, remove)
		}
		if err := remove(refs[0]); err != nil {
			return err
		}
		if outputFormat() == output.FormatJSON {
			return output.JSON(os.Stdout, map[string]string{"status": "removed", "issue": refs[0]})
		}
		output.Messagef(os.Stdout, "Removed %s from its sprint", refs[0])
		return nil
	})
}

type sprintTransition func(*workflow.Engine, context.Context, permission.Actor, string) (*sprint.Sprint, error)

func runSprintTransition(ref, verb string, fn sprintTransition) error {
	return withApp(func(ctx context.Context, a *app) error {
		projectFlag, _ := sprintCmd.PersistentFlags().GetString("project")
		s, err := resolveSprint(ctx, a, projectFlag, ref)
		if err != nil {
			return err
		}

		err = a.exclusive(func() error {
			var terr error
			s, terr = fn(a.engine, ctx, a.actor(), s.ID)
			return terr
		})
		if err != nil {
			return err
		}

		if outputFormat() == output.FormatJSON {
			return output.JSON(os.Stdout, s)
		}
		output.Messagef(os.Stdout, "%s sprint %q", verb, s.Name)
		return nil
	})
}

func runSprintReport(cmd *cobra.Command, args []string) error {
	projectFlag, _ := cmd.Flags().GetString("project")
	return withApp(func(ctx context.Context, a *app) error {
		s, err := resolveSprint(ctx, a, projectFlag, args[0])
		if err != nil {
			return err
		}
		report, err := a.engine.SprintReport(ctx, s.ID)
		if err != nil {
			return err
		}

		switch outputFormat() {
		case output.FormatJSON:
			return output.JSON(os.Stdout, report)
		case output.FormatCompact:
			output.IssueCompact(os.Stdout, report.Issues)
		default:
			output.SprintReportTable(os.Stdout, report)
		}
		return nil
	})
}
