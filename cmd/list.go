package cmd

import (
	"context"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/board"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/output"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues",
	Long:    `Lists the issues of a project with optional filtering, sorting, and grouping.`,
	RunE:    runList,
}

func init() {
	addListFlags(listCmd)
	listCmd.Flags().String("sprint", "", "filter by sprint ID")
	listCmd.Flags().StringSlice("status", nil, "filter by status (comma-separated)")
	rootCmd.AddCommand(listCmd)
}

// addListFlags registers the filter, sort and grouping flags shared by
// list and backlog.
func addListFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("project", "p", "", "project key (default from config)")
	cmd.Flags().StringSlice("type", nil, "filter by type (comma-separated)")
	cmd.Flags().StringSlice("priority", nil, "filter by priority (comma-separated)")
	cmd.Flags().String("assignee", "", "filter by assignee")
	cmd.Flags().Bool("unassigned", false, "show only unassigned issues")
	cmd.Flags().String("epic", "", "filter by epic ID")
	cmd.Flags().StringP("search", "s", "", "search issues by key, summary, or description (case-insensitive)")
	cmd.Flags().String("sort", "created", "sort field ("+strings.Join(board.ValidSortFields(), ", ")+")")
	cmd.Flags().BoolP("reverse", "r", false, "reverse sort order")
	cmd.Flags().IntP("limit", "n", 0, "limit number of results")
	cmd.Flags().String("group-by", "", "group results by field ("+strings.Join(board.ValidGroupByFields(), ", ")+")")
}

func runList(cmd *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		projectID, opts, groupBy, err := listOptionsFromFlags(cmd, a)
		if err != nil {
			return err
		}

		issues, err := a.engine.ListIssues(ctx, projectID, opts)
		if err != nil {
			return err
		}
		if groupBy != "" {
			return outputGroupedList(issues, groupBy)
		}
		return outputIssueList(issues)
	})
}

// listOptionsFromFlags reads the shared list flags. Flags not registered on
// cmd are ignored.
func listOptionsFromFlags(cmd *cobra.Command, a *app) (string, workflow.ListOptions, string, error) {
	var opts workflow.ListOptions

	projectFlag, _ := cmd.Flags().GetString("project")
	projectID, err := a.defaultProject(projectFlag)
	if err != nil {
		return "", opts, "", err
	}

	groupBy, _ := cmd.Flags().GetString("group-by")
	if groupBy != "" && !slices.Contains(board.ValidGroupByFields(), groupBy) {
		return "", opts, "", apierr.Newf(apierr.InvalidInput, "invalid --group-by field %q; valid: %s",
			groupBy, strings.Join(board.ValidGroupByFields(), ", ")).
			WithDetails(map[string]any{"field": "group-by", "input": groupBy})
	}

	f := &opts.Filter
	if cmd.Flags().Lookup("status") != nil {
		statuses, _ := cmd.Flags().GetStringSlice("status")
		for _, v := range statuses {
			st, err := issue.ParseStatus(v)
			if err != nil {
				return "", opts, "", err
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	types, _ := cmd.Flags().GetStringSlice("type")
	for _, v := range types {
		t, err := issue.ParseType(v)
		if err != nil {
			return "", opts, "", err
		}
		f.Types = append(f.Types, t)
	}
	priorities, _ := cmd.Flags().GetStringSlice("priority")
	for _, v := range priorities {
		p, err := issue.ParsePriority(v)
		if err != nil {
			return "", opts, "", err
		}
		f.Priorities = append(f.Priorities, p)
	}
	f.Assignee, _ = cmd.Flags().GetString("assignee")
	f.Unassigned, _ = cmd.Flags().GetBool("unassigned")
	f.EpicID, _ = cmd.Flags().GetString("epic")
	f.Search, _ = cmd.Flags().GetString("search")
	if cmd.Flags().Lookup("sprint") != nil {
		f.SprintID, _ = cmd.Flags().GetString("sprint")
	}

	opts.SortBy, _ = cmd.Flags().GetString("sort")
	opts.Reverse, _ = cmd.Flags().GetBool("reverse")
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	return projectID, opts, groupBy, nil
}

func outputGroupedList(issues []*issue.Issue, groupBy string) error {
	grouped := board.GroupBy(issues, groupBy)
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, grouped)
	}
	output.GroupedTable(os.Stdout, grouped)
	return nil
}

func outputIssueList(issues []*issue.Issue) error {
	switch outputFormat() {
	case output.FormatJSON:
		if issues == nil {
			issues = []*issue.Issue{}
		}
		return output.JSON(os.Stdout, issues)
	case output.FormatCompact:
		output.IssueCompact(os.Stdout, issues)
	default:
		output.IssueTable(os.Stdout, issues)
	}
	return nil
}
