package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/output"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

var createCmd = &cobra.Command{
	Use:     "create [SUMMARY]",
	Aliases: []string{"add"},
	Short:   "Create a new issue",
	Long: `Creates a new issue in To Do and allocates its key.

Summary can be provided as a positional argument or via --summary flag.
The issue can be placed in a sprint and linked to an epic right away.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().String("summary", "", "issue summary (alternative to positional argument)")
	createCmd.Flags().StringP("project", "p", "", "project key (default from config)")
	createCmd.Flags().StringP("type", "t", "", "issue type: story, task, bug or epic (default from config)")
	createCmd.Flags().String("priority", "", "issue priority (default from config)")
	createCmd.Flags().String("assignee", "", "assignee")
	createCmd.Flags().Int("points", 0, "story points")
	createCmd.Flags().String("body", "", "issue description")
	createCmd.Flags().String("sprint", "", "sprint ID to plan the issue into")
	createCmd.Flags().String("epic", "", "epic ID to link the issue to")
	createCmd.Flags().SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		switch name {
		case "description":
			name = "body"
		case "title":
			name = "summary"
		case "story-points":
			name = "points"
		}
		return pflag.NormalizedName(name)
	})
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	summary, err := resolveCreateSummary(cmd, args)
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app) error {
		in, err := createInput(cmd, a, summary)
		if err != nil {
			return err
		}

		var it *issue.Issue
		err = a.exclusive(func() error {
			var cerr error
			it, cerr = a.engine.CreateIssue(ctx, a.actor(), in)
			return cerr
		})
		if err != nil {
			return err
		}
		return outputCreateResult(it)
	})
}

func createInput(cmd *cobra.Command, a *app, summary string) (workflow.IssueInput, error) {
	projectFlag, _ := cmd.Flags().GetString("project")
	projectID, err := a.defaultProject(projectFlag)
	if err != nil {
		return workflow.IssueInput{}, err
	}

	typeName, _ := cmd.Flags().GetString("type")
	if typeName == "" {
		typeName = a.cfg.Defaults.Type
	}
	typ, err := issue.ParseType(typeName)
	if err != nil {
		return workflow.IssueInput{}, err
	}

	prioName, _ := cmd.Flags().GetString("priority")
	if prioName == "" {
		prioName = a.cfg.Defaults.Priority
	}
	prio, err := issue.ParsePriority(prioName)
	if err != nil {
		return workflow.IssueInput{}, err
	}

	in := workflow.IssueInput{
		ProjectID: projectID,
		Type:      typ,
		Priority:  prio,
		Summary:   summary,
	}
	in.Description, _ = cmd.Flags().GetString("body")
	in.AssigneeID, _ = cmd.Flags().GetString("assignee")
	in.SprintID, _ = cmd.Flags().GetString("sprint")
	in.EpicID, _ = cmd.Flags().GetString("epic")
	if cmd.Flags().Changed("points") {
		points, _ := cmd.Flags().GetInt("points")
		in.StoryPoints = &points
	}
	return in, nil
}

func outputCreateResult(it *issue.Issue) error {
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, it)
	}

	output.Messagef(os.Stdout, "Created %s: %s", it.Key, it.Summary)
	output.Messagef(os.Stdout, "  Type: %s | Priority: %s | Status: %s", it.Type, it.Priority, it.Status)
	if it.AssigneeID != "" {
		output.Messagef(os.Stdout, "  Assignee: %s", it.AssigneeID)
	}
	if it.SprintID != "" {
		output.Messagef(os.Stdout, "  Sprint: %s", it.SprintID)
	}
	if it.EpicID != "" {
		output.Messagef(os.Stdout, "  Epic: %s", it.EpicID)
	}
	return nil
}

// resolveCreateSummary returns the summary from either the positional arg or --summary flag.
func resolveCreateSummary(cmd *cobra.Command, args []string) (string, error) {
	flagSummary, _ := cmd.Flags().GetString("summary")
	switch {
	case len(args) > 0 && flagSummary != "":
		return "", apierr.New(apierr.InvalidInput, "provide the summary as an argument or with --summary, not both")
	case len(args) > 0:
		return strings.TrimSpace(args[0]), nil
	case flagSummary != "":
		return strings.TrimSpace(flagSummary), nil
	default:
		return "", apierr.New(apierr.InvalidInput, "summary is required").
			WithDetails(map[string]any{"field": "summary"})
	}
}
