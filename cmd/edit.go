package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/output"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

var editCmd = &cobra.Command{
	Use:   "edit KEY[,KEY,...]",
	Short: "Edit an issue",
	Long: `Modifies fields of an existing issue. Only specified fields are changed.
Status changes go through 'move'. Multiple keys can be provided as a
comma-separated list.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().String("summary", "", "new summary")
	editCmd.Flags().String("type", "", "new type")
	editCmd.Flags().String("priority", "", "new priority")
	editCmd.Flags().String("assignee", "", "new assignee")
	editCmd.Flags().Bool("unassign", false, "clear the assignee")
	editCmd.Flags().Int("points", 0, "new story points")
	editCmd.Flags().Bool("clear-points", false, "clear story points")
	editCmd.Flags().String("body", "", "new description (replaces entire description)")
	editCmd.Flags().StringP("append-body", "a", "", "append text to the description")
	editCmd.Flags().BoolP("timestamp", "t", false, "prefix a timestamp line when appending")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	refs, err := parseRefs(args[0])
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app) error {
		// Single issue: full output.
		if len(refs) == 1 {
			it, err := executeEdit(ctx, a, cmd, refs[0])
			if err != nil {
				return err
			}
			if outputFormat() == output.FormatJSON {
				return output.JSON(os.Stdout, it)
			}
			output.Messagef(os.Stdout, "Updated %s: %s", it.Key, it.Summary)
			return nil
		}

		return runBatch(refs, func(ref string) error {
			_, err := executeEdit(ctx, a, cmd, ref)
			return err
		})
	})
}

// executeEdit builds the patch for one issue and applies it.
func executeEdit(ctx context.Context, a *app, cmd *cobra.Command, ref string) (*issue.Issue, error) {
	var it *issue.Issue
	err := a.exclusive(func() error {
		current, err := a.engine.GetIssue(ctx, ref)
		if err != nil {
			return err
		}
		patch, changed, err := editPatch(cmd, current)
		if err != nil {
			return err
		}
		if !changed {
			return apierr.New(apierr.InvalidInput, "no changes specified")
		}
		it, err = a.engine.UpdateIssue(ctx, a.actor(), current.ID, patch)
		return err
	})
	return it, err
}

// editPatch translates the edit flags into an IssuePatch.
func editPatch(cmd *cobra.Command, current *issue.Issue) (workflow.IssuePatch, bool, error) {
	var p workflow.IssuePatch
	flags := cmd.Flags()
	changed := false

	if flags.Changed("summary") {
		v, _ := flags.GetString("summary")
		p.Summary = &v
		changed = true
	}
	if flags.Changed("type") {
		v, _ := flags.GetString("type")
		t, err := issue.ParseType(v)
		if err != nil {
			return p, false, err
		}
		p.Type = &t
		changed = true
	}
	if flags.Changed("priority") {
		v, _ := flags.GetString("priority")
		prio, err := issue.ParsePriority(v)
		if err != nil {
			return p, false, err
		}
		p.Priority = &prio
		changed = true
	}
	if flags.Changed("assignee") {
		v, _ := flags.GetString("assignee")
		p.AssigneeID = &v
		changed = true
	}
	if unassign, _ := flags.GetBool("unassign"); unassign {
		empty := ""
		p.AssigneeID = &empty
		changed = true
	}
	if flags.Changed("points") {
		v, _ := flags.GetInt("points")
		p.StoryPoints = &v
		changed = true
	}
	if clearPoints, _ := flags.GetBool("clear-points"); clearPoints {
		p.ClearStoryPoints = true
		changed = true
	}
	if flags.Changed("body") {
		v, _ := flags.GetString("body")
		p.Description = &v
		changed = true
	}
	if flags.Changed("append-body") {
		v, _ := flags.GetString("append-body")
		stamp, _ := flags.GetBool("timestamp")
		body := appendBody(current.Description, v, stamp, time.Now())
		p.Description = &body
		changed = true
	}
	return p, changed, nil
}

// appendBody adds text to a description, optionally under a timestamp line.
func appendBody(body, text string, stamp bool, now time.Time) string {
	if stamp {
		text = "[" + now.Format("2006-01-02 15:04") + "]\n" + text
	}
	body = strings.TrimRight(body, "\n")
	if body == "" {
		return text
	}
	return body + "\n\n" + text
}
