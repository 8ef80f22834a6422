package cmd

import (
	"context"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/output"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

var moveCmd = &cobra.Command{
	Use:   "move KEY[,KEY,...] [STATUS]",
	Short: "Move an issue to a different status",
	Long: `Moves an issue on a board. Provide the new status directly, or use
--next/--prev to move along the board's columns. The move must follow the
status machine and respect the destination column's WIP limit.
Multiple keys can be provided as a comma-separated list.`,
	Args: cobra.RangeArgs(1, 2), //nolint:mnd // 1 or 2 positional args
	RunE: runMove,
}

func init() {
	moveCmd.Flags().Bool("next", false, "move to next status")
	moveCmd.Flags().Bool("prev", false, "move to previous status")
	moveCmd.Flags().StringP("board", "b", "", "board to move on (default: first board of the issue's project)")
	rootCmd.AddCommand(moveCmd)
}

func runMove(cmd *cobra.Command, args []string) error {
	refs, err := parseRefs(args[0])
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app) error {
		// Single issue: full output.
		if len(refs) == 1 {
			res, err := executeMove(ctx, a, cmd, args, refs[0])
			if err != nil {
				return err
			}
			return outputMoveResult(res)
		}

		return runBatch(refs, func(ref string) error {
			_, err := executeMove(ctx, a, cmd, args, ref)
			return err
		})
	})
}

// executeMove resolves the target status and board for one issue and moves it.
func executeMove(ctx context.Context, a *app, cmd *cobra.Command, args []string, ref string) (*workflow.MoveResult, error) {
	it, err := a.engine.GetIssue(ctx, ref)
	if err != nil {
		return nil, err
	}

	dest, err := resolveTargetStatus(cmd, args, it)
	if err != nil {
		return nil, err
	}
	boardID, err := resolveMoveBoard(cmd, a, it)
	if err != nil {
		return nil, err
	}

	var res *workflow.MoveResult
	err = a.exclusive(func() error {
		var merr error
		res, merr = a.engine.MoveIssue(ctx, a.actor(), it.ID, dest, boardID)
		return merr
	})
	return res, err
}

func resolveTargetStatus(cmd *cobra.Command, args []string, it *issue.Issue) (issue.Status, error) {
	next, _ := cmd.Flags().GetBool("next")
	prev, _ := cmd.Flags().GetBool("prev")
	idx := slices.Index(issue.Statuses, it.Status)

	switch {
	case len(args) == 2: //nolint:mnd // positional arg
		return issue.ParseStatus(args[1])
	case next:
		if idx < 0 || idx >= len(issue.Statuses)-1 {
			return "", apierr.Newf(apierr.InvalidTransition, "%s is already at the last status (%s)", it.Key, it.Status).
				WithDetails(map[string]any{"issue": it.Key, "status": string(it.Status)})
		}
		return issue.Statuses[idx+1], nil
	case prev:
		if idx <= 0 {
			return "", apierr.Newf(apierr.InvalidTransition, "%s is already at the first status (%s)", it.Key, it.Status).
				WithDetails(map[string]any{"issue": it.Key, "status": string(it.Status)})
		}
		return issue.Statuses[idx-1], nil
	default:
		return "", apierr.New(apierr.InvalidInput, "provide a target status or use --next/--prev")
	}
}

// resolveMoveBoard returns --board, else the first configured board of the
// issue's project.
func resolveMoveBoard(cmd *cobra.Command, a *app, it *issue.Issue) (string, error) {
	if id, _ := cmd.Flags().GetString("board"); id != "" {
		return id, nil
	}
	boards := a.boards.BoardsForProject(it.ProjectID)
	if len(boards) == 0 {
		return "", apierr.Newf(apierr.InvalidInput, "no board configured for project %s (use --board)", it.ProjectID).
			WithDetails(map[string]any{"project": it.ProjectID})
	}
	return boards[0].ID, nil
}

func outputMoveResult(res *workflow.MoveResult) error {
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, res)
	}
	if !res.Changed {
		output.Messagef(os.Stdout, "%s is already at %s", res.Issue.Key, res.To)
		return nil
	}
	output.Messagef(os.Stdout, "Moved %s: %s -> %s (%s/%s)", res.Issue.Key, res.From, res.To, res.Board, res.Column)
	return nil
}
