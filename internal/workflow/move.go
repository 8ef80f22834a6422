package workflow

import (
	"context"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/board"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/permission"
	"github.com/twiced-technology-gmbh/trackflow/internal/store"
)

// MoveResult describes the outcome of MoveIssue.
type MoveResult struct {
	Issue   *issue.Issue `json:"issue"`
	Board   string       `json:"board"`
	Column  string       `json:"column"`
	From    issue.Status `json:"from"`
	To      issue.Status `json:"to"`
	Changed bool         `json:"changed"`
}

// MoveIssue moves an issue to dest on the given board. The destination
// column's WIP limit is checked against the occupancy before the move and
// the status is written in the same critical section, so concurrent moves
// can never overshoot a limit. Moving to the current status succeeds
// without writing.
func (e *Engine) MoveIssue(ctx context.Context, actor permission.Actor, issueRef string, dest issue.Status, boardID string) (*MoveResult, error) {
	const op = "move"
	if err := e.authorize(ctx, op, actor, permission.IssueTransition); err != nil {
		return nil, err
	}
	if boardID == "" {
		return nil, e.rejected(op, actor, "", apierr.New(apierr.InvalidInput, "board is required").
			WithDetails(map[string]any{"field": "board"}))
	}
	b, err := e.boards.Board(boardID)
	if err != nil {
		return nil, e.rejected(op, actor, "", err)
	}

	var res *MoveResult
	err = e.mutate(ctx, b.ProjectID, func(tx store.Tx) error {
		it, err := loadIssue(ctx, tx, issueRef)
		if err != nil {
			return err
		}
		activeID, err := activeSprintID(ctx, tx, b.ProjectID)
		if err != nil {
			return err
		}
		if !board.OnBoard(b, it, activeID) {
			return errNotOnBoard(b, it, activeID)
		}

		res = &MoveResult{Issue: it, Board: b.ID, From: it.Status, To: dest}
		if it.Status == dest {
			if col := b.ColumnForStatus(dest); col != nil {
				res.Column = col.ID
			}
			return nil
		}
		if !issue.CanTransition(it.Status, dest) {
			return issue.ErrTransition(it, dest)
		}
		col := b.ColumnForStatus(dest)
		if col == nil {
			return apierr.Newf(apierr.NotFound, "board %q has no column for status %s", b.ID, dest).
				WithDetails(map[string]any{"board": b.ID, "status": string(dest)})
		}

		issues, err := tx.ListIssuesByProject(ctx, b.ProjectID)
		if err != nil {
			return err
		}
		occupancy := board.Occupancy(b, issues, activeID, it.ID)
		if err := board.CheckMove(b, col.ID, occupancy[col.ID]); err != nil {
			return err
		}

		if _, err := issue.Transition(it, dest, e.now()); err != nil {
			return err
		}
		res.Column = col.ID
		res.Changed = true
		return tx.SaveIssue(ctx, it)
	})
	if err != nil {
		return nil, e.rejected(op, actor, b.ProjectID, err)
	}
	if res.Changed {
		e.recorded(ctx, op, actor, b.ProjectID, res.Issue.Key, string(res.From)+" -> "+string(res.To))
	}
	return res, nil
}

func errNotOnBoard(b *board.Board, it *issue.Issue, activeSprintID string) *apierr.Error {
	details := map[string]any{"board": b.ID, "issue": it.Key, "project": it.ProjectID}
	switch {
	case it.ProjectID != b.ProjectID:
		return apierr.Newf(apierr.NotOnBoard, "%s belongs to project %s, board %q shows %s",
			it.Key, it.ProjectID, b.ID, b.ProjectID).WithDetails(details)
	case activeSprintID == "":
		return apierr.Newf(apierr.NotOnBoard, "scrum board %q has no active sprint", b.ID).
			WithDetails(details)
	default:
		details["active_sprint"] = activeSprintID
		return apierr.Newf(apierr.NotOnBoard, "%s is not in the active sprint of board %q", it.Key, b.ID).
			WithDetails(details)
	}
}
