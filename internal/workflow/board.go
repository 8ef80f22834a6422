package workflow

import (
	"context"
	"sort"

	"github.com/twiced-technology-gmbh/trackflow/internal/board"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

// BoardColumn is one column of a rendered board.
type BoardColumn struct {
	board.ColumnSummary
	Issues []*issue.Issue `json:"issues"`
}

// BoardView is the board overview together with the issues per column.
type BoardView struct {
	Board    *board.Board   `json:"board"`
	Overview board.Overview `json:"overview"`
	Columns  []BoardColumn  `json:"columns"`
}

// BoardView renders a board. Scrum boards show only the active sprint.
// Within a column, higher priority comes first, then creation order.
func (e *Engine) BoardView(ctx context.Context, boardID string) (*BoardView, error) {
	b, err := e.boards.Board(boardID)
	if err != nil {
		return nil, err
	}
	issues, err := e.store.ListIssuesByProject(ctx, b.ProjectID)
	if err != nil {
		return nil, err
	}
	activeID, err := activeSprintID(ctx, e.store, b.ProjectID)
	if err != nil {
		return nil, err
	}

	byColumn := make(map[string][]*issue.Issue, len(b.Columns))
	for _, it := range issues {
		if !board.OnBoard(b, it, activeID) {
			continue
		}
		if col := b.ColumnForStatus(it.Status); col != nil {
			byColumn[col.ID] = append(byColumn[col.ID], it)
		}
	}

	ov := board.Summary(b, issues, activeID)
	view := &BoardView{Board: b, Overview: ov, Columns: make([]BoardColumn, len(ov.Columns))}
	for i, cs := range ov.Columns {
		col := byColumn[cs.Column]
		sort.SliceStable(col, func(a, c int) bool {
			if col[a].Priority.Rank() != col[c].Priority.Rank() {
				return col[a].Priority.Rank() > col[c].Priority.Rank()
			}
			return board.LessCreated(col[a], col[c])
		})
		if col == nil {
			col = []*issue.Issue{}
		}
		view.Columns[i] = BoardColumn{ColumnSummary: cs, Issues: col}
	}
	return view, nil
}
