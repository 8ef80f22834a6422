package board

import (
	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

// CheckMove decides whether one more issue may enter destColumnID given the
// number of issues already resident there, not counting the moving issue.
// It reserves nothing; callers must serialize check and write.
func CheckMove(b *Board, destColumnID string, occupancy int) error {
	col := b.Column(destColumnID)
	if col == nil {
		return apierr.Newf(apierr.NotFound, "column %q not found on board %q", destColumnID, b.ID).
			WithDetails(map[string]any{"board": b.ID, "column": destColumnID})
	}
	if col.WIPLimit == 0 || occupancy < col.WIPLimit {
		return nil
	}
	return ErrWIPLimit(b, col, occupancy)
}

// ErrWIPLimit builds the WIP_LIMIT_EXCEEDED error for a full column.
func ErrWIPLimit(b *Board, col *Column, current int) *apierr.Error {
	return apierr.Newf(apierr.WipLimitExceeded,
		"WIP limit reached for %q (%d/%d)", col.Name, current, col.WIPLimit).
		WithDetails(map[string]any{
			"board":   b.ID,
			"column":  col.ID,
			"status":  string(col.Status),
			"limit":   col.WIPLimit,
			"current": current,
		})
}

// OnBoard reports whether it is shown on b. Scrum boards show only members
// of the active sprint; with no active sprint they show nothing.
func OnBoard(b *Board, it *issue.Issue, activeSprintID string) bool {
	if it.ProjectID != b.ProjectID {
		return false
	}
	if b.IsScrum() {
		return activeSprintID != "" && it.SprintID == activeSprintID
	}
	return true
}

// Occupancy counts the issues resident in each column of b, skipping
// excludeIssueID so a moving issue is counted before the move.
func Occupancy(b *Board, issues []*issue.Issue, activeSprintID, excludeIssueID string) map[string]int {
	counts := make(map[string]int, len(b.Columns))
	for _, it := range issues {
		if it.ID == excludeIssueID || !OnBoard(b, it, activeSprintID) {
			continue
		}
		if col := b.ColumnForStatus(it.Status); col != nil {
			counts[col.ID]++
		}
	}
	return counts
}

// CountByStatus returns the number of issues in each status.
func CountByStatus(issues []*issue.Issue) map[issue.Status]int {
	counts := make(map[issue.Status]int)
	for _, it := range issues {
		counts[it.Status]++
	}
	return counts
}
