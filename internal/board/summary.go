package board

import "github.com/twiced-technology-gmbh/trackflow/internal/issue"

// ColumnSummary holds metrics for a single board column.
type ColumnSummary struct {
	Column      string       `json:"column"`
	Name        string       `json:"name"`
	Status      issue.Status `json:"status"`
	Count       int          `json:"count"`
	WIPLimit    int          `json:"wip_limit,omitempty"`
	OverLimit   bool         `json:"over_limit,omitempty"`
	StoryPoints int          `json:"story_points"`
}

// PriorityCount holds a count for a priority level.
type PriorityCount struct {
	Priority issue.Priority `json:"priority"`
	Count    int            `json:"count"`
}

// Overview is the aggregate board overview.
type Overview struct {
	BoardID     string          `json:"board_id"`
	BoardName   string          `json:"board_name"`
	ProjectID   string          `json:"project_id"`
	Kind        Kind            `json:"kind"`
	SprintID    string          `json:"sprint_id,omitempty"`
	TotalIssues int             `json:"total_issues"`
	Columns     []ColumnSummary `json:"columns"`
	Priorities  []PriorityCount `json:"priorities"`
}

// Summary computes a board overview from the project's issues. Only issues
// shown on the board are counted. OverLimit flags columns holding more
// issues than their limit, which happens when a limit is lowered.
func Summary(b *Board, issues []*issue.Issue, activeSprintID string) Overview {
	colMap := make(map[string]*ColumnSummary, len(b.Columns))
	columns := make([]ColumnSummary, len(b.Columns))
	for i, col := range b.Columns {
		columns[i] = ColumnSummary{
			Column:   col.ID,
			Name:     col.Name,
			Status:   col.Status,
			WIPLimit: col.WIPLimit,
		}
		colMap[col.ID] = &columns[i]
	}

	prioMap := make(map[issue.Priority]int, len(issue.Priorities))
	total := 0
	for _, it := range issues {
		if !OnBoard(b, it, activeSprintID) {
			continue
		}
		total++
		if col := b.ColumnForStatus(it.Status); col != nil {
			cs := colMap[col.ID]
			cs.Count++
			cs.StoryPoints += it.Points()
		}
		prioMap[it.Priority]++
	}

	for i := range columns {
		columns[i].OverLimit = columns[i].WIPLimit > 0 && columns[i].Count > columns[i].WIPLimit
	}

	priorities := make([]PriorityCount, 0, len(issue.Priorities))
	for _, p := range issue.Priorities {
		priorities = append(priorities, PriorityCount{Priority: p, Count: prioMap[p]})
	}

	ov := Overview{
		BoardID:     b.ID,
		BoardName:   b.Name,
		ProjectID:   b.ProjectID,
		Kind:        b.Kind,
		TotalIssues: total,
		Columns:     columns,
		Priorities:  priorities,
	}
	if b.IsScrum() {
		ov.SprintID = activeSprintID
	}
	return ov
}
