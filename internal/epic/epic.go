// Package epic defines epics and derives their progress from linked issues.
package epic

import (
	"math"
	"strings"
	"time"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

// Epic groups non-epic issues; its progress is derived, never stored.
type Epic struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Summary   string         `json:"summary"`
	Priority  issue.Priority `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// New validates the inputs and returns an epic.
func New(id, projectID, summary string, priority issue.Priority, now time.Time) (*Epic, error) {
	e := &Epic{
		ID:        id,
		ProjectID: projectID,
		Summary:   strings.TrimSpace(summary),
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if e.Priority == "" {
		e.Priority = issue.PriorityMedium
	}
	if err := issue.ValidateSummary(e.Summary); err != nil {
		return nil, err
	}
	p, err := issue.ParsePriority(string(e.Priority))
	if err != nil {
		return nil, err
	}
	e.Priority = p
	return e, nil
}

// Attach links it to e. Epic-type issues cannot be linked and the issue must
// belong to the epic's project. Re-attaching to the same epic is a no-op.
func Attach(e *Epic, it *issue.Issue, now time.Time) (bool, error) {
	if it.IsEpic() {
		return false, issue.ErrEpicNesting(it.Key)
	}
	if it.ProjectID != e.ProjectID {
		return false, apierr.Newf(apierr.InvalidInput,
			"%s belongs to project %s, epic %q to %s", it.Key, it.ProjectID, e.Summary, e.ProjectID).
			WithDetails(map[string]any{"issue": it.Key, "epic": e.ID})
	}
	if it.EpicID == e.ID {
		return false, nil
	}
	it.EpicID = e.ID
	it.Touch(now)
	return true, nil
}

// Detach clears the issue's epic link. It reports whether anything changed.
func Detach(it *issue.Issue, now time.Time) bool {
	if it.EpicID == "" {
		return false
	}
	it.EpicID = ""
	it.Touch(now)
	return true
}

// Progress is the derived completion state of an epic.
type Progress struct {
	EpicID               string `json:"epic_id"`
	Total                int    `json:"total"`
	Completed            int    `json:"completed"`
	InProgress           int    `json:"in_progress"`
	Todo                 int    `json:"todo"`
	ProgressPercent      int    `json:"progress_percent"`
	TotalStoryPoints     int    `json:"total_story_points"`
	CompletedStoryPoints int    `json:"completed_story_points"`
}

// ProgressOf aggregates the issues linked to e. Issues linked elsewhere and
// epic-type issues are ignored. An epic with no linked issues is at 0%.
func ProgressOf(e *Epic, linked []*issue.Issue) Progress {
	p := Progress{EpicID: e.ID}
	for _, it := range linked {
		if it.EpicID != e.ID || it.IsEpic() {
			continue
		}
		p.Total++
		p.TotalStoryPoints += it.Points()
		switch it.Status {
		case issue.StatusDone:
			p.Completed++
			p.CompletedStoryPoints += it.Points()
		case issue.StatusInProgress:
			p.InProgress++
		case issue.StatusToDo:
			p.Todo++
		}
	}
	if p.Total > 0 {
		p.ProgressPercent = int(math.Round(100 * float64(p.Completed) / float64(p.Total)))
	}
	return p
}
