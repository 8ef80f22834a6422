package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/date"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/permission"
	"github.com/twiced-technology-gmbh/trackflow/internal/sprint"
	"github.com/twiced-technology-gmbh/trackflow/internal/store"
)

// SprintInput holds the fields of a new sprint.
type SprintInput struct {
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Goal      string    `json:"goal,omitempty"`
	StartDate date.Date `json:"start_date"`
	EndDate   date.Date `json:"end_date"`
}

// PlanResult lists the issues PlanSprint assigned and those already in the sprint.
type PlanResult struct {
	Sprint    *sprint.Sprint `json:"sprint"`
	Added     []string       `json:"added"`
	Unchanged []string       `json:"unchanged"`
}

// SprintReport is a sprint with its members and derived statistics.
type SprintReport struct {
	Sprint *sprint.Sprint `json:"sprint"`
	Stats  sprint.Stats   `json:"stats"`
	Issues []*issue.Issue `json:"issues"`
}

// CreateSprint creates a Planned sprint.
func (e *Engine) CreateSprint(ctx context.Context, actor permission.Actor, in SprintInput) (*sprint.Sprint, error) {
	const op = "sprint.create"
	if err := e.authorize(ctx, op, actor, permission.SprintManage); err != nil {
		return nil, err
	}
	s, err := sprint.New(e.newID(), in.ProjectID, in.Name, in.Goal, in.StartDate, in.EndDate, e.now())
	if err != nil {
		return nil, e.rejected(op, actor, in.ProjectID, err)
	}
	err = e.mutate(ctx, s.ProjectID, func(tx store.Tx) error {
		if err := requireProject(ctx, tx, s.ProjectID); err != nil {
			return err
		}
		return tx.SaveSprint(ctx, s)
	})
	if err != nil {
		return nil, e.rejected(op, actor, s.ProjectID, err)
	}
	e.recorded(ctx, op, actor, s.ProjectID, s.ID, s.Name)
	return s, nil
}

// PlanSprint assigns issues to a sprint. Issues in another open sprint
// move over; stale references to completed sprints are replaced. The whole
// batch is applied or nothing is.
func (e *Engine) PlanSprint(ctx context.Context, actor permission.Actor, sprintID string, issueRefs []string) (*PlanResult, error) {
	const op = "sprint.plan"
	if err := e.authorize(ctx, op, actor, permission.SprintPlan); err != nil {
		return nil, err
	}
	if len(issueRefs) == 0 {
		return nil, e.rejected(op, actor, "", apierr.New(apierr.InvalidInput, "no issues to plan").
			WithDetails(map[string]any{"field": "issues"}))
	}
	s, err := e.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, e.rejected(op, actor, "", err)
	}

	var res *PlanResult
	err = e.mutate(ctx, s.ProjectID, func(tx store.Tx) error {
		s, err := tx.GetSprint(ctx, sprintID)
		if err != nil {
			return err
		}
		res = &PlanResult{Sprint: s, Added: []string{}, Unchanged: []string{}}
		seen := make(map[string]bool, len(issueRefs))
		now := e.now()
		for _, ref := range issueRefs {
			it, err := loadIssue(ctx, tx, ref)
			if err != nil {
				return err
			}
			if seen[it.ID] {
				continue
			}
			seen[it.ID] = true
			changed, err := sprint.AddIssue(s, it, now)
			if err != nil {
				return err
			}
			if !changed {
				res.Unchanged = append(res.Unchanged, it.Key)
				continue
			}
			if err := tx.SaveIssue(ctx, it); err != nil {
				return err
			}
			res.Added = append(res.Added, it.Key)
		}
		return nil
	})
	if err != nil {
		return nil, e.rejected(op, actor, s.ProjectID, err)
	}
	if len(res.Added) > 0 {
		e.recorded(ctx, op, actor, s.ProjectID, s.ID, strings.Join(res.Added, ","))
	}
	return res, nil
}

// RemoveFromSprint returns an issue to the backlog. A reference to a sprint
// that no longer exists is simply cleared.
func (e *Engine) RemoveFromSprint(ctx context.Context, actor permission.Actor, issueRef string) (*issue.Issue, error) {
	const op = "sprint.remove"
	if err := e.authorize(ctx, op, actor, permission.SprintPlan); err != nil {
		return nil, err
	}
	found, err := loadIssue(ctx, e.store, issueRef)
	if err != nil {
		return nil, e.rejected(op, actor, "", err)
	}
	projectID := found.ProjectID

	var (
		it   *issue.Issue
		from string
	)
	err = e.mutate(ctx, projectID, func(tx store.Tx) error {
		var err error
		it, err = tx.GetIssue(ctx, found.ID)
		if err != nil {
			return err
		}
		if it.SprintID == "" {
			return apierr.Newf(apierr.InvalidInput, "%s is not in a sprint", it.Key).
				WithDetails(map[string]any{"issue": it.Key})
		}
		from = it.SprintID
		s, err := tx.GetSprint(ctx, it.SprintID)
		switch {
		case apierr.Is(err, apierr.NotFound):
			it.SprintID = ""
			it.Touch(e.now())
		case err != nil:
			return err
		default:
			if err := sprint.RemoveIssue(s, it, e.now()); err != nil {
				return err
			}
		}
		return tx.SaveIssue(ctx, it)
	})
	if err != nil {
		return nil, e.rejected(op, actor, projectID, err)
	}
	e.recorded(ctx, op, actor, projectID, it.Key, "removed from sprint "+from)
	return it, nil
}

// StartSprint activates a Planned sprint. A project has at most one active sprint.
func (e *Engine) StartSprint(ctx context.Context, actor permission.Actor, sprintID string) (*sprint.Sprint, error) {
	return e.sprintTransition(ctx, actor, "sprint.start", sprintID, sprint.Start)
}

// CompleteSprint closes an Active sprint. Its issues keep their sprint
// reference and unfinished ones reappear in the backlog.
func (e *Engine) CompleteSprint(ctx context.Context, actor permission.Actor, sprintID string) (*sprint.Sprint, error) {
	return e.sprintTransition(ctx, actor, "sprint.complete", sprintID,
		func(s *sprint.Sprint, _ []*sprint.Sprint, now time.Time) error {
			return sprint.Complete(s, now)
		})
}

func (e *Engine) sprintTransition(ctx context.Context, actor permission.Actor, op, sprintID string,
	apply func(s *sprint.Sprint, projectSprints []*sprint.Sprint, now time.Time) error,
) (*sprint.Sprint, error) {
	if err := e.authorize(ctx, op, actor, permission.SprintManage); err != nil {
		return nil, err
	}
	s, err := e.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, e.rejected(op, actor, "", err)
	}
	projectID := s.ProjectID

	err = e.mutate(ctx, projectID, func(tx store.Tx) error {
		s, err = tx.GetSprint(ctx, sprintID)
		if err != nil {
			return err
		}
		all, err := tx.ListSprintsByProject(ctx, projectID)
		if err != nil {
			return err
		}
		if err := apply(s, all, e.now()); err != nil {
			return err
		}
		return tx.SaveSprint(ctx, s)
	})
	if err != nil {
		return nil, e.rejected(op, actor, projectID, err)
	}
	e.recorded(ctx, op, actor, projectID, s.ID, s.Name)
	return s, nil
}

// GetSprint returns a sprint by ID.
func (e *Engine) GetSprint(ctx context.Context, sprintID string) (*sprint.Sprint, error) {
	return e.store.GetSprint(ctx, sprintID)
}

// ListSprints returns the project's sprints in creation order.
func (e *Engine) ListSprints(ctx context.Context, projectID string) ([]*sprint.Sprint, error) {
	if err := requireProject(ctx, e.store, projectID); err != nil {
		return nil, err
	}
	return e.store.ListSprintsByProject(ctx, projectID)
}

// SprintReport returns a sprint with its members and statistics.
func (e *Engine) SprintReport(ctx context.Context, sprintID string) (*SprintReport, error) {
	s, err := e.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	members, err := e.store.ListIssuesBySprint(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	return &SprintReport{Sprint: s, Stats: sprint.StatsOf(s, members), Issues: members}, nil
}
