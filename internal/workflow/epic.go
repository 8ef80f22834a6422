package workflow

import (
	"context"

	"github.com/twiced-technology-gmbh/trackflow/internal/epic"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/permission"
	"github.com/twiced-technology-gmbh/trackflow/internal/store"
)

// EpicInput holds the fields of a new epic.
type EpicInput struct {
	ProjectID string         `json:"project_id"`
	Summary   string         `json:"summary"`
	Priority  issue.Priority `json:"priority,omitempty"`
}

// EpicProgress is an epic with its linked issues and derived progress.
type EpicProgress struct {
	Epic     *epic.Epic     `json:"epic"`
	Progress epic.Progress  `json:"progress"`
	Issues   []*issue.Issue `json:"issues"`
}

// CreateEpic creates an epic in a project.
func (e *Engine) CreateEpic(ctx context.Context, actor permission.Actor, in EpicInput) (*epic.Epic, error) {
	const op = "epic.create"
	if err := e.authorize(ctx, op, actor, permission.EpicManage); err != nil {
		return nil, err
	}
	ep, err := epic.New(e.newID(), in.ProjectID, in.Summary, in.Priority, e.now())
	if err != nil {
		return nil, e.rejected(op, actor, in.ProjectID, err)
	}
	err = e.mutate(ctx, ep.ProjectID, func(tx store.Tx) error {
		if err := requireProject(ctx, tx, ep.ProjectID); err != nil {
			return err
		}
		return tx.SaveEpic(ctx, ep)
	})
	if err != nil {
		return nil, e.rejected(op, actor, ep.ProjectID, err)
	}
	e.recorded(ctx, op, actor, ep.ProjectID, ep.ID, ep.Summary)
	return ep, nil
}

// AttachToEpic links an issue to an epic, replacing any previous link.
func (e *Engine) AttachToEpic(ctx context.Context, actor permission.Actor, issueRef, epicID string) (*issue.Issue, error) {
	const op = "epic.attach"
	return e.editEpicLink(ctx, actor, op, issueRef, func(tx store.Tx, it *issue.Issue) (bool, error) {
		ep, err := tx.GetEpic(ctx, epicID)
		if err != nil {
			return false, err
		}
		return epic.Attach(ep, it, e.now())
	}, "attached to epic "+epicID)
}

// DetachFromEpic clears an issue's epic link. The issue itself is kept.
func (e *Engine) DetachFromEpic(ctx context.Context, actor permission.Actor, issueRef string) (*issue.Issue, error) {
	const op = "epic.detach"
	return e.editEpicLink(ctx, actor, op, issueRef, func(_ store.Tx, it *issue.Issue) (bool, error) {
		return epic.Detach(it, e.now()), nil
	}, "detached from epic")
}

func (e *Engine) editEpicLink(ctx context.Context, actor permission.Actor, op, issueRef string,
	apply func(tx store.Tx, it *issue.Issue) (bool, error), detail string,
) (*issue.Issue, error) {
	if err := e.authorize(ctx, op, actor, permission.IssueEdit); err != nil {
		return nil, err
	}
	found, err := loadIssue(ctx, e.store, issueRef)
	if err != nil {
		return nil, e.rejected(op, actor, "", err)
	}
	projectID := found.ProjectID

	var (
		it      *issue.Issue
		changed bool
	)
	err = e.mutate(ctx, projectID, func(tx store.Tx) error {
		var err error
		it, err = tx.GetIssue(ctx, found.ID)
		if err != nil {
			return err
		}
		changed, err = apply(tx, it)
		if err != nil || !changed {
			return err
		}
		return tx.SaveIssue(ctx, it)
	})
	if err != nil {
		return nil, e.rejected(op, actor, projectID, err)
	}
	if changed {
		e.recorded(ctx, op, actor, projectID, it.Key, detail)
	}
	return it, nil
}

// ComputeEpicProgress derives an epic's progress from its linked issues.
func (e *Engine) ComputeEpicProgress(ctx context.Context, epicID string) (*EpicProgress, error) {
	ep, err := e.store.GetEpic(ctx, epicID)
	if err != nil {
		return nil, err
	}
	linked, err := e.store.ListIssuesByEpic(ctx, ep.ID)
	if err != nil {
		return nil, err
	}
	return &EpicProgress{Epic: ep, Progress: epic.ProgressOf(ep, linked), Issues: linked}, nil
}

// GetEpic returns an epic by ID.
func (e *Engine) GetEpic(ctx context.Context, epicID string) (*epic.Epic, error) {
	return e.store.GetEpic(ctx, epicID)
}

// ListEpics returns the project's epics in creation order.
func (e *Engine) ListEpics(ctx context.Context, projectID string) ([]*epic.Epic, error) {
	if err := requireProject(ctx, e.store, projectID); err != nil {
		return nil, err
	}
	return e.store.ListEpicsByProject(ctx, projectID)
}
