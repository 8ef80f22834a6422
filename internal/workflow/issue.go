package workflow

import (
	"context"
	"slices"
	"strings"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/backlog"
	"github.com/twiced-technology-gmbh/trackflow/internal/board"
	"github.com/twiced-technology-gmbh/trackflow/internal/epic"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/permission"
	"github.com/twiced-technology-gmbh/trackflow/internal/sprint"
	"github.com/twiced-technology-gmbh/trackflow/internal/store"
)

// IssueInput holds the fields of a new issue. Empty Type and Priority take
// the task/medium defaults.
type IssueInput struct {
	ProjectID   string         `json:"project_id"`
	Type        issue.Type     `json:"type,omitempty"`
	Priority    issue.Priority `json:"priority,omitempty"`
	Summary     string         `json:"summary"`
	Description string         `json:"description,omitempty"`
	StoryPoints *int           `json:"story_points,omitempty"`
	AssigneeID  string         `json:"assignee_id,omitempty"`
	SprintID    string         `json:"sprint_id,omitempty"`
	EpicID      string         `json:"epic_id,omitempty"`
}

// IssuePatch lists the fields UpdateIssue changes. Nil fields are kept.
type IssuePatch struct {
	Summary          *string         `json:"summary,omitempty"`
	Description      *string         `json:"description,omitempty"`
	Type             *issue.Type     `json:"type,omitempty"`
	Priority         *issue.Priority `json:"priority,omitempty"`
	AssigneeID       *string         `json:"assignee_id,omitempty"`
	StoryPoints      *int            `json:"story_points,omitempty"`
	ClearStoryPoints bool            `json:"clear_story_points,omitempty"`
}

// ListOptions controls filtering and ordering of issue listings.
type ListOptions struct {
	Filter  board.FilterOptions
	SortBy  string
	Reverse bool
	Limit   int
}

func (o ListOptions) validate() error {
	if o.SortBy != "" && !slices.Contains(board.ValidSortFields(), o.SortBy) {
		return apierr.Newf(apierr.InvalidInput, "invalid sort field %q", o.SortBy).
			WithDetails(map[string]any{"field": "sort", "input": o.SortBy, "allowed": board.ValidSortFields()})
	}
	if o.Limit < 0 {
		return apierr.New(apierr.InvalidInput, "limit must not be negative").
			WithDetails(map[string]any{"field": "limit"})
	}
	return nil
}

// CreateIssue creates an issue in To Do and allocates its key. The issue
// may be placed in a sprint and linked to an epic in the same transaction.
func (e *Engine) CreateIssue(ctx context.Context, actor permission.Actor, in IssueInput) (*issue.Issue, error) {
	const op = "issue.create"
	if err := e.authorize(ctx, op, actor, permission.IssueCreate); err != nil {
		return nil, err
	}
	if in.ProjectID == "" {
		return nil, e.rejected(op, actor, "", apierr.New(apierr.InvalidInput, "project is required").
			WithDetails(map[string]any{"field": "project"}))
	}

	now := e.now()
	it := &issue.Issue{
		ID:          e.newID(),
		ProjectID:   in.ProjectID,
		Type:        in.Type,
		Status:      issue.StatusToDo,
		Priority:    in.Priority,
		Summary:     strings.TrimSpace(in.Summary),
		Description: in.Description,
		StoryPoints: in.StoryPoints,
		AssigneeID:  in.AssigneeID,
		ReporterID:  actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if it.Type == "" {
		it.Type = issue.TypeTask
	}
	if it.Priority == "" {
		it.Priority = issue.PriorityMedium
	}
	if err := issue.Validate(it); err != nil {
		return nil, e.rejected(op, actor, in.ProjectID, err)
	}

	err := e.mutate(ctx, in.ProjectID, func(tx store.Tx) error {
		p, err := tx.GetProject(ctx, in.ProjectID)
		if err != nil {
			return err
		}
		it.Key = p.AllocateKey()
		if in.SprintID != "" {
			s, err := tx.GetSprint(ctx, in.SprintID)
			if err != nil {
				return err
			}
			if _, err := sprint.AddIssue(s, it, now); err != nil {
				return err
			}
		}
		if in.EpicID != "" {
			ep, err := tx.GetEpic(ctx, in.EpicID)
			if err != nil {
				return err
			}
			if _, err := epic.Attach(ep, it, now); err != nil {
				return err
			}
		}
		if err := tx.SaveIssue(ctx, it); err != nil {
			return err
		}
		return tx.SaveProject(ctx, p)
	})
	if err != nil {
		return nil, e.rejected(op, actor, in.ProjectID, err)
	}
	e.recorded(ctx, op, actor, it.ProjectID, it.Key, it.Summary)
	return it, nil
}

// UpdateIssue edits descriptive fields. Status, sprint and epic have their
// own operations.
func (e *Engine) UpdateIssue(ctx context.Context, actor permission.Actor, issueRef string, patch IssuePatch) (*issue.Issue, error) {
	const op = "issue.edit"
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
		changed []string
	)
	err = e.mutate(ctx, projectID, func(tx store.Tx) error {
		var err error
		it, err = tx.GetIssue(ctx, found.ID)
		if err != nil {
			return err
		}
		changed = applyPatch(it, patch)
		if len(changed) == 0 {
			return nil
		}
		if err := issue.Validate(it); err != nil {
			return err
		}
		it.Touch(e.now())
		return tx.SaveIssue(ctx, it)
	})
	if err != nil {
		return nil, e.rejected(op, actor, projectID, err)
	}
	if len(changed) > 0 {
		e.recorded(ctx, op, actor, projectID, it.Key, strings.Join(changed, ","))
	}
	return it, nil
}

// applyPatch applies p to it and returns the names of the changed fields.
func applyPatch(it *issue.Issue, p IssuePatch) []string {
	var changed []string
	if p.Summary != nil && strings.TrimSpace(*p.Summary) != it.Summary {
		it.Summary = strings.TrimSpace(*p.Summary)
		changed = append(changed, "summary")
	}
	if p.Description != nil && *p.Description != it.Description {
		it.Description = *p.Description
		changed = append(changed, "description")
	}
	if p.Type != nil && *p.Type != it.Type {
		it.Type = *p.Type
		changed = append(changed, "type")
	}
	if p.Priority != nil && *p.Priority != it.Priority {
		it.Priority = *p.Priority
		changed = append(changed, "priority")
	}
	if p.AssigneeID != nil && *p.AssigneeID != it.AssigneeID {
		it.AssigneeID = *p.AssigneeID
		changed = append(changed, "assignee")
	}
	switch {
	case p.ClearStoryPoints:
		if it.StoryPoints != nil {
			it.StoryPoints = nil
			changed = append(changed, "story_points")
		}
	case p.StoryPoints != nil:
		if it.StoryPoints == nil || *it.StoryPoints != *p.StoryPoints {
			v := *p.StoryPoints
			it.StoryPoints = &v
			changed = append(changed, "story_points")
		}
	}
	return changed
}

// DeleteIssue removes an issue. Sprint and epic views derive membership
// from issues, so nothing else needs updating.
func (e *Engine) DeleteIssue(ctx context.Context, actor permission.Actor, issueRef string) (*issue.Issue, error) {
	const op = "issue.delete"
	if err := e.authorize(ctx, op, actor, permission.IssueDelete); err != nil {
		return nil, err
	}
	found, err := loadIssue(ctx, e.store, issueRef)
	if err != nil {
		return nil, e.rejected(op, actor, "", err)
	}
	err = e.mutate(ctx, found.ProjectID, func(tx store.Tx) error {
		return tx.DeleteIssue(ctx, found.ID)
	})
	if err != nil {
		return nil, e.rejected(op, actor, found.ProjectID, err)
	}
	e.recorded(ctx, op, actor, found.ProjectID, found.Key, found.Summary)
	return found, nil
}

// GetIssue returns an issue by ID or key.
func (e *Engine) GetIssue(ctx context.Context, issueRef string) (*issue.Issue, error) {
	return loadIssue(ctx, e.store, issueRef)
}

// ListIssues returns the project's issues, filtered and sorted. The default
// order is creation order.
func (e *Engine) ListIssues(ctx context.Context, projectID string, opts ListOptions) ([]*issue.Issue, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := requireProject(ctx, e.store, projectID); err != nil {
		return nil, err
	}
	issues, err := e.store.ListIssuesByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	issues = board.Filter(issues, opts.Filter)
	if opts.SortBy != "" {
		board.Sort(issues, opts.SortBy, opts.Reverse)
	} else if opts.Reverse {
		board.Sort(issues, "created", true)
	}
	if opts.Limit > 0 && len(issues) > opts.Limit {
		issues = issues[:opts.Limit]
	}
	if issues == nil {
		issues = []*issue.Issue{}
	}
	return issues, nil
}

// ComputeBacklog returns the project's issues that no open sprint claims.
func (e *Engine) ComputeBacklog(ctx context.Context, projectID string, opts ListOptions) ([]*issue.Issue, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := requireProject(ctx, e.store, projectID); err != nil {
		return nil, err
	}
	issues, err := e.store.ListIssuesByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sprints, err := e.store.ListSprintsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return backlog.Of(projectID, issues, sprints, backlog.Options(opts)), nil
}
