package workflow

import (
	"context"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/permission"
	"github.com/twiced-technology-gmbh/trackflow/internal/project"
	"github.com/twiced-technology-gmbh/trackflow/internal/store"
)

// CreateProject registers a project under its key.
func (e *Engine) CreateProject(ctx context.Context, actor permission.Actor, key, name string) (*project.Project, error) {
	const op = "project.create"
	if err := e.authorize(ctx, op, actor, permission.ProjectManage); err != nil {
		return nil, err
	}
	p, err := project.New(key, name, e.now())
	if err != nil {
		return nil, e.rejected(op, actor, "", err)
	}
	err = e.mutate(ctx, p.ID, func(tx store.Tx) error {
		_, err := tx.GetProject(ctx, p.ID)
		switch {
		case err == nil:
			return apierr.Newf(apierr.InvalidInput, "project %s already exists", p.ID).
				WithDetails(map[string]any{"field": "project", "input": p.ID})
		case !apierr.Is(err, apierr.NotFound):
			return err
		}
		return tx.SaveProject(ctx, p)
	})
	if err != nil {
		return nil, e.rejected(op, actor, p.ID, err)
	}
	e.recorded(ctx, op, actor, p.ID, p.ID, p.Name)
	return p, nil
}

// GetProject returns a project by key.
func (e *Engine) GetProject(ctx context.Context, key string) (*project.Project, error) {
	return e.store.GetProject(ctx, key)
}

// ListProjects returns every project ordered by key.
func (e *Engine) ListProjects(ctx context.Context) ([]*project.Project, error) {
	return e.store.ListProjects(ctx)
}
