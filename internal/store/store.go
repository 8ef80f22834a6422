// Package store defines the entity repository the workflow engine reads and
// writes. Implementations live in the memory and sqlite subpackages.
package store

import (
	"context"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/epic"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/project"
	"github.com/twiced-technology-gmbh/trackflow/internal/sprint"
)

// ErrNotFound matches any NOT_FOUND error returned by a repository.
var ErrNotFound = apierr.ErrNotFound

// Reader is the read side of the repository. List results are ordered by
// creation time; projects are ordered by key.
type Reader interface {
	GetIssue(ctx context.Context, id string) (*issue.Issue, error)
	GetIssueByKey(ctx context.Context, key string) (*issue.Issue, error)
	ListIssuesByProject(ctx context.Context, projectID string) ([]*issue.Issue, error)
	ListIssuesBySprint(ctx context.Context, sprintID string) ([]*issue.Issue, error)
	ListIssuesByEpic(ctx context.Context, epicID string) ([]*issue.Issue, error)

	GetSprint(ctx context.Context, id string) (*sprint.Sprint, error)
	ListSprintsByProject(ctx context.Context, projectID string) ([]*sprint.Sprint, error)

	GetEpic(ctx context.Context, id string) (*epic.Epic, error)
	ListEpicsByProject(ctx context.Context, projectID string) ([]*epic.Epic, error)

	GetProject(ctx context.Context, id string) (*project.Project, error)
	ListProjects(ctx context.Context) ([]*project.Project, error)
}

// Writer is the write side of the repository. Save methods insert or replace.
type Writer interface {
	SaveIssue(ctx context.Context, it *issue.Issue) error
	DeleteIssue(ctx context.Context, id string) error
	SaveSprint(ctx context.Context, s *sprint.Sprint) error
	SaveEpic(ctx context.Context, e *epic.Epic) error
	SaveProject(ctx context.Context, p *project.Project) error
}

// Tx is the view of the repository inside a transaction.
type Tx interface {
	Reader
	Writer
}

// Store is a transactional entity repository. Entities returned by a Store
// are copies; mutating them has no effect until they are saved.
type Store interface {
	Reader
	Writer

	// RunInTransaction runs fn atomically. If fn returns an error or panics,
	// nothing it wrote is kept.
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

// NotFound builds the NOT_FOUND error for a missing entity.
func NotFound(kind, id string) *apierr.Error {
	return apierr.Newf(apierr.NotFound, "%s %q not found", kind, id).
		WithDetails(map[string]any{"kind": kind, "id": id})
}
