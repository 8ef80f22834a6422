// Package memory implements store.Store in process memory. It backs tests
// and the "memory" storage driver.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/twiced-technology-gmbh/trackflow/internal/epic"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/project"
	"github.com/twiced-technology-gmbh/trackflow/internal/sprint"
	"github.com/twiced-technology-gmbh/trackflow/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps every entity in maps. Transactions work on a copy of the
// state that replaces the live state on commit.
type Store struct {
	writeMu sync.Mutex // serializes writers and transactions
	mu      sync.RWMutex
	st      *state
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) write(fn func(*state) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// RunInTransaction implements store.Store.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	snap := s.st.clone()
	s.mu.RUnlock()

	if err := fn(snap); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = snap
	s.mu.Unlock()
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// GetIssue implements store.Reader. Every read holds the read lock while
// copying entities out.
func (s *Store) GetIssue(ctx context.Context, id string) (*issue.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetIssue(ctx, id)
}

func (s *Store) GetIssueByKey(ctx context.Context, key string) (*issue.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetIssueByKey(ctx, key)
}

func (s *Store) ListIssuesByProject(ctx context.Context, projectID string) ([]*issue.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListIssuesByProject(ctx, projectID)
}

func (s *Store) ListIssuesBySprint(ctx context.Context, sprintID string) ([]*issue.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListIssuesBySprint(ctx, sprintID)
}

func (s *Store) ListIssuesByEpic(ctx context.Context, epicID string) ([]*issue.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListIssuesByEpic(ctx, epicID)
}

func (s *Store) GetSprint(ctx context.Context, id string) (*sprint.Sprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetSprint(ctx, id)
}

func (s *Store) ListSprintsByProject(ctx context.Context, projectID string) ([]*sprint.Sprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListSprintsByProject(ctx, projectID)
}

func (s *Store) GetEpic(ctx context.Context, id string) (*epic.Epic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetEpic(ctx, id)
}

func (s *Store) ListEpicsByProject(ctx context.Context, projectID string) ([]*epic.Epic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListEpicsByProject(ctx, projectID)
}

func (s *Store) GetProject(ctx context.Context, id string) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetProject(ctx, id)
}

func (s *Store) ListProjects(ctx context.Context) ([]*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListProjects(ctx)
}

func (s *Store) SaveIssue(ctx context.Context, it *issue.Issue) error {
	return s.write(func(st *state) error { return st.SaveIssue(ctx, it) })
}

func (s *Store) DeleteIssue(ctx context.Context, id string) error {
	return s.write(func(st *state) error { return st.DeleteIssue(ctx, id) })
}

func (s *Store) SaveSprint(ctx context.Context, sp *sprint.Sprint) error {
	return s.write(func(st *state) error { return st.SaveSprint(ctx, sp) })
}

func (s *Store) SaveEpic(ctx context.Context, e *epic.Epic) error {
	return s.write(func(st *state) error { return st.SaveEpic(ctx, e) })
}

func (s *Store) SaveProject(ctx context.Context, p *project.Project) error {
	return s.write(func(st *state) error { return st.SaveProject(ctx, p) })
}

// state is the unlocked entity set. It implements store.Tx.
type state struct {
	issues   map[string]*issue.Issue
	sprints  map[string]*sprint.Sprint
	epics    map[string]*epic.Epic
	projects map[string]*project.Project
}

func newState() *state {
	return &state{
		issues:   make(map[string]*issue.Issue),
		sprints:  make(map[string]*sprint.Sprint),
		epics:    make(map[string]*epic.Epic),
		projects: make(map[string]*project.Project),
	}
}

// clone copies the maps; entities are immutable once stored, so pointers are shared.
func (st *state) clone() *state {
	c := newState()
	for k, v := range st.issues {
		c.issues[k] = v
	}
	for k, v := range st.sprints {
		c.sprints[k] = v
	}
	for k, v := range st.epics {
		c.epics[k] = v
	}
	for k, v := range st.projects {
		c.projects[k] = v
	}
	return c
}

func (st *state) GetIssue(_ context.Context, id string) (*issue.Issue, error) {
	it, ok := st.issues[id]
	if !ok {
		return nil, store.NotFound("issue", id)
	}
	return it.Clone(), nil
}

func (st *state) GetIssueByKey(_ context.Context, key string) (*issue.Issue, error) {
	for _, it := range st.issues {
		if it.Key == key {
			return it.Clone(), nil
		}
	}
	return nil, store.NotFound("issue", key)
}

func (st *state) listIssues(keep func(*issue.Issue) bool) []*issue.Issue {
	out := make([]*issue.Issue, 0)
	for _, it := range st.issues {
		if keep(it) {
			out = append(out, it.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (st *state) ListIssuesByProject(_ context.Context, projectID string) ([]*issue.Issue, error) {
	return st.listIssues(func(it *issue.Issue) bool { return it.ProjectID == projectID }), nil
}

func (st *state) ListIssuesBySprint(_ context.Context, sprintID string) ([]*issue.Issue, error) {
	return st.listIssues(func(it *issue.Issue) bool { return sprintID != "" && it.SprintID == sprintID }), nil
}

func (st *state) ListIssuesByEpic(_ context.Context, epicID string) ([]*issue.Issue, error) {
	return st.listIssues(func(it *issue.Issue) bool { return epicID != "" && it.EpicID == epicID }), nil
}

func (st *state) GetSprint(_ context.Context, id string) (*sprint.Sprint, error) {
	s, ok := st.sprints[id]
	if !ok {
		return nil, store.NotFound("sprint", id)
	}
	return s.Clone(), nil
}

func (st *state) ListSprintsByProject(_ context.Context, projectID string) ([]*sprint.Sprint, error) {
	out := make([]*sprint.Sprint, 0)
	for _, s := range st.sprints {
		if s.ProjectID == projectID {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (st *state) GetEpic(_ context.Context, id string) (*epic.Epic, error) {
	e, ok := st.epics[id]
	if !ok {
		return nil, store.NotFound("epic", id)
	}
	c := *e
	return &c, nil
}

func (st *state) ListEpicsByProject(_ context.Context, projectID string) ([]*epic.Epic, error) {
	out := make([]*epic.Epic, 0)
	for _, e := range st.epics {
		if e.ProjectID == projectID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (st *state) GetProject(_ context.Context, id string) (*project.Project, error) {
	p, ok := st.projects[id]
	if !ok {
		return nil, store.NotFound("project", id)
	}
	c := *p
	return &c, nil
}

func (st *state) ListProjects(_ context.Context) ([]*project.Project, error) {
	out := make([]*project.Project, 0, len(st.projects))
	for _, p := range st.projects {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (st *state) SaveIssue(_ context.Context, it *issue.Issue) error {
	st.issues[it.ID] = it.Clone()
	return nil
}

func (st *state) DeleteIssue(_ context.Context, id string) error {
	if _, ok := st.issues[id]; !ok {
		return store.NotFound("issue", id)
	}
	delete(st.issues, id)
	return nil
}

func (st *state) SaveSprint(_ context.Context, s *sprint.Sprint) error {
	st.sprints[s.ID] = s.Clone()
	return nil
}

func (st *state) SaveEpic(_ context.Context, e *epic.Epic) error {
	c := *e
	st.epics[e.ID] = &c
	return nil
}

func (st *state) SaveProject(_ context.Context, p *project.Project) error {
	c := *p
	st.projects[p.ID] = &c
	return nil
}
