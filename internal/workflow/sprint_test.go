package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/date"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/sprint"
)

func (f *fixture) createSprint(t *testing.T, name string) *sprint.Sprint {
	t.Helper()
	s, err := f.engine.CreateSprint(f.ctx, alice, SprintInput{
		ProjectID: "WEB", Name: name,
		StartDate: date.New(2026, 3, 2), EndDate: date.New(2026, 3, 16),
	})
	require.NoError(t, err)
	return s
}

func TestCreateSprintValidates(t *testing.T) {
	f := newMemoryFixture(t, 0)

	_, err := f.engine.CreateSprint(f.ctx, alice, SprintInput{
		ProjectID: "WEB", Name: "S1", StartDate: date.New(2026, 3, 16), EndDate: date.New(2026, 3, 2),
	})
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)

	_, err = f.engine.CreateSprint(f.ctx, alice, SprintInput{
		ProjectID: "NOPE", Name: "S1", StartDate: date.New(2026, 3, 2), EndDate: date.New(2026, 3, 9),
	})
	assert.ErrorIs(t, err, apierr.ErrNotFound)

	s := f.createSprint(t, "S1")
	assert.Equal(t, sprint.StatusPlanned, s.Status)
}

func TestSingleActiveSprint(t *testing.T) {
	f := newMemoryFixture(t, 0)
	s1 := f.createSprint(t, "S1")
	s2 := f.createSprint(t, "S2")

	started, err := f.engine.StartSprint(f.ctx, alice, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, sprint.StatusActive, started.Status)
	require.NotNil(t, started.StartedAt)

	_, err = f.engine.StartSprint(f.ctx, alice, s2.ID)
	require.ErrorIs(t, err, apierr.ErrConflictingActiveSprint)
	var e *apierr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, s1.ID, e.Details["active_sprint"])

	_, err = f.engine.StartSprint(f.ctx, alice, s1.ID)
	assert.ErrorIs(t, err, apierr.ErrInvalidState, "already active")

	_, err = f.engine.CompleteSprint(f.ctx, alice, s2.ID)
	assert.ErrorIs(t, err, apierr.ErrInvalidState, "planned sprint cannot complete")

	_, err = f.engine.CompleteSprint(f.ctx, alice, s1.ID)
	require.NoError(t, err)
	_, err = f.engine.StartSprint(f.ctx, alice, s2.ID)
	require.NoError(t, err, "the slot is free again")

	sprints, err := f.engine.ListSprints(f.ctx, "WEB")
	require.NoError(t, err)
	active := 0
	for _, s := range sprints {
		if s.Status == sprint.StatusActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestPlanSprint(t *testing.T) {
	f := newMemoryFixture(t, 0)
	a := f.createIssue(t, "a")
	b := f.createIssue(t, "b")
	s1 := f.createSprint(t, "S1")
	s2 := f.createSprint(t, "S2")

	res, err := f.engine.PlanSprint(f.ctx, alice, s1.ID, []string{a.Key, b.ID, a.Key})
	require.NoError(t, err)
	assert.Equal(t, []string{a.Key, b.Key}, res.Added)
	assert.Empty(t, res.Unchanged)

	res, err = f.engine.PlanSprint(f.ctx, alice, s1.ID, []string{a.Key})
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	assert.Equal(t, []string{a.Key}, res.Unchanged)

	// Planning into another open sprint moves the issue over.
	_, err = f.engine.PlanSprint(f.ctx, alice, s2.ID, []string{b.Key})
	require.NoError(t, err)
	got, err := f.engine.GetIssue(f.ctx, b.Key)
	require.NoError(t, err)
	assert.Equal(t, s2.ID, got.SprintID)

	_, err = f.engine.PlanSprint(f.ctx, alice, s1.ID, nil)
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)
	_, err = f.engine.PlanSprint(f.ctx, alice, "missing", []string{a.Key})
	assert.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestPlanSprintIsAllOrNothing(t *testing.T) {
	f := newMemoryFixture(t, 0)
	a := f.createIssue(t, "a")
	s := f.createSprint(t, "S1")

	_, err := f.engine.PlanSprint(f.ctx, alice, s.ID, []string{a.Key, "WEB-42"})
	require.ErrorIs(t, err, apierr.ErrNotFound)

	got, err := f.engine.GetIssue(f.ctx, a.Key)
	require.NoError(t, err)
	assert.Empty(t, got.SprintID)
}

func TestCompleteSprintKeepsHistory(t *testing.T) {
	f := newMemoryFixture(t, 0)
	done := f.createIssue(t, "done")
	open := f.createIssue(t, "open")
	points := 5
	_, err := f.engine.UpdateIssue(f.ctx, alice, done.Key, IssuePatch{StoryPoints: &points})
	require.NoError(t, err)

	sprintID := f.activeSprint(t, done.Key, open.Key)
	f.move(t, done.Key, issue.StatusInProgress, "sprint")
	f.move(t, done.Key, issue.StatusDone, "sprint")

	backlog, err := f.engine.ComputeBacklog(f.ctx, "WEB", ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, backlog, "active sprint members are not in the backlog")

	completed, err := f.engine.CompleteSprint(f.ctx, alice, sprintID)
	require.NoError(t, err)
	assert.Equal(t, sprint.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	report, err := f.engine.SprintReport(f.ctx, sprintID)
	require.NoError(t, err)
	assert.Len(t, report.Issues, 2)
	assert.Equal(t, sprint.Stats{
		Committed: 2, Completed: 1, Todo: 1,
		TotalStoryPoints: 5, CompletedStoryPoints: 5,
	}, report.Stats)

	got, err := f.engine.GetIssue(f.ctx, open.Key)
	require.NoError(t, err)
	assert.Equal(t, sprintID, got.SprintID)

	backlog, err = f.engine.ComputeBacklog(f.ctx, "WEB", ListOptions{})
	require.NoError(t, err)
	assert.Len(t, backlog, 2)

	_, err = f.engine.PlanSprint(f.ctx, alice, sprintID, []string{open.Key})
	assert.ErrorIs(t, err, apierr.ErrSprintClosed)
	_, err = f.engine.RemoveFromSprint(f.ctx, alice, open.Key)
	assert.ErrorIs(t, err, apierr.ErrSprintClosed)

	// A new sprint can take over the unfinished issue.
	next := f.createSprint(t, "S2")
	res, err := f.engine.PlanSprint(f.ctx, alice, next.ID, []string{open.Key})
	require.NoError(t, err)
	assert.Equal(t, []string{open.Key}, res.Added)
}

func TestRemoveFromSprint(t *testing.T) {
	f := newMemoryFixture(t, 0)
	a := f.createIssue(t, "a")
	s := f.createSprint(t, "S1")

	_, err := f.engine.RemoveFromSprint(f.ctx, alice, a.Key)
	assert.ErrorIs(t, err, apierr.ErrInvalidInput, "not in a sprint")

	_, err = f.engine.PlanSprint(f.ctx, alice, s.ID, []string{a.Key})
	require.NoError(t, err)
	got, err := f.engine.RemoveFromSprint(f.ctx, alice, a.Key)
	require.NoError(t, err)
	assert.Empty(t, got.SprintID)

	backlog, err := f.engine.ComputeBacklog(f.ctx, "WEB", ListOptions{})
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, a.Key, backlog[0].Key)
}

func TestRemoveFromSprintClearsDanglingReference(t *testing.T) {
	f := newMemoryFixture(t, 0)
	a := f.createIssue(t, "a")

	stale, err := f.store.GetIssue(f.ctx, a.ID)
	require.NoError(t, err)
	stale.SprintID = "gone"
	require.NoError(t, f.store.SaveIssue(f.ctx, stale))

	backlog, err := f.engine.ComputeBacklog(f.ctx, "WEB", ListOptions{})
	require.NoError(t, err)
	assert.Len(t, backlog, 1, "dangling references count as backlog")

	got, err := f.engine.RemoveFromSprint(f.ctx, alice, a.Key)
	require.NoError(t, err)
	assert.Empty(t, got.SprintID)
}

func TestCreateIssueInSprint(t *testing.T) {
	f := newMemoryFixture(t, 0)
	s := f.createSprint(t, "S1")

	it, err := f.engine.CreateIssue(f.ctx, alice, IssueInput{ProjectID: "WEB", Summary: "planned", SprintID: s.ID})
	require.NoError(t, err)
	assert.Equal(t, s.ID, it.SprintID)

	_, err = f.engine.CreateIssue(f.ctx, alice, IssueInput{ProjectID: "WEB", Summary: "x", SprintID: "missing"})
	assert.ErrorIs(t, err, apierr.ErrNotFound)

	p, err := f.engine.GetProject(f.ctx, "WEB")
	require.NoError(t, err)
	assert.Equal(t, 2, p.NextSeq, "a failed create does not consume a key")
}
