// Package storetest is a conformance suite run against every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/trackflow/internal/date"
	"github.com/twiced-technology-gmbh/trackflow/internal/epic"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/project"
	"github.com/twiced-technology-gmbh/trackflow/internal/sprint"
	"github.com/twiced-technology-gmbh/trackflow/internal/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

var base = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

// Run executes the conformance suite.
func Run(t *testing.T, newStore Factory) {
	tests := map[string]func(*testing.T, store.Store){
		"ProjectRoundTrip":     testProjectRoundTrip,
		"IssueRoundTrip":       testIssueRoundTrip,
		"IssueListings":        testIssueListings,
		"DeleteIssue":          testDeleteIssue,
		"SprintRoundTrip":      testSprintRoundTrip,
		"EpicRoundTrip":        testEpicRoundTrip,
		"TransactionCommit":    testTransactionCommit,
		"TransactionRollback":  testTransactionRollback,
		"ReturnedEntitiesCopy": testReturnedEntitiesCopy,
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func seedProject(t *testing.T, s store.Store, key string) *project.Project {
	t.Helper()
	p, err := project.New(key, key+" project", base)
	require.NoError(t, err)
	require.NoError(t, s.SaveProject(context.Background(), p))
	return p
}

func newIssue(id, projectID string, seq int, created time.Time) *issue.Issue {
	return &issue.Issue{
		ID:         id,
		Key:        issue.FormatKey(projectID, seq),
		ProjectID:  projectID,
		Type:       issue.TypeStory,
		Status:     issue.StatusToDo,
		Priority:   issue.PriorityMedium,
		Summary:    "Issue " + id,
		ReporterID: "ana",
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func testProjectRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "WEB")
	seedProject(t, s, "API")

	p, err := s.GetProject(ctx, "WEB")
	require.NoError(t, err)
	assert.Equal(t, "WEB project", p.Name)
	assert.Equal(t, 1, p.NextSeq)
	assert.True(t, base.Equal(p.CreatedAt))

	p.NextSeq = 7
	require.NoError(t, s.SaveProject(ctx, p))
	p, err = s.GetProject(ctx, "WEB")
	require.NoError(t, err)
	assert.Equal(t, 7, p.NextSeq)

	all, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "API", all[0].ID)

	_, err = s.GetProject(ctx, "NOPE")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testIssueRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "WEB")

	pts := 5
	started := base.Add(time.Hour)
	it := newIssue("i1", "WEB", 1, base)
	it.Description = "Longer text"
	it.StoryPoints = &pts
	it.AssigneeID = "bo"
	it.Status = issue.StatusInProgress
	it.StartedAt = &started
	require.NoError(t, s.SaveIssue(ctx, it))

	got, err := s.GetIssue(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "WEB-1", got.Key)
	assert.Equal(t, issue.StatusInProgress, got.Status)
	assert.Equal(t, "Longer text", got.Description)
	assert.Equal(t, 5, got.Points())
	assert.Equal(t, "bo", got.AssigneeID)
	assert.Empty(t, got.SprintID)
	assert.Empty(t, got.EpicID)
	require.NotNil(t, got.StartedAt)
	assert.True(t, started.Equal(*got.StartedAt))
	assert.Nil(t, got.CompletedAt)

	byKey, err := s.GetIssueByKey(ctx, "WEB-1")
	require.NoError(t, err)
	assert.Equal(t, "i1", byKey.ID)

	got.Summary = "Renamed"
	got.StoryPoints = nil
	require.NoError(t, s.SaveIssue(ctx, got))
	got, err = s.GetIssue(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Summary)
	assert.Nil(t, got.StoryPoints)

	_, err = s.GetIssue(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetIssueByKey(ctx, "WEB-99")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testIssueListings(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "WEB")
	seedProject(t, s, "API")

	sp, err := sprint.New("s1", "WEB", "Sprint 1", "", date.Date{}, date.Date{}, base)
	require.NoError(t, err)
	require.NoError(t, s.SaveSprint(ctx, sp))
	ep, err := epic.New("e1", "WEB", "Checkout", issue.PriorityHigh, base)
	require.NoError(t, err)
	require.NoError(t, s.SaveEpic(ctx, ep))

	second := newIssue("b", "WEB", 2, base.Add(time.Minute))
	second.SprintID = "s1"
	first := newIssue("a", "WEB", 1, base)
	first.EpicID = "e1"
	first.SprintID = "s1"
	foreign := newIssue("c", "API", 1, base)
	for _, it := range []*issue.Issue{second, first, foreign} {
		require.NoError(t, s.SaveIssue(ctx, it))
	}

	byProject, err := s.ListIssuesByProject(ctx, "WEB")
	require.NoError(t, err)
	require.Len(t, byProject, 2)
	assert.Equal(t, "a", byProject[0].ID, "ordered by creation")

	bySprint, err := s.ListIssuesBySprint(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, bySprint, 2)

	byEpic, err := s.ListIssuesByEpic(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, byEpic, 1)
	assert.Equal(t, "a", byEpic[0].ID)

	none, err := s.ListIssuesByProject(ctx, "NONE")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testDeleteIssue(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "WEB")
	require.NoError(t, s.SaveIssue(ctx, newIssue("i1", "WEB", 1, base)))

	require.NoError(t, s.DeleteIssue(ctx, "i1"))
	_, err := s.GetIssue(ctx, "i1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteIssue(ctx, "i1"), store.ErrNotFound)
}

func testSprintRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "WEB")

	sp, err := sprint.New("s1", "WEB", "Sprint 1", "Ship checkout", date.New(2026, 6, 1), date.New(2026, 6, 14), base)
	require.NoError(t, err)
	require.NoError(t, s.SaveSprint(ctx, sp))

	require.NoError(t, sprint.Start(sp, nil, base.Add(time.Hour)))
	require.NoError(t, s.SaveSprint(ctx, sp))

	got, err := s.GetSprint(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, sprint.StatusActive, got.Status)
	assert.Equal(t, "Ship checkout", got.Goal)
	assert.Equal(t, "2026-06-14", got.EndDate.String())
	require.NotNil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	sp2, err := sprint.New("s2", "WEB", "Sprint 2", "", date.Date{}, date.Date{}, base.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.SaveSprint(ctx, sp2))

	list, err := s.ListSprintsByProject(ctx, "WEB")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s1", list[0].ID)
	assert.True(t, list[1].StartDate.IsZero())

	_, err = s.GetSprint(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testEpicRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "WEB")

	e, err := epic.New("e1", "WEB", "Checkout revamp", issue.PriorityHigh, base)
	require.NoError(t, err)
	require.NoError(t, s.SaveEpic(ctx, e))

	got, err := s.GetEpic(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Checkout revamp", got.Summary)
	assert.Equal(t, issue.PriorityHigh, got.Priority)

	list, err := s.ListEpicsByProject(ctx, "WEB")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.GetEpic(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testTransactionCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "WEB")

	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		p, err := tx.GetProject(ctx, "WEB")
		if err != nil {
			return err
		}
		it := newIssue("i1", "WEB", p.NextSeq, base)
		it.Key = p.AllocateKey()
		if err := tx.SaveIssue(ctx, it); err != nil {
			return err
		}
		got, err := tx.GetIssue(ctx, "i1")
		if err != nil {
			return err
		}
		assert.Equal(t, "WEB-1", got.Key, "writes are visible inside the transaction")
		return tx.SaveProject(ctx, p)
	})
	require.NoError(t, err)

	p, err := s.GetProject(ctx, "WEB")
	require.NoError(t, err)
	assert.Equal(t, 2, p.NextSeq)
	_, err = s.GetIssue(ctx, "i1")
	assert.NoError(t, err)
}

func testTransactionRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "WEB")
	require.NoError(t, s.SaveIssue(ctx, newIssue("keep", "WEB", 1, base)))

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		if err := tx.SaveIssue(ctx, newIssue("i2", "WEB", 2, base)); err != nil {
			return err
		}
		if err := tx.DeleteIssue(ctx, "keep"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetIssue(ctx, "i2")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetIssue(ctx, "keep")
	assert.NoError(t, err)

	assert.Panics(t, func() {
		_ = s.RunInTransaction(ctx, func(tx store.Tx) error {
			_ = tx.SaveIssue(ctx, newIssue("i3", "WEB", 3, base))
			panic("bad")
		})
	})
	_, err = s.GetIssue(ctx, "i3")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The store stays usable after a panic.
	require.NoError(t, s.RunInTransaction(ctx, func(tx store.Tx) error {
		return tx.SaveIssue(ctx, newIssue("i4", "WEB", 4, base))
	}))
}

func testReturnedEntitiesCopy(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "WEB")
	require.NoError(t, s.SaveIssue(ctx, newIssue("i1", "WEB", 1, base)))

	got, err := s.GetIssue(ctx, "i1")
	require.NoError(t, err)
	got.Status = issue.StatusDone

	again, err := s.GetIssue(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, issue.StatusToDo, again.Status)
}
