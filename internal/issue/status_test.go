package issue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
)

func newIssue(status Status) *Issue {
	created := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	return &Issue{
		ID:        "id-1",
		Key:       "WEB-1",
		ProjectID: "WEB",
		Type:      TypeTask,
		Status:    status,
		Priority:  PriorityMedium,
		Summary:   "Ship the login page",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestTransitionClosure(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusToDo, StatusInProgress}:       true,
		{StatusInProgress, StatusDone}:       true,
		{StatusDone, StatusInProgress}:       true,
		{StatusToDo, StatusToDo}:             true,
		{StatusInProgress, StatusInProgress}: true,
		{StatusDone, StatusDone}:             true,
	}
	now := time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC)

	for _, from := range Statuses {
		for _, to := range Statuses {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				it := newIssue(from)
				changed, err := Transition(it, to, now)
				if allowed[[2]Status{from, to}] {
					require.NoError(t, err)
					assert.Equal(t, to, it.Status)
					assert.Equal(t, from != to, changed)
					return
				}
				require.Error(t, err)
				assert.ErrorIs(t, err, apierr.ErrInvalidTransition)
				assert.Equal(t, from, it.Status, "rejected move must not change status")
				assert.False(t, changed)
			})
		}
	}
}

func TestTransitionRejectsUnknownValues(t *testing.T) {
	it := newIssue(StatusToDo)
	_, err := Transition(it, Status("blocked"), time.Now())
	assert.ErrorIs(t, err, apierr.ErrInvalidTransition)

	it.Status = "archived"
	_, err = Transition(it, StatusToDo, time.Now())
	assert.ErrorIs(t, err, apierr.ErrInvalidTransition)
}

func TestTransitionNilIsNotFound(t *testing.T) {
	_, err := Transition(nil, StatusDone, time.Now())
	assert.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestTransitionIdempotentLeavesUpdatedAt(t *testing.T) {
	it := newIssue(StatusInProgress)
	before := it.UpdatedAt
	changed, err := Transition(it, StatusInProgress, before.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before, it.UpdatedAt)
}

func TestTransitionTimestamps(t *testing.T) {
	it := newIssue(StatusToDo)
	t1 := it.CreatedAt.Add(time.Hour)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	_, err := Transition(it, StatusInProgress, t1)
	require.NoError(t, err)
	require.NotNil(t, it.StartedAt)
	assert.Equal(t, t1, *it.StartedAt)
	assert.Nil(t, it.CompletedAt)

	_, err = Transition(it, StatusDone, t2)
	require.NoError(t, err)
	require.NotNil(t, it.CompletedAt)
	assert.Equal(t, t2, *it.CompletedAt)

	_, err = Transition(it, StatusInProgress, t3)
	require.NoError(t, err)
	assert.Nil(t, it.CompletedAt, "reopen clears completion")
	assert.Equal(t, t1, *it.StartedAt, "started is never overwritten")
	assert.Equal(t, t3, it.UpdatedAt)
}

func TestTransitionUpdatedAtMonotonic(t *testing.T) {
	it := newIssue(StatusToDo)
	it.UpdatedAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := Transition(it, StatusInProgress, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), it.UpdatedAt)
}

func TestErrTransitionDetails(t *testing.T) {
	err := ErrTransition(newIssue(StatusToDo), StatusDone)
	assert.Equal(t, apierr.InvalidTransition, err.Code)
	assert.Equal(t, []string{"in_progress"}, err.Details["allowed"])
	assert.Equal(t, "WEB-1", err.Details["issue"])
}

func TestNextStatuses(t *testing.T) {
	assert.Equal(t, []Status{StatusInProgress}, NextStatuses(StatusToDo))
	assert.Equal(t, []Status{StatusDone}, NextStatuses(StatusInProgress))
	assert.Equal(t, []Status{StatusInProgress}, NextStatuses(StatusDone))
	assert.Empty(t, NextStatuses("blocked"))

	next := NextStatuses(StatusToDo)
	next[0] = StatusDone
	assert.Equal(t, []Status{StatusInProgress}, NextStatuses(StatusToDo), "callers get a copy")
}
