package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

func TestEpicProgress(t *testing.T) {
	f := newMemoryFixture(t, 0)
	ep, err := f.engine.CreateEpic(f.ctx, alice, EpicInput{ProjectID: "WEB", Summary: "Accounts"})
	require.NoError(t, err)

	empty, err := f.engine.ComputeEpicProgress(f.ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Progress.ProgressPercent)
	assert.Equal(t, 0, empty.Progress.Total)

	a := f.createIssue(t, "login")
	b := f.createIssue(t, "logout")
	for _, key := range []string{a.Key, b.Key} {
		_, err := f.engine.AttachToEpic(f.ctx, alice, key, ep.ID)
		require.NoError(t, err)
	}
	f.move(t, a.Key, issue.StatusInProgress, "main")
	f.move(t, a.Key, issue.StatusDone, "main")

	got, err := f.engine.ComputeEpicProgress(f.ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Progress.Total)
	assert.Equal(t, 1, got.Progress.Completed)
	assert.Equal(t, 1, got.Progress.Todo)
	assert.Equal(t, 50, got.Progress.ProgressPercent)
	assert.Len(t, got.Issues, 2)

	detached, err := f.engine.DetachFromEpic(f.ctx, alice, b.Key)
	require.NoError(t, err)
	assert.Empty(t, detached.EpicID)
	_, err = f.engine.GetIssue(f.ctx, b.Key)
	require.NoError(t, err, "detaching keeps the issue")

	got, err = f.engine.ComputeEpicProgress(f.ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Progress.Total)
	assert.Equal(t, 100, got.Progress.ProgressPercent)
}

func TestAttachToEpic(t *testing.T) {
	f := newMemoryFixture(t, 0)
	ep, err := f.engine.CreateEpic(f.ctx, alice, EpicInput{ProjectID: "WEB", Summary: "Accounts"})
	require.NoError(t, err)
	it := f.createIssue(t, "login")

	_, err = f.engine.AttachToEpic(f.ctx, alice, it.Key, ep.ID)
	require.NoError(t, err)
	_, err = f.engine.AttachToEpic(f.ctx, alice, it.Key, ep.ID)
	require.NoError(t, err, "re-attaching is a no-op")
	assert.Equal(t, []string{"epic.create", "issue.create", "epic.attach"}, f.rec.actions())

	_, err = f.engine.AttachToEpic(f.ctx, alice, it.Key, "missing")
	assert.ErrorIs(t, err, apierr.ErrNotFound)

	epicType := issue.TypeEpic
	_, err = f.engine.UpdateIssue(f.ctx, alice, it.Key, IssuePatch{Type: &epicType})
	assert.ErrorIs(t, err, apierr.ErrInvalidInput, "a linked issue cannot become an epic")

	nested, err := f.engine.CreateIssue(f.ctx, alice, IssueInput{ProjectID: "WEB", Summary: "big", Type: issue.TypeEpic})
	require.NoError(t, err)
	_, err = f.engine.AttachToEpic(f.ctx, alice, nested.Key, ep.ID)
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)

	_, err = f.engine.DetachFromEpic(f.ctx, alice, nested.Key)
	require.NoError(t, err, "detaching an unlinked issue is a no-op")

	_, err = f.engine.CreateEpic(f.ctx, alice, EpicInput{ProjectID: "WEB", Summary: " "})
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)

	epics, err := f.engine.ListEpics(f.ctx, "WEB")
	require.NoError(t, err)
	require.Len(t, epics, 1)
	assert.Equal(t, ep.ID, epics[0].ID)
}

func TestCreateEpicPriority(t *testing.T) {
	f := newMemoryFixture(t, 0)

	ep, err := f.engine.CreateEpic(f.ctx, alice, EpicInput{ProjectID: "WEB", Summary: "Checkout", Priority: "High"})
	require.NoError(t, err)
	assert.Equal(t, issue.PriorityHigh, ep.Priority)

	_, err = f.engine.CreateEpic(f.ctx, alice, EpicInput{ProjectID: "WEB", Summary: "Checkout", Priority: "urgent"})
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)

	epics, err := f.engine.ListEpics(f.ctx, "WEB")
	require.NoError(t, err)
	assert.Len(t, epics, 1)
}
