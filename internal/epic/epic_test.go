package epic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func linked(epicID string, statuses ...issue.Status) []*issue.Issue {
	out := make([]*issue.Issue, len(statuses))
	for i, st := range statuses {
		out[i] = &issue.Issue{
			ID: string(rune('a' + i)), Key: issue.FormatKey("WEB", i+1), ProjectID: "WEB",
			Type: issue.TypeStory, Status: st, EpicID: epicID,
		}
	}
	return out
}

func TestProgressOf(t *testing.T) {
	e := &Epic{ID: "e1", ProjectID: "WEB"}
	p := ProgressOf(e, linked("e1", issue.StatusDone, issue.StatusDone, issue.StatusInProgress, issue.StatusToDo))
	assert.Equal(t, Progress{
		EpicID: "e1", Total: 4, Completed: 2, InProgress: 1, Todo: 1, ProgressPercent: 50,
	}, p)
}

func TestProgressOfEmpty(t *testing.T) {
	p := ProgressOf(&Epic{ID: "e1"}, nil)
	assert.Equal(t, 0, p.ProgressPercent)
	assert.Equal(t, 0, p.Total)
}

func TestProgressRoundingAndPoints(t *testing.T) {
	e := &Epic{ID: "e1"}
	issues := linked("e1", issue.StatusDone, issue.StatusToDo, issue.StatusToDo)
	three, five := 3, 5
	issues[0].StoryPoints = &three
	issues[1].StoryPoints = &five

	p := ProgressOf(e, issues)
	assert.Equal(t, 33, p.ProgressPercent)
	assert.Equal(t, 8, p.TotalStoryPoints)
	assert.Equal(t, 3, p.CompletedStoryPoints)

	p = ProgressOf(e, linked("e1", issue.StatusDone, issue.StatusDone, issue.StatusToDo))
	assert.Equal(t, 67, p.ProgressPercent)
}

func TestProgressIgnoresUnrelated(t *testing.T) {
	e := &Epic{ID: "e1"}
	issues := append(linked("e1", issue.StatusDone), linked("e2", issue.StatusToDo)...)
	issues = append(issues, &issue.Issue{ID: "x", Type: issue.TypeEpic, EpicID: "e1", Status: issue.StatusToDo})
	p := ProgressOf(e, issues)
	assert.Equal(t, 1, p.Total)
	assert.Equal(t, 100, p.ProgressPercent)
}

func TestAttachDetach(t *testing.T) {
	e, err := New("e1", "WEB", "Checkout revamp", "", now)
	require.NoError(t, err)
	assert.Equal(t, issue.PriorityMedium, e.Priority)

	it := linked("", issue.StatusToDo)[0]
	changed, err := Attach(e, it, now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "e1", it.EpicID)

	changed, err = Attach(e, it, now)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.True(t, Detach(it, now))
	assert.Empty(t, it.EpicID)
	assert.False(t, Detach(it, now))

	ep := &issue.Issue{Key: "WEB-9", ProjectID: "WEB", Type: issue.TypeEpic}
	_, err = Attach(e, ep, now)
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)

	foreign := &issue.Issue{Key: "API-1", ProjectID: "API", Type: issue.TypeBug}
	_, err = Attach(e, foreign, now)
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)
}

func TestNewValidates(t *testing.T) {
	_, err := New("e1", "WEB", "", issue.PriorityHigh, now)
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)
	_, err = New("e1", "WEB", "Epic", "urgent", now)
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)
}

func TestNewNormalizesPriority(t *testing.T) {
	tests := []struct {
		in   issue.Priority
		want issue.Priority
	}{
		{in: "", want: issue.PriorityMedium},
		{in: "High", want: issue.PriorityHigh},
		{in: " LOW ", want: issue.PriorityLow},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			e, err := New("e1", "WEB", "Checkout", tt.in, now)
			require.NoError(t, err)
			require.NotNil(t, e)
			assert.Equal(t, tt.want, e.Priority)
		})
	}
}
