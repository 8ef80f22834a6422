package issue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"todo", StatusToDo},
		{"ToDo", StatusToDo},
		{"To Do", StatusToDo},
		{"in_progress", StatusInProgress},
		{"In Progress", StatusInProgress},
		{"InProgress", StatusInProgress},
		{"doing", StatusInProgress},
		{" Done ", StatusDone},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseStatus("blocked")
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)
}

func TestParseTypeAndPriority(t *testing.T) {
	typ, err := ParseType("Bug")
	require.NoError(t, err)
	assert.Equal(t, TypeBug, typ)

	_, err = ParseType("feature")
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)

	p, err := ParsePriority("CRITICAL")
	require.NoError(t, err)
	assert.Equal(t, PriorityCritical, p)
	assert.Equal(t, 3, p.Rank())

	_, err = ParsePriority("urgent")
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)
}

func TestValidate(t *testing.T) {
	neg := -1
	tests := []struct {
		name   string
		mutate func(*Issue)
		ok     bool
	}{
		{"valid", func(*Issue) {}, true},
		{"bad type", func(it *Issue) { it.Type = "feature" }, false},
		{"bad status", func(it *Issue) { it.Status = "blocked" }, false},
		{"bad priority", func(it *Issue) { it.Priority = "urgent" }, false},
		{"empty summary", func(it *Issue) { it.Summary = "  " }, false},
		{"long summary", func(it *Issue) { it.Summary = strings.Repeat("x", MaxSummaryLen+1) }, false},
		{"negative points", func(it *Issue) { it.StoryPoints = &neg }, false},
		{"nested epic", func(it *Issue) { it.Type = TypeEpic; it.EpicID = "e1" }, false},
		{"story in epic", func(it *Issue) { it.Type = TypeStory; it.EpicID = "e1" }, true},
		{"no project", func(it *Issue) { it.ProjectID = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := newIssue(StatusToDo)
			tt.mutate(it)
			err := Validate(it)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apierr.ErrInvalidInput)
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	pts := 3
	it := newIssue(StatusToDo)
	it.StoryPoints = &pts
	c := it.Clone()
	*c.StoryPoints = 8
	assert.Equal(t, 3, it.Points())
	assert.Equal(t, "WEB-42", FormatKey("WEB", 42))
}
