package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/board"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/logging"
	"github.com/twiced-technology-gmbh/trackflow/internal/permission"
	"github.com/twiced-technology-gmbh/trackflow/internal/store/memory"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

var (
	alice = permission.Actor{ID: "alice"}
	t0    = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
)

func testEngine(t *testing.T, doingLimit int) *workflow.Engine {
	t.Helper()
	cols := []board.Column{
		{ID: "todo", Name: "To Do", Status: issue.StatusToDo},
		{ID: "doing", Name: "Doing", Status: issue.StatusInProgress, WIPLimit: doingLimit},
		{ID: "done", Name: "Done", Status: issue.StatusDone},
	}
	boards := board.NewRegistry(
		&board.Board{ID: "main", Name: "Main", ProjectID: "WEB", Kind: board.KindKanban, Columns: cols},
		&board.Board{ID: "sprint", Name: "Sprint", ProjectID: "WEB", Kind: board.KindScrum, Columns: cols},
	)
	e := workflow.New(memory.New(), boards, nil,
		workflow.WithLogger(logging.Discard()),
		workflow.WithClock(func() time.Time { return t0 }),
	)
	_, err := e.CreateProject(context.Background(), alice, "WEB", "Web")
	require.NoError(t, err)
	return e
}

func createIssue(t *testing.T, e *workflow.Engine, in workflow.IssueInput) *issue.Issue {
	t.Helper()
	in.ProjectID = "WEB"
	it, err := e.CreateIssue(context.Background(), alice, in)
	require.NoError(t, err)
	return it
}

func newTestBoard(t *testing.T, e Engine, opts ...Option) *Board {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return t0.Add(49 * time.Hour) }), WithMarkdownStyle("notty")}, opts...)
	b, err := NewBoard(context.Background(), e, alice, []string{"main", "sprint"}, opts...)
	require.NoError(t, err)
	b.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return b
}

func press(b *Board, keys ...string) {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		b.Update(msg)
	}
}

func TestNewBoardRequiresBoards(t *testing.T) {
	_, err := NewBoard(context.Background(), testEngine(t, 0), alice, nil)
	assert.Error(t, err)
}

func TestBoardLoadsColumns(t *testing.T) {
	e := testEngine(t, 2)
	createIssue(t, e, workflow.IssueInput{Summary: "Login form", Priority: issue.PriorityLow})
	createIssue(t, e, workflow.IssueInput{Summary: "Fix crash", Priority: issue.PriorityCritical})

	b := newTestBoard(t, e)
	require.Len(t, b.columns, 3)
	assert.Len(t, b.columns[0].issues, 2)
	assert.Equal(t, "Fix crash", b.selectedIssue().Summary, "higher priority first")

	out := b.View()
	assert.Contains(t, out, "To Do (2)")
	assert.Contains(t, out, "Doing (0/2)")
	assert.Contains(t, out, "WEB-2")
	assert.Contains(t, out, "Main | 2 issues")
}

func TestBoardNavigation(t *testing.T) {
	e := testEngine(t, 0)
	createIssue(t, e, workflow.IssueInput{Summary: "First"})
	createIssue(t, e, workflow.IssueInput{Summary: "Second"})
	b := newTestBoard(t, e)

	press(b, "j")
	assert.Equal(t, "Second", b.selectedIssue().Summary)
	press(b, "j")
	assert.Equal(t, 1, b.activeRow, "cursor stops at the last row")
	press(b, "k", "k")
	assert.Equal(t, 0, b.activeRow)

	press(b, "l")
	assert.Equal(t, 1, b.activeCol)
	assert.Nil(t, b.selectedIssue())
	press(b, "h", "h")
	assert.Equal(t, 0, b.activeCol)
}

func TestBoardMoveIssue(t *testing.T) {
	e := testEngine(t, 0)
	it := createIssue(t, e, workflow.IssueInput{Summary: "Login form"})
	b := newTestBoard(t, e)

	press(b, "L")
	require.NoError(t, b.err)
	assert.Equal(t, 1, b.activeCol, "cursor follows the moved issue")
	assert.Equal(t, it.ID, b.selectedIssue().ID)
	assert.Contains(t, b.notice, "Moved WEB-1: todo → in_progress")

	got, err := e.GetIssue(context.Background(), it.ID)
	require.NoError(t, err)
	assert.Equal(t, issue.StatusInProgress, got.Status)
	assert.Contains(t, b.View(), "2d", "age of in-progress issue")

	press(b, "L")
	require.NoError(t, b.err)
	assert.Equal(t, 2, b.activeCol)

	press(b, "H")
	require.NoError(t, b.err)
	assert.Equal(t, 1, b.activeCol, "done issues can be reopened")
	assert.Contains(t, b.notice, "Moved WEB-1: done → in_progress")

	press(b, "H")
	assert.True(t, apierr.Is(b.err, apierr.InvalidTransition))
	assert.Equal(t, 1, b.activeCol, "in progress issues cannot go back to todo")
}

func TestBoardMoveSkipsUnreachableColumns(t *testing.T) {
	boards := board.NewRegistry(&board.Board{
		ID: "main", Name: "Main", ProjectID: "WEB", Kind: board.KindKanban,
		Columns: []board.Column{
			{ID: "todo", Name: "To Do", Status: issue.StatusToDo},
			{ID: "done", Name: "Done", Status: issue.StatusDone},
			{ID: "doing", Name: "Doing", Status: issue.StatusInProgress},
		},
	})
	e := workflow.New(memory.New(), boards, nil,
		workflow.WithLogger(logging.Discard()),
		workflow.WithClock(func() time.Time { return t0 }),
	)
	_, err := e.CreateProject(context.Background(), alice, "WEB", "Web")
	require.NoError(t, err)
	it := createIssue(t, e, workflow.IssueInput{Summary: "Login form"})

	b, err := NewBoard(context.Background(), e, alice, []string{"main"}, WithMarkdownStyle("notty"))
	require.NoError(t, err)
	b.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	press(b, "L")
	require.NoError(t, b.err)
	assert.Equal(t, 2, b.activeCol, "todo skips the done column")

	got, err := e.GetIssue(context.Background(), it.ID)
	require.NoError(t, err)
	assert.Equal(t, issue.StatusInProgress, got.Status)

	press(b, "L")
	require.NoError(t, b.err, "nothing further right")
	assert.Equal(t, 2, b.activeCol)
}

func TestBoardMoveRejections(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		setup   func(t *testing.T, e *workflow.Engine)
		keys    []string
		wantErr string
	}{
		{
			name:  "wip limit",
			limit: 1,
			setup: func(t *testing.T, e *workflow.Engine) {
				first := createIssue(t, e, workflow.IssueInput{Summary: "Busy", Priority: issue.PriorityLow})
				_, err := e.MoveIssue(context.Background(), alice, first.ID, issue.StatusInProgress, "main")
				require.NoError(t, err)
				createIssue(t, e, workflow.IssueInput{Summary: "Waiting"})
			},
			keys:    []string{"L"},
			wantErr: "WIP limit reached",
		},
		{
			name: "backwards from in progress",
			setup: func(t *testing.T, e *workflow.Engine) {
				it := createIssue(t, e, workflow.IssueInput{Summary: "Started"})
				_, err := e.MoveIssue(context.Background(), alice, it.ID, issue.StatusInProgress, "main")
				require.NoError(t, err)
			},
			keys:    []string{"l", "H"},
			wantErr: `cannot move WEB-1 from "in_progress" to "todo"`,
		},
		{
			name: "reopen from done",
			setup: func(t *testing.T, e *workflow.Engine) {
				it := createIssue(t, e, workflow.IssueInput{Summary: "Done once"})
				_, err := e.MoveIssue(context.Background(), alice, it.ID, issue.StatusInProgress, "main")
				require.NoError(t, err)
				_, err = e.MoveIssue(context.Background(), alice, it.ID, issue.StatusDone, "main")
				require.NoError(t, err)
			},
			keys: []string{"l", "l", "H"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEngine(t, tt.limit)
			tt.setup(t, e)
			b := newTestBoard(t, e)
			press(b, tt.keys...)
			if tt.wantErr == "" {
				require.NoError(t, b.err)
				return
			}
			require.Error(t, b.err)
			assert.Contains(t, b.View(), tt.wantErr)
		})
	}
}

func TestBoardDeleteConfirm(t *testing.T) {
	e := testEngine(t, 0)
	it := createIssue(t, e, workflow.IssueInput{Summary: "Obsolete"})
	b := newTestBoard(t, e)

	press(b, "d")
	assert.Equal(t, modeConfirmDelete, b.mode)
	assert.Contains(t, b.View(), "WEB-1: Obsolete")
	press(b, "n")
	assert.Equal(t, modeBoard, b.mode)

	press(b, "d", "y")
	assert.Equal(t, modeBoard, b.mode)
	assert.Equal(t, "Deleted WEB-1", b.notice)
	_, err := e.GetIssue(context.Background(), it.ID)
	assert.Error(t, err)
	assert.Empty(t, b.columns[0].issues)
}

func TestBoardExclusiveWrapsMutations(t *testing.T) {
	e := testEngine(t, 0)
	createIssue(t, e, workflow.IssueInput{Summary: "Locked"})
	calls := 0
	b := newTestBoard(t, e, WithExclusive(func(fn func() error) error {
		calls++
		return fn()
	}))

	press(b, "L", "d", "y")
	assert.Equal(t, 2, calls)
}

func TestBoardDetail(t *testing.T) {
	e := testEngine(t, 0)
	points := 3
	createIssue(t, e, workflow.IssueInput{
		Summary:     "Login form",
		Description: "Users sign in with **email**.",
		StoryPoints: &points,
		AssigneeID:  "bob",
	})
	b := newTestBoard(t, e)

	press(b, "enter")
	require.Equal(t, modeDetail, b.mode)
	out := b.View()
	assert.Contains(t, out, "WEB-1  Login form")
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "email")

	press(b, "esc")
	assert.Equal(t, modeBoard, b.mode)
}

func TestBoardSwitchAndReload(t *testing.T) {
	e := testEngine(t, 0)
	b := newTestBoard(t, e)
	assert.Empty(t, b.columns[0].issues)

	createIssue(t, e, workflow.IssueInput{Summary: "Arrived later"})
	b.Update(ReloadMsg{})
	assert.Len(t, b.columns[0].issues, 1)

	press(b, "tab")
	assert.Equal(t, "sprint", b.BoardID())
	assert.Empty(t, b.columns[0].issues, "scrum board shows no issues without an active sprint")

	b.Update(ReloadMsg{Err: errors.New("config broken")})
	assert.Contains(t, b.View(), "config broken")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "hello w...", truncate("hello world, again", 10))
	assert.True(t, strings.HasSuffix(truncate("ünïcödé strings", 8), "..."))
}

func TestHumanDuration(t *testing.T) {
	tests := map[time.Duration]string{
		30 * time.Second:    "<1m",
		5 * time.Minute:     "5m",
		3 * time.Hour:       "3h",
		49 * time.Hour:      "2d",
		15 * 24 * time.Hour: "2w",
	}
	for d, want := range tests {
		assert.Equal(t, want, humanDuration(d), d.String())
	}
}
