package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/trackflow/internal/activity"
	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/board"
	"github.com/twiced-technology-gmbh/trackflow/internal/date"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/logging"
	"github.com/twiced-technology-gmbh/trackflow/internal/permission"
	"github.com/twiced-technology-gmbh/trackflow/internal/store"
	"github.com/twiced-technology-gmbh/trackflow/internal/store/memory"
	"github.com/twiced-technology-gmbh/trackflow/internal/store/sqlite"
)

var (
	alice = permission.Actor{ID: "alice"}
	t0    = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
)

// captureRecorder keeps recorded entries in memory.
type captureRecorder struct {
	mu      sync.Mutex
	entries []activity.Entry
}

func (r *captureRecorder) Record(_ context.Context, e activity.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *captureRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}

type fixture struct {
	ctx    context.Context
	engine *Engine
	store  store.Store
	rec    *captureRecorder
}

func testBoards(doingLimit int) *board.Registry {
	cols := []board.Column{
		{ID: "todo", Name: "To Do", Status: issue.StatusToDo},
		{ID: "doing", Name: "Doing", Status: issue.StatusInProgress, WIPLimit: doingLimit},
		{ID: "done", Name: "Done", Status: issue.StatusDone},
	}
	return board.NewRegistry(
		&board.Board{ID: "main", Name: "Main", ProjectID: "WEB", Kind: board.KindKanban, Columns: cols},
		&board.Board{ID: "sprint", Name: "Sprint", ProjectID: "WEB", Kind: board.KindScrum, Columns: cols},
	)
}

// newFixture returns an engine over s with a WEB project, a kanban board
// "main" and a scrum board "sprint", both with the given Doing limit.
func newFixture(t *testing.T, s store.Store, doingLimit int, gate permission.Gate) *fixture {
	t.Helper()
	var (
		tick int64
		seq  int64
	)
	rec := &captureRecorder{}
	e := New(s, testBoards(doingLimit), gate,
		WithLogger(logging.Discard()),
		WithRecorder(rec),
		WithClock(func() time.Time {
			return t0.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Second)
		}),
		WithIDGenerator(func() string {
			return fmt.Sprintf("id-%03d", atomic.AddInt64(&seq, 1))
		}),
	)
	f := &fixture{ctx: context.Background(), engine: e, store: s, rec: rec}
	_, err := New(s, nil, nil).CreateProject(f.ctx, alice, "WEB", "Web")
	require.NoError(t, err)
	return f
}

func newMemoryFixture(t *testing.T, doingLimit int) *fixture {
	return newFixture(t, memory.New(), doingLimit, nil)
}

func (f *fixture) createIssue(t *testing.T, summary string) *issue.Issue {
	t.Helper()
	it, err := f.engine.CreateIssue(f.ctx, alice, IssueInput{ProjectID: "WEB", Summary: summary})
	require.NoError(t, err)
	return it
}

func (f *fixture) move(t *testing.T, ref string, dest issue.Status, boardID string) *MoveResult {
	t.Helper()
	res, err := f.engine.MoveIssue(f.ctx, alice, ref, dest, boardID)
	require.NoError(t, err)
	return res
}

func (f *fixture) activeSprint(t *testing.T, refs ...string) string {
	t.Helper()
	s, err := f.engine.CreateSprint(f.ctx, alice, SprintInput{
		ProjectID: "WEB", Name: "Sprint 1",
		StartDate: date.New(2026, 3, 2), EndDate: date.New(2026, 3, 16),
	})
	require.NoError(t, err)
	if len(refs) > 0 {
		_, err = f.engine.PlanSprint(f.ctx, alice, s.ID, refs)
		require.NoError(t, err)
	}
	_, err = f.engine.StartSprint(f.ctx, alice, s.ID)
	require.NoError(t, err)
	return s.ID
}

func TestMoveFollowsStatusMachine(t *testing.T) {
	f := newMemoryFixture(t, 0)
	it := f.createIssue(t, "Login page")

	_, err := f.engine.MoveIssue(f.ctx, alice, it.Key, issue.StatusDone, "main")
	assert.ErrorIs(t, err, apierr.ErrInvalidTransition)

	res := f.move(t, it.Key, issue.StatusInProgress, "main")
	assert.True(t, res.Changed)
	assert.Equal(t, "doing", res.Column)
	assert.Equal(t, issue.StatusToDo, res.From)
	require.NotNil(t, res.Issue.StartedAt)

	res = f.move(t, it.ID, issue.StatusDone, "main")
	assert.True(t, res.Changed)
	require.NotNil(t, res.Issue.CompletedAt)

	res = f.move(t, it.Key, issue.StatusInProgress, "main")
	assert.True(t, res.Changed, "reopen")
	assert.Nil(t, res.Issue.CompletedAt)

	got, err := f.engine.GetIssue(f.ctx, it.Key)
	require.NoError(t, err)
	assert.Equal(t, issue.StatusInProgress, got.Status)
	assert.Equal(t, []string{"issue.create", "move", "move", "move"}, f.rec.actions())
}

func TestMoveToCurrentStatusIsNoop(t *testing.T) {
	f := newMemoryFixture(t, 1)
	a := f.createIssue(t, "a")
	b := f.createIssue(t, "b")
	f.move(t, a.Key, issue.StatusInProgress, "main")
	before, err := f.engine.GetIssue(f.ctx, a.Key)
	require.NoError(t, err)

	res := f.move(t, a.Key, issue.StatusInProgress, "main")
	assert.False(t, res.Changed)
	assert.Equal(t, "doing", res.Column)

	after, err := f.engine.GetIssue(f.ctx, a.Key)
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

	// The column stays full.
	_, err = f.engine.MoveIssue(f.ctx, alice, b.Key, issue.StatusInProgress, "main")
	assert.ErrorIs(t, err, apierr.ErrWipLimitExceeded)
	assert.Equal(t, []string{"issue.create", "issue.create", "move"}, f.rec.actions())
}

func TestMoveValidatesInput(t *testing.T) {
	f := newMemoryFixture(t, 0)
	it := f.createIssue(t, "a")

	tests := []struct {
		name  string
		ref   string
		board string
		want  error
	}{
		{"missing board", it.Key, "", apierr.ErrInvalidInput},
		{"unknown board", it.Key, "nope", apierr.ErrNotFound},
		{"unknown issue", "WEB-99", "main", apierr.ErrNotFound},
		{"empty issue", "", "main", apierr.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.MoveIssue(f.ctx, alice, tt.ref, issue.StatusInProgress, tt.board)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWIPLimitBlocksMove(t *testing.T) {
	f := newMemoryFixture(t, 2)
	var keys []string
	for i := 0; i < 3; i++ {
		keys = append(keys, f.createIssue(t, fmt.Sprintf("issue %d", i)).Key)
	}
	f.move(t, keys[0], issue.StatusInProgress, "main")
	f.move(t, keys[1], issue.StatusInProgress, "main")

	_, err := f.engine.MoveIssue(f.ctx, alice, keys[2], issue.StatusInProgress, "main")
	require.ErrorIs(t, err, apierr.ErrWipLimitExceeded)
	var e *apierr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "doing", e.Details["column"])

	got, err := f.engine.GetIssue(f.ctx, keys[2])
	require.NoError(t, err)
	assert.Equal(t, issue.StatusToDo, got.Status)

	// Freeing a slot admits the waiting issue.
	f.move(t, keys[0], issue.StatusDone, "main")
	f.move(t, keys[2], issue.StatusInProgress, "main")
}

func TestConcurrentMovesRespectWIPLimit(t *testing.T) {
	backends := map[string]func(t *testing.T) store.Store{
		"memory": func(*testing.T) store.Store { return memory.New() },
		"sqlite": func(t *testing.T) store.Store {
			s, err := sqlite.Open(filepath.Join(t.TempDir(), "trackflow.db"), logging.Discard())
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			const (
				limit   = 3
				workers = 12
			)
			f := newFixture(t, open(t), limit, nil)
			keys := make([]string, workers)
			for i := range keys {
				keys[i] = f.createIssue(t, fmt.Sprintf("issue %d", i)).Key
			}

			var (
				wg       sync.WaitGroup
				admitted atomic.Int32
				rejected atomic.Int32
			)
			unexpected := make(chan error, workers)
			for _, key := range keys {
				wg.Add(1)
				go func(key string) {
					defer wg.Done()
					_, err := f.engine.MoveIssue(f.ctx, alice, key, issue.StatusInProgress, "main")
					switch {
					case err == nil:
						admitted.Add(1)
					case apierr.Is(err, apierr.WipLimitExceeded):
						rejected.Add(1)
					default:
						unexpected <- err
					}
				}(key)
			}
			wg.Wait()
			close(unexpected)
			for err := range unexpected {
				t.Errorf("unexpected error: %v", err)
			}

			assert.EqualValues(t, limit, admitted.Load())
			assert.EqualValues(t, workers-limit, rejected.Load())

			view, err := f.engine.BoardView(f.ctx, "main")
			require.NoError(t, err)
			assert.Equal(t, limit, view.Overview.Columns[1].Count)
			assert.False(t, view.Overview.Columns[1].OverLimit)
		})
	}
}

func TestForbiddenLeavesStateUntouched(t *testing.T) {
	deny := permission.GateFunc(func(_ context.Context, _ permission.Actor, key string) bool {
		return key != permission.IssueTransition && key != permission.SprintManage
	})
	f := newFixture(t, memory.New(), 0, deny)
	it := f.createIssue(t, "a")

	_, err := f.engine.MoveIssue(f.ctx, alice, it.Key, issue.StatusInProgress, "main")
	require.ErrorIs(t, err, apierr.ErrForbidden)
	var e *apierr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "alice", e.Details["actor"])
	assert.Equal(t, permission.IssueTransition, e.Details["capability"])

	_, err = f.engine.CreateSprint(f.ctx, alice, SprintInput{
		ProjectID: "WEB", Name: "S1", StartDate: date.New(2026, 3, 2), EndDate: date.New(2026, 3, 9),
	})
	assert.ErrorIs(t, err, apierr.ErrForbidden)

	got, err := f.engine.GetIssue(f.ctx, it.Key)
	require.NoError(t, err)
	assert.Equal(t, it, got)
	sprints, err := f.engine.ListSprints(f.ctx, "WEB")
	require.NoError(t, err)
	assert.Empty(t, sprints)
	assert.Equal(t, []string{"issue.create"}, f.rec.actions())
}

func TestForbiddenComesBeforeValidation(t *testing.T) {
	f := newFixture(t, memory.New(), 0, permission.GateFunc(func(context.Context, permission.Actor, string) bool {
		return false
	}))
	_, err := f.engine.MoveIssue(f.ctx, alice, "", issue.StatusDone, "")
	assert.ErrorIs(t, err, apierr.ErrForbidden)
	_, err = f.engine.CreateIssue(f.ctx, alice, IssueInput{})
	assert.ErrorIs(t, err, apierr.ErrForbidden)
}

func TestScrumBoardShowsActiveSprintOnly(t *testing.T) {
	f := newMemoryFixture(t, 0)
	in := f.createIssue(t, "in sprint")
	out := f.createIssue(t, "backlog")

	_, err := f.engine.MoveIssue(f.ctx, alice, in.Key, issue.StatusInProgress, "sprint")
	require.ErrorIs(t, err, apierr.ErrNotOnBoard, "no active sprint yet")

	sprintID := f.activeSprint(t, in.Key)
	f.move(t, in.Key, issue.StatusInProgress, "sprint")

	_, err = f.engine.MoveIssue(f.ctx, alice, out.Key, issue.StatusInProgress, "sprint")
	require.ErrorIs(t, err, apierr.ErrNotOnBoard)
	var e *apierr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, sprintID, e.Details["active_sprint"])

	// The kanban board shows every project issue.
	f.move(t, out.Key, issue.StatusInProgress, "main")

	view, err := f.engine.BoardView(f.ctx, "sprint")
	require.NoError(t, err)
	assert.Equal(t, sprintID, view.Overview.SprintID)
	assert.Equal(t, 1, view.Overview.TotalIssues)
	require.Len(t, view.Columns[1].Issues, 1)
	assert.Equal(t, in.Key, view.Columns[1].Issues[0].Key)
}

func TestScrumBoardWIPCountsSprintMembersOnly(t *testing.T) {
	f := newMemoryFixture(t, 1)
	outside := f.createIssue(t, "outside")
	member := f.createIssue(t, "member")
	other := f.createIssue(t, "other")
	f.move(t, outside.Key, issue.StatusInProgress, "main")
	f.activeSprint(t, member.Key, other.Key)

	// The scrum board does not see the outside issue in its Doing column.
	f.move(t, member.Key, issue.StatusInProgress, "sprint")
	_, err := f.engine.MoveIssue(f.ctx, alice, other.Key, issue.StatusInProgress, "sprint")
	assert.ErrorIs(t, err, apierr.ErrWipLimitExceeded)

	view, err := f.engine.BoardView(f.ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, 2, view.Overview.Columns[1].Count)
	assert.True(t, view.Overview.Columns[1].OverLimit)
}

func TestBoardViewOrdersColumns(t *testing.T) {
	f := newMemoryFixture(t, 0)
	low, err := f.engine.CreateIssue(f.ctx, alice, IssueInput{ProjectID: "WEB", Summary: "low", Priority: issue.PriorityLow})
	require.NoError(t, err)
	high, err := f.engine.CreateIssue(f.ctx, alice, IssueInput{ProjectID: "WEB", Summary: "high", Priority: issue.PriorityHigh})
	require.NoError(t, err)
	mid := f.createIssue(t, "medium")

	view, err := f.engine.BoardView(f.ctx, "main")
	require.NoError(t, err)
	require.Len(t, view.Columns, 3)
	var keys []string
	for _, it := range view.Columns[0].Issues {
		keys = append(keys, it.Key)
	}
	assert.Equal(t, []string{high.Key, mid.Key, low.Key}, keys)
	assert.NotNil(t, view.Columns[2].Issues)
	assert.Empty(t, view.Columns[2].Issues)

	_, err = f.engine.BoardView(f.ctx, "nope")
	assert.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestCreateProject(t *testing.T) {
	f := newMemoryFixture(t, 0)

	p, err := f.engine.CreateProject(f.ctx, alice, "api", "API")
	require.NoError(t, err)
	assert.Equal(t, "API", p.ID)

	_, err = f.engine.CreateProject(f.ctx, alice, "WEB", "again")
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)
	_, err = f.engine.CreateProject(f.ctx, alice, "x", "")
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)

	projects, err := f.engine.ListProjects(f.ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "API", projects[0].ID)
	assert.Equal(t, "WEB", projects[1].ID)
}
