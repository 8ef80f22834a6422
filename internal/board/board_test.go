package board

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/config"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

func testBoard(kind Kind, doingLimit int) *Board {
	return &Board{
		ID:        "main",
		Name:      "Main",
		ProjectID: "WEB",
		Kind:      kind,
		Columns: []Column{
			{ID: "todo", Name: "To Do", Status: issue.StatusToDo},
			{ID: "doing", Name: "Doing", Status: issue.StatusInProgress, WIPLimit: doingLimit},
			{ID: "done", Name: "Done", Status: issue.StatusDone},
		},
	}
}

func mkIssue(id string, status issue.Status, sprintID string) *issue.Issue {
	return &issue.Issue{
		ID: id, Key: "WEB-" + id, ProjectID: "WEB",
		Type: issue.TypeTask, Status: status, Priority: issue.PriorityMedium,
		Summary: "issue " + id, SprintID: sprintID,
	}
}

func TestCheckMove(t *testing.T) {
	b := testBoard(KindKanban, 2)

	assert.NoError(t, CheckMove(b, "doing", 0))
	assert.NoError(t, CheckMove(b, "doing", 1))
	assert.NoError(t, CheckMove(b, "todo", 1000), "unlimited column")

	err := CheckMove(b, "doing", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrWipLimitExceeded)

	var e *apierr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "doing", e.Details["column"])
	assert.Equal(t, 2, e.Details["limit"])

	assert.ErrorIs(t, CheckMove(b, "review", 0), apierr.ErrNotFound)
}

func TestWIPAdmissionSequential(t *testing.T) {
	const limit = 3
	b := testBoard(KindKanban, limit)
	occupancy := 0
	admitted := 0
	for i := 0; i < limit+2; i++ {
		if CheckMove(b, "doing", occupancy) == nil {
			occupancy++
			admitted++
		}
	}
	assert.Equal(t, limit, admitted)
}

func TestWIPAdmissionSerializedConcurrent(t *testing.T) {
	const limit = 4
	b := testBoard(KindKanban, limit)

	var (
		mu        sync.Mutex
		occupancy int
		admitted  atomic.Int32
		wg        sync.WaitGroup
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			if CheckMove(b, "doing", occupancy) == nil {
				occupancy++
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, limit, admitted.Load())
	assert.Equal(t, limit, occupancy)
}

func TestOccupancy(t *testing.T) {
	issues := []*issue.Issue{
		mkIssue("1", issue.StatusInProgress, "s1"),
		mkIssue("2", issue.StatusInProgress, ""),
		mkIssue("3", issue.StatusToDo, "s1"),
		mkIssue("4", issue.StatusDone, "s0"),
	}
	other := mkIssue("5", issue.StatusInProgress, "s1")
	other.ProjectID = "API"
	issues = append(issues, other)

	kanban := Occupancy(testBoard(KindKanban, 0), issues, "s1", "")
	assert.Equal(t, map[string]int{"doing": 2, "todo": 1, "done": 1}, kanban)

	scrum := Occupancy(testBoard(KindScrum, 0), issues, "s1", "")
	assert.Equal(t, map[string]int{"doing": 1, "todo": 1}, scrum)

	excluded := Occupancy(testBoard(KindKanban, 0), issues, "", "1")
	assert.Equal(t, 1, excluded["doing"])

	noSprint := Occupancy(testBoard(KindScrum, 0), issues, "", "")
	assert.Empty(t, noSprint)
}

func TestFromConfig(t *testing.T) {
	cfg := config.NewDefault("Website", "WEB")
	b, err := FromConfig(cfg.Boards[0])
	require.NoError(t, err)
	assert.Equal(t, "WEB", b.ProjectID)
	assert.Equal(t, KindKanban, b.Kind)
	assert.Equal(t, "in_progress", b.ColumnForStatus(issue.StatusInProgress).ID)

	bad := cfg.Boards[0]
	bad.Columns = bad.Columns[:2]
	_, err = FromConfig(bad)
	assert.ErrorIs(t, err, apierr.ErrInvalidInput)
}

func TestValidateCoverage(t *testing.T) {
	b := testBoard(KindKanban, 0)
	require.NoError(t, b.Validate())

	b.Columns[2].Status = issue.StatusInProgress
	assert.ErrorIs(t, b.Validate(), apierr.ErrInvalidInput)

	b = testBoard(KindKanban, -1)
	assert.ErrorIs(t, b.Validate(), apierr.ErrInvalidInput)
}

func TestRegistry(t *testing.T) {
	web := testBoard(KindKanban, 2)
	api := testBoard(KindScrum, 0)
	api.ID, api.ProjectID = "api", "API"
	r := NewRegistry(web, api)

	got, err := r.Board("main")
	require.NoError(t, err)
	got.Columns[1].WIPLimit = 99
	again, _ := r.Board("main")
	assert.Equal(t, 2, again.Columns[1].WIPLimit, "returned boards are copies")

	_, err = r.Board("nope")
	assert.ErrorIs(t, err, apierr.ErrNotFound)

	require.Len(t, r.BoardsForProject("API"), 1)
	assert.Len(t, r.All(), 2)

	cfg := config.NewDefault("Website", "WEB")
	require.NoError(t, r.Reload(cfg))
	assert.Len(t, r.All(), 1)
	_, err = r.Board("api")
	assert.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestSummary(t *testing.T) {
	pts := 5
	issues := []*issue.Issue{
		mkIssue("1", issue.StatusInProgress, ""),
		mkIssue("2", issue.StatusInProgress, ""),
		mkIssue("3", issue.StatusInProgress, ""),
		mkIssue("4", issue.StatusDone, ""),
	}
	issues[0].StoryPoints = &pts
	issues[3].Priority = issue.PriorityCritical

	ov := Summary(testBoard(KindKanban, 2), issues, "")
	assert.Equal(t, 4, ov.TotalIssues)
	assert.Equal(t, 3, ov.Columns[1].Count)
	assert.True(t, ov.Columns[1].OverLimit)
	assert.Equal(t, 5, ov.Columns[1].StoryPoints)
	assert.False(t, ov.Columns[2].OverLimit)
	assert.Equal(t, PriorityCount{Priority: issue.PriorityCritical, Count: 1}, ov.Priorities[3])
	assert.Empty(t, ov.SprintID)
}

func TestFilterSortGroup(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	a := mkIssue("10", issue.StatusDone, "")
	a.CreatedAt = base
	a.Priority = issue.PriorityLow
	b := mkIssue("2", issue.StatusToDo, "")
	b.CreatedAt = base.Add(time.Hour)
	b.Priority = issue.PriorityHigh
	b.AssigneeID = "ana"
	b.Summary = "Fix login redirect"
	c := mkIssue("3", issue.StatusInProgress, "")
	c.CreatedAt = base.Add(2 * time.Hour)

	issues := []*issue.Issue{c, a, b}

	Sort(issues, "key", false)
	assert.Equal(t, []string{"WEB-2", "WEB-3", "WEB-10"}, keys(issues))

	Sort(issues, "priority", true)
	assert.Equal(t, "WEB-2", issues[0].Key)

	Sort(issues, "", false)
	assert.Equal(t, []string{"WEB-10", "WEB-2", "WEB-3"}, keys(issues))

	assert.Equal(t, []string{"WEB-2"}, keys(Filter(issues, FilterOptions{Search: "LOGIN"})))
	assert.Equal(t, []string{"WEB-2"}, keys(Filter(issues, FilterOptions{Assignee: "ana"})))
	assert.Len(t, Filter(issues, FilterOptions{Unassigned: true}), 2)
	assert.Len(t, Filter(issues, FilterOptions{ExcludeStatuses: []issue.Status{issue.StatusDone}}), 2)

	g := GroupBy(issues, "status")
	require.Len(t, g.Groups, 3)
	assert.Equal(t, "todo", g.Groups[0].Key)
	assert.Equal(t, "done", g.Groups[2].Key)

	g = GroupBy(issues, "assignee")
	assert.Equal(t, "(unassigned)", g.Groups[0].Key)
	assert.Equal(t, 2, g.Groups[0].Total)
}

func keys(issues []*issue.Issue) []string {
	out := make([]string, len(issues))
	for i, it := range issues {
		out[i] = it.Key
	}
	return out
}
