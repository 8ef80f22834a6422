package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/date"
	"github.com/twiced-technology-gmbh/trackflow/internal/epic"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/project"
	"github.com/twiced-technology-gmbh/trackflow/internal/sprint"
	"github.com/twiced-technology-gmbh/trackflow/internal/store"
)

// querier is satisfied by both *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements store.Tx on top of a querier.
type queries struct {
	q querier
}

var _ store.Tx = (*queries)(nil)

// Fixed-width UTC timestamps sort lexically in creation order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const issueColumns = `id, key, project_id, type, status, priority, summary, description,
    sprint_id, epic_id, story_points, assignee_id, reporter_id,
    created_at, updated_at, started_at, completed_at`

func scanIssue(r rowScanner) (*issue.Issue, error) {
	var (
		it                 issue.Issue
		sprintID, epicID   sql.NullString
		points             sql.NullInt64
		created, updated   string
		started, completed sql.NullString
		typ, status, prio  string
	)
	if err := r.Scan(&it.ID, &it.Key, &it.ProjectID, &typ, &status, &prio, &it.Summary, &it.Description,
		&sprintID, &epicID, &points, &it.AssigneeID, &it.ReporterID,
		&created, &updated, &started, &completed); err != nil {
		return nil, err
	}
	it.Type = issue.Type(typ)
	it.Status = issue.Status(status)
	it.Priority = issue.Priority(prio)
	it.SprintID = sprintID.String
	it.EpicID = epicID.String
	if points.Valid {
		p := int(points.Int64)
		it.StoryPoints = &p
	}

	var err error
	if it.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if it.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if it.StartedAt, err = parseTimePtr(started); err != nil {
		return nil, err
	}
	if it.CompletedAt, err = parseTimePtr(completed); err != nil {
		return nil, err
	}
	return &it, nil
}

func (q *queries) getIssue(ctx context.Context, where, arg string) (*issue.Issue, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE `+where+` = ?`, arg)
	it, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("issue", arg)
	}
	if err != nil {
		return nil, apierr.Wrap(err, "get issue")
	}
	return it, nil
}

// GetIssue implements store.Reader.
func (q *queries) GetIssue(ctx context.Context, id string) (*issue.Issue, error) {
	return q.getIssue(ctx, "id", id)
}

// GetIssueByKey implements store.Reader.
func (q *queries) GetIssueByKey(ctx context.Context, key string) (*issue.Issue, error) {
	return q.getIssue(ctx, "key", key)
}

func (q *queries) listIssues(ctx context.Context, where string, arg string) ([]*issue.Issue, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE `+where+` = ? ORDER BY created_at, id`, arg)
	if err != nil {
		return nil, apierr.Wrap(err, "list issues")
	}
	defer rows.Close()

	out := make([]*issue.Issue, 0)
	for rows.Next() {
		it, err := scanIssue(rows)
		if err != nil {
			return nil, apierr.Wrap(err, "scan issue")
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Wrap(err, "list issues")
	}
	return out, nil
}

// ListIssuesByProject implements store.Reader.
func (q *queries) ListIssuesByProject(ctx context.Context, projectID string) ([]*issue.Issue, error) {
	return q.listIssues(ctx, "project_id", projectID)
}

// ListIssuesBySprint implements store.Reader.
func (q *queries) ListIssuesBySprint(ctx context.Context, sprintID string) ([]*issue.Issue, error) {
	return q.listIssues(ctx, "sprint_id", sprintID)
}

// ListIssuesByEpic implements store.Reader.
func (q *queries) ListIssuesByEpic(ctx context.Context, epicID string) ([]*issue.Issue, error) {
	return q.listIssues(ctx, "epic_id", epicID)
}

// SaveIssue implements store.Writer.
func (q *queries) SaveIssue(ctx context.Context, it *issue.Issue) error {
	_, err := q.q.ExecContext(ctx, `INSERT INTO issues(`+issueColumns+`)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            key = excluded.key,
            project_id = excluded.project_id,
            type = excluded.type,
            status = excluded.status,
            priority = excluded.priority,
            summary = excluded.summary,
            description = excluded.description,
            sprint_id = excluded.sprint_id,
            epic_id = excluded.epic_id,
            story_points = excluded.story_points,
            assignee_id = excluded.assignee_id,
            reporter_id = excluded.reporter_id,
            updated_at = excluded.updated_at,
            started_at = excluded.started_at,
            completed_at = excluded.completed_at`,
		it.ID, it.Key, it.ProjectID, string(it.Type), string(it.Status), string(it.Priority), it.Summary, it.Description,
		nullString(it.SprintID), nullString(it.EpicID), nullInt(it.StoryPoints), it.AssigneeID, it.ReporterID,
		formatTime(it.CreatedAt), formatTime(it.UpdatedAt), formatTimePtr(it.StartedAt), formatTimePtr(it.CompletedAt))
	if err != nil {
		return apierr.Wrap(err, "save issue")
	}
	return nil
}

// DeleteIssue implements store.Writer.
func (q *queries) DeleteIssue(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id)
	if err != nil {
		return apierr.Wrap(err, "delete issue")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apierr.Wrap(err, "delete issue")
	}
	if affected == 0 {
		return store.NotFound("issue", id)
	}
	return nil
}

const sprintColumns = `id, project_id, name, goal, start_date, end_date, status,
    started_at, completed_at, created_at, updated_at`

func scanSprint(r rowScanner) (*sprint.Sprint, error) {
	var (
		s                  sprint.Sprint
		start, end         date.Date
		status             string
		started, completed sql.NullString
		created, updated   string
	)
	if err := r.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Goal, &start, &end, &status,
		&started, &completed, &created, &updated); err != nil {
		return nil, err
	}
	s.StartDate = start
	s.EndDate = end
	s.Status = sprint.Status(status)

	var err error
	if s.StartedAt, err = parseTimePtr(started); err != nil {
		return nil, err
	}
	if s.CompletedAt, err = parseTimePtr(completed); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSprint implements store.Reader.
func (q *queries) GetSprint(ctx context.Context, id string) (*sprint.Sprint, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id = ?`, id)
	s, err := scanSprint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("sprint", id)
	}
	if err != nil {
		return nil, apierr.Wrap(err, "get sprint")
	}
	return s, nil
}

// ListSprintsByProject implements store.Reader.
func (q *queries) ListSprintsByProject(ctx context.Context, projectID string) ([]*sprint.Sprint, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+sprintColumns+` FROM sprints WHERE project_id = ? ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, apierr.Wrap(err, "list sprints")
	}
	defer rows.Close()

	out := make([]*sprint.Sprint, 0)
	for rows.Next() {
		s, err := scanSprint(rows)
		if err != nil {
			return nil, apierr.Wrap(err, "scan sprint")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Wrap(err, "list sprints")
	}
	return out, nil
}

// SaveSprint implements store.Writer.
func (q *queries) SaveSprint(ctx context.Context, s *sprint.Sprint) error {
	_, err := q.q.ExecContext(ctx, `INSERT INTO sprints(`+sprintColumns+`)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            goal = excluded.goal,
            start_date = excluded.start_date,
            end_date = excluded.end_date,
            status = excluded.status,
            started_at = excluded.started_at,
            completed_at = excluded.completed_at,
            updated_at = excluded.updated_at`,
		s.ID, s.ProjectID, s.Name, s.Goal, s.StartDate, s.EndDate, string(s.Status),
		formatTimePtr(s.StartedAt), formatTimePtr(s.CompletedAt), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return apierr.Wrap(err, "save sprint")
	}
	return nil
}

const epicColumns = `id, project_id, summary, priority, created_at, updated_at`

func scanEpic(r rowScanner) (*epic.Epic, error) {
	var (
		e                epic.Epic
		priority         string
		created, updated string
	)
	if err := r.Scan(&e.ID, &e.ProjectID, &e.Summary, &priority, &created, &updated); err != nil {
		return nil, err
	}
	e.Priority = issue.Priority(priority)
	var err error
	if e.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEpic implements store.Reader.
func (q *queries) GetEpic(ctx context.Context, id string) (*epic.Epic, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+epicColumns+` FROM epics WHERE id = ?`, id)
	e, err := scanEpic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("epic", id)
	}
	if err != nil {
		return nil, apierr.Wrap(err, "get epic")
	}
	return e, nil
}

// ListEpicsByProject implements store.Reader.
func (q *queries) ListEpicsByProject(ctx context.Context, projectID string) ([]*epic.Epic, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+epicColumns+` FROM epics WHERE project_id = ? ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, apierr.Wrap(err, "list epics")
	}
	defer rows.Close()

	out := make([]*epic.Epic, 0)
	for rows.Next() {
		e, err := scanEpic(rows)
		if err != nil {
			return nil, apierr.Wrap(err, "scan epic")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Wrap(err, "list epics")
	}
	return out, nil
}

// SaveEpic implements store.Writer.
func (q *queries) SaveEpic(ctx context.Context, e *epic.Epic) error {
	_, err := q.q.ExecContext(ctx, `INSERT INTO epics(`+epicColumns+`)
        VALUES(?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            summary = excluded.summary,
            priority = excluded.priority,
            updated_at = excluded.updated_at`,
		e.ID, e.ProjectID, e.Summary, string(e.Priority), formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return apierr.Wrap(err, "save epic")
	}
	return nil
}

func scanProject(r rowScanner) (*project.Project, error) {
	var (
		p       project.Project
		created string
	)
	if err := r.Scan(&p.ID, &p.Name, &p.NextSeq, &created); err != nil {
		return nil, err
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = t
	return &p, nil
}

// GetProject implements store.Reader.
func (q *queries) GetProject(ctx context.Context, id string) (*project.Project, error) {
	row := q.q.QueryRowContext(ctx, `SELECT id, name, next_seq, created_at FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("project", id)
	}
	if err != nil {
		return nil, apierr.Wrap(err, "get project")
	}
	return p, nil
}

// ListProjects implements store.Reader.
func (q *queries) ListProjects(ctx context.Context) ([]*project.Project, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT id, name, next_seq, created_at FROM projects ORDER BY id`)
	if err != nil {
		return nil, apierr.Wrap(err, "list projects")
	}
	defer rows.Close()

	out := make([]*project.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, apierr.Wrap(err, "scan project")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Wrap(err, "list projects")
	}
	return out, nil
}

// SaveProject implements store.Writer.
func (q *queries) SaveProject(ctx context.Context, p *project.Project) error {
	_, err := q.q.ExecContext(ctx, `INSERT INTO projects(id, name, next_seq, created_at)
        VALUES(?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            next_seq = excluded.next_seq`,
		p.ID, p.Name, p.NextSeq, formatTime(p.CreatedAt))
	if err != nil {
		return apierr.Wrap(err, "save project")
	}
	return nil
}
