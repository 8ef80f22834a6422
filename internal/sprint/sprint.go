// Package sprint governs the Planned → Active → Completed sprint lifecycle
// and the issue-membership rules tied to each state.
package sprint

import (
	"strings"
	"time"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/date"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

// Status is the lifecycle state of a sprint.
type Status string

// Sprint statuses. Completed is terminal.
const (
	StatusPlanned   Status = "planned"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Statuses lists every sprint status in lifecycle order.
var Statuses = []Status{StatusPlanned, StatusActive, StatusCompleted}

// IsValid reports whether s is a known sprint status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPlanned, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// Open reports whether issues may still be assigned to a sprint in status s.
func (s Status) Open() bool {
	return s == StatusPlanned || s == StatusActive
}

// Sprint is a time-boxed container of issues.
type Sprint struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Name        string     `json:"name"`
	Goal        string     `json:"goal,omitempty"`
	StartDate   date.Date  `json:"start_date"`
	EndDate     date.Date  `json:"end_date"`
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// New validates the inputs and returns a Planned sprint.
func New(id, projectID, name, goal string, start, end date.Date, now time.Time) (*Sprint, error) {
	s := &Sprint{
		ID:        id,
		ProjectID: projectID,
		Name:      strings.TrimSpace(name),
		Goal:      strings.TrimSpace(goal),
		StartDate: start,
		EndDate:   end,
		Status:    StatusPlanned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the sprint's fields.
func Validate(s *Sprint) error {
	if s.Name == "" {
		return apierr.New(apierr.InvalidInput, "sprint name is required").
			WithDetails(map[string]any{"field": "name"})
	}
	if s.ProjectID == "" {
		return apierr.New(apierr.InvalidInput, "project is required").
			WithDetails(map[string]any{"field": "project_id"})
	}
	if !s.Status.IsValid() {
		return apierr.Newf(apierr.InvalidInput, "invalid sprint status %q", s.Status).
			WithDetails(map[string]any{"field": "status", "input": string(s.Status)})
	}
	if !s.StartDate.IsZero() && !s.EndDate.IsZero() && s.EndDate.Before(s.StartDate.Time) {
		return apierr.Newf(apierr.InvalidInput,
			"end date %s is before start date %s", s.EndDate, s.StartDate).
			WithDetails(map[string]any{
				"field":      "end_date",
				"start_date": s.StartDate.String(),
				"end_date":   s.EndDate.String(),
			})
	}
	return nil
}

// Clone returns a deep copy of the sprint.
func (s *Sprint) Clone() *Sprint {
	if s == nil {
		return nil
	}
	c := *s
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (s *Sprint) touch(now time.Time) {
	if now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	}
}

// ActiveOf returns the active sprint among sprints, or nil.
func ActiveOf(sprints []*Sprint) *Sprint {
	for _, s := range sprints {
		if s.Status == StatusActive {
			return s
		}
	}
	return nil
}

// Start moves a Planned sprint to Active. projectSprints are the other
// sprints of the same project; none of them may be Active.
func Start(s *Sprint, projectSprints []*Sprint, now time.Time) error {
	if s.Status != StatusPlanned {
		return errState(s, "start", StatusPlanned)
	}
	for _, other := range projectSprints {
		if other.ID == s.ID || other.ProjectID != s.ProjectID {
			continue
		}
		if other.Status == StatusActive {
			return apierr.Newf(apierr.ConflictingActiveSprint,
				"project %s already has an active sprint %q", s.ProjectID, other.Name).
				WithDetails(map[string]any{
					"project":       s.ProjectID,
					"sprint":        s.ID,
					"active_sprint": other.ID,
				})
		}
	}
	t := now
	s.Status = StatusActive
	s.StartedAt = &t
	s.touch(now)
	return nil
}

// Complete moves an Active sprint to Completed. Member issues keep their
// SprintID for historical reporting.
func Complete(s *Sprint, now time.Time) error {
	if s.Status != StatusActive {
		return errState(s, "complete", StatusActive)
	}
	t := now
	s.Status = StatusCompleted
	s.CompletedAt = &t
	s.touch(now)
	return nil
}

func errState(s *Sprint, op string, want Status) *apierr.Error {
	return apierr.Newf(apierr.InvalidState,
		"cannot %s sprint %q: status is %s, expected %s", op, s.Name, s.Status, want).
		WithDetails(map[string]any{
			"sprint":   s.ID,
			"status":   string(s.Status),
			"expected": string(want),
		})
}

func errClosed(s *Sprint) *apierr.Error {
	return apierr.Newf(apierr.SprintClosed, "sprint %q is completed", s.Name).
		WithDetails(map[string]any{"sprint": s.ID})
}

// AddIssue assigns it to s, replacing any previous sprint reference. That
// moves the issue out of another open sprint, or clears a stale reference
// to a completed one. Adding a current member is a no-op (changed=false).
func AddIssue(s *Sprint, it *issue.Issue, now time.Time) (bool, error) {
	if s.Status == StatusCompleted {
		return false, errClosed(s)
	}
	if it.ProjectID != s.ProjectID {
		return false, apierr.Newf(apierr.InvalidInput,
			"%s belongs to project %s, sprint %q to %s", it.Key, it.ProjectID, s.Name, s.ProjectID).
			WithDetails(map[string]any{"issue": it.Key, "sprint": s.ID})
	}
	if it.SprintID == s.ID {
		return false, nil
	}
	it.SprintID = s.ID
	it.Touch(now)
	return true, nil
}

// RemoveIssue returns it from s to the backlog.
func RemoveIssue(s *Sprint, it *issue.Issue, now time.Time) error {
	if s.Status == StatusCompleted {
		return errClosed(s)
	}
	if it.SprintID != s.ID {
		return apierr.Newf(apierr.InvalidInput, "%s is not in sprint %q", it.Key, s.Name).
			WithDetails(map[string]any{"issue": it.Key, "sprint": s.ID})
	}
	it.SprintID = ""
	it.Touch(now)
	return nil
}

// Stats are membership aggregates derived at query time.
type Stats struct {
	Committed            int `json:"committed"`
	Completed            int `json:"completed"`
	InProgress           int `json:"in_progress"`
	Todo                 int `json:"todo"`
	TotalStoryPoints     int `json:"total_story_points"`
	CompletedStoryPoints int `json:"completed_story_points"`
}

// StatsOf aggregates the members of s. Issues not referencing s are ignored.
func StatsOf(s *Sprint, issues []*issue.Issue) Stats {
	var st Stats
	for _, it := range issues {
		if it.SprintID != s.ID {
			continue
		}
		st.Committed++
		st.TotalStoryPoints += it.Points()
		switch it.Status {
		case issue.StatusDone:
			st.Completed++
			st.CompletedStoryPoints += it.Points()
		case issue.StatusInProgress:
			st.InProgress++
		case issue.StatusToDo:
			st.Todo++
		}
	}
	return st
}

// ParseStatus accepts a sprint status, case-insensitively.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if s.IsValid() {
		return s, nil
	}
	return "", apierr.Newf(apierr.InvalidInput, "invalid sprint status %q", v).
		WithDetails(map[string]any{"field": "status", "input": v, "allowed": []string{"planned", "active", "completed"}})
}
