// Package issue defines the Issue record and its status machine.
package issue

import (
	"strconv"
	"time"
)

// Status is the workflow state of an issue.
type Status string

// Issue statuses. ToDo is the initial status of every new issue.
const (
	StatusToDo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Statuses lists every status in board order.
var Statuses = []Status{StatusToDo, StatusInProgress, StatusDone}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Type classifies an issue.
type Type string

// Issue types.
const (
	TypeEpic  Type = "epic"
	TypeStory Type = "story"
	TypeTask  Type = "task"
	TypeBug   Type = "bug"
)

// Types lists every issue type.
var Types = []Type{TypeEpic, TypeStory, TypeTask, TypeBug}

// IsValid reports whether t is a known type.
func (t Type) IsValid() bool {
	switch t {
	case TypeEpic, TypeStory, TypeTask, TypeBug:
		return true
	}
	return false
}

// Priority ranks an issue.
type Priority string

// Priorities, lowest first.
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities lists every priority, lowest first.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	return p.Rank() >= 0
}

// Rank returns the position of p in Priorities, or -1.
func (p Priority) Rank() int {
	for i, q := range Priorities {
		if p == q {
			return i
		}
	}
	return -1
}

// Issue is a unit of tracked work.
type Issue struct {
	ID          string     `yaml:"id" json:"id"`
	Key         string     `yaml:"key" json:"key"`
	ProjectID   string     `yaml:"project_id" json:"project_id"`
	Type        Type       `yaml:"type" json:"type"`
	Status      Status     `yaml:"status" json:"status"`
	Priority    Priority   `yaml:"priority" json:"priority"`
	Summary     string     `yaml:"summary" json:"summary"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	SprintID    string     `yaml:"sprint_id,omitempty" json:"sprint_id,omitempty"`
	EpicID      string     `yaml:"epic_id,omitempty" json:"epic_id,omitempty"`
	StoryPoints *int       `yaml:"story_points,omitempty" json:"story_points,omitempty"`
	AssigneeID  string     `yaml:"assignee_id,omitempty" json:"assignee_id,omitempty"`
	ReporterID  string     `yaml:"reporter_id" json:"reporter_id"`
	CreatedAt   time.Time  `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `yaml:"updated_at" json:"updated_at"`
	StartedAt   *time.Time `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Points returns the story points, treating unset as zero.
func (it *Issue) Points() int {
	if it.StoryPoints == nil {
		return 0
	}
	return *it.StoryPoints
}

// IsEpic reports whether the issue is of type epic.
func (it *Issue) IsEpic() bool {
	return it.Type == TypeEpic
}

// Clone returns a deep copy of the issue.
func (it *Issue) Clone() *Issue {
	if it == nil {
		return nil
	}
	c := *it
	if it.StoryPoints != nil {
		p := *it.StoryPoints
		c.StoryPoints = &p
	}
	if it.StartedAt != nil {
		s := *it.StartedAt
		c.StartedAt = &s
	}
	if it.CompletedAt != nil {
		d := *it.CompletedAt
		c.CompletedAt = &d
	}
	return &c
}

// Touch advances UpdatedAt to now, never moving it backwards.
func (it *Issue) Touch(now time.Time) {
	if now.Before(it.UpdatedAt) {
		return
	}
	it.UpdatedAt = now
}

// FormatKey builds an issue key from a project key and sequence number.
func FormatKey(projectID string, seq int) string {
	return projectID + "-" + strconv.Itoa(seq)
}
