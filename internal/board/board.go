// Package board provides board configuration, WIP enforcement and
// board-level views over issue collections.
package board

import (
	"fmt"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/config"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

// Kind selects which issues a board shows.
type Kind string

// Board kinds. A kanban board shows every project issue; a scrum board
// shows only members of the project's active sprint.
const (
	KindKanban Kind = config.KindKanban
	KindScrum  Kind = config.KindScrum
)

// Column is one board column bound to a single issue status.
type Column struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Status   issue.Status `json:"status"`
	WIPLimit int          `json:"wip_limit,omitempty"` // 0 = unlimited
}

// Board is an ordered set of columns over one project.
type Board struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	ProjectID string   `json:"project_id"`
	Kind      Kind     `json:"kind"`
	Columns   []Column `json:"columns"`
}

// FromConfig builds and validates a Board from its configuration.
func FromConfig(bc config.BoardConfig) (*Board, error) {
	b := &Board{
		ID:        bc.ID,
		Name:      bc.Name,
		ProjectID: bc.Project,
		Kind:      Kind(bc.Kind),
		Columns:   make([]Column, 0, len(bc.Columns)),
	}
	if b.Name == "" {
		b.Name = b.ID
	}
	if b.Kind == "" {
		b.Kind = KindKanban
	}
	for _, cc := range bc.Columns {
		st, err := issue.ParseStatus(cc.Status)
		if err != nil {
			return nil, err
		}
		name := cc.Name
		if name == "" {
			name = cc.ID
		}
		b.Columns = append(b.Columns, Column{ID: cc.ID, Name: name, Status: st, WIPLimit: cc.WIPLimit})
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that every status is bound to exactly one column and
// that WIP limits are non-negative.
func (b *Board) Validate() error {
	if b.ID == "" {
		return invalidBoard(b, "board id is required")
	}
	if b.Kind != KindKanban && b.Kind != KindScrum {
		return invalidBoard(b, fmt.Sprintf("unknown board kind %q", b.Kind))
	}
	ids := make(map[string]bool, len(b.Columns))
	bound := make(map[issue.Status]string, len(b.Columns))
	for _, col := range b.Columns {
		if col.ID == "" {
			return invalidBoard(b, "column id is required")
		}
		if ids[col.ID] {
			return invalidBoard(b, fmt.Sprintf("duplicate column %q", col.ID))
		}
		ids[col.ID] = true
		if !col.Status.IsValid() {
			return invalidBoard(b, fmt.Sprintf("column %q has unknown status %q", col.ID, col.Status))
		}
		if other, ok := bound[col.Status]; ok {
			return invalidBoard(b, fmt.Sprintf("columns %q and %q both map to status %q", other, col.ID, col.Status))
		}
		bound[col.Status] = col.ID
		if col.WIPLimit < 0 {
			return invalidBoard(b, fmt.Sprintf("column %q wip limit must be >= 0", col.ID))
		}
	}
	for _, st := range issue.Statuses {
		if _, ok := bound[st]; !ok {
			return invalidBoard(b, fmt.Sprintf("no column for status %q", st))
		}
	}
	return nil
}

func invalidBoard(b *Board, msg string) *apierr.Error {
	return apierr.Newf(apierr.InvalidInput, "board %q: %s", b.ID, msg).
		WithDetails(map[string]any{"board": b.ID})
}

// Column returns the column with the given ID, or nil.
func (b *Board) Column(id string) *Column {
	for i := range b.Columns {
		if b.Columns[i].ID == id {
			return &b.Columns[i]
		}
	}
	return nil
}

// ColumnForStatus returns the column bound to status, or nil.
func (b *Board) ColumnForStatus(status issue.Status) *Column {
	for i := range b.Columns {
		if b.Columns[i].Status == status {
			return &b.Columns[i]
		}
	}
	return nil
}

// IsScrum reports whether the board is restricted to the active sprint.
func (b *Board) IsScrum() bool {
	return b.Kind == KindScrum
}

// Clone returns a deep copy of the board.
func (b *Board) Clone() *Board {
	c := *b
	c.Columns = append([]Column(nil), b.Columns...)
	return &c
}
