// Package backlog derives the backlog view from issue and sprint state.
package backlog

import (
	"sort"

	"github.com/twiced-technology-gmbh/trackflow/internal/board"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/sprint"
)

// Options controls backlog ordering and filtering.
type Options struct {
	Filter  board.FilterOptions
	SortBy  string // any board.ValidSortFields value; empty means creation order
	Reverse bool
	Limit   int
}

// Of returns the project's issues that no open sprint claims: those with no
// sprint, a completed sprint, or a sprint that no longer exists. The input
// slices are not modified.
func Of(projectID string, issues []*issue.Issue, sprints []*sprint.Sprint, opts Options) []*issue.Issue {
	status := make(map[string]sprint.Status, len(sprints))
	for _, s := range sprints {
		status[s.ID] = s.Status
	}

	out := make([]*issue.Issue, 0, len(issues))
	for _, it := range issues {
		if it.ProjectID != projectID {
			continue
		}
		if st, ok := status[it.SprintID]; it.SprintID != "" && ok && st.Open() {
			continue
		}
		out = append(out, it)
	}

	out = board.Filter(out, opts.Filter)
	if opts.SortBy == "" {
		sort.SliceStable(out, func(i, j int) bool {
			if opts.Reverse {
				return board.LessCreated(out[j], out[i])
			}
			return board.LessCreated(out[i], out[j])
		})
	} else {
		board.Sort(out, opts.SortBy, opts.Reverse)
	}

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	if out == nil {
		out = []*issue.Issue{}
	}
	return out
}
