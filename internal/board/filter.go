package board

import (
	"slices"
	"strings"

	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

// FilterOptions defines which issues to include.
type FilterOptions struct {
	Statuses        []issue.Status
	ExcludeStatuses []issue.Status
	Types           []issue.Type
	Priorities      []issue.Priority
	Assignee        string
	Unassigned      bool   // only issues without an assignee
	EpicID          string // only issues linked to this epic
	SprintID        string // only members of this sprint
	Search          string // case-insensitive substring match across key, summary and description
}

// Filter returns issues matching all specified criteria (AND logic).
func Filter(issues []*issue.Issue, opts FilterOptions) []*issue.Issue {
	var result []*issue.Issue
	for _, it := range issues {
		if matchesFilter(it, opts) {
			result = append(result, it)
		}
	}
	return result
}

func matchesFilter(it *issue.Issue, opts FilterOptions) bool {
	if len(opts.Statuses) > 0 && !slices.Contains(opts.Statuses, it.Status) {
		return false
	}
	if len(opts.ExcludeStatuses) > 0 && slices.Contains(opts.ExcludeStatuses, it.Status) {
		return false
	}
	if len(opts.Types) > 0 && !slices.Contains(opts.Types, it.Type) {
		return false
	}
	if len(opts.Priorities) > 0 && !slices.Contains(opts.Priorities, it.Priority) {
		return false
	}
	if opts.Assignee != "" && it.AssigneeID != opts.Assignee {
		return false
	}
	if opts.Unassigned && it.AssigneeID != "" {
		return false
	}
	if opts.EpicID != "" && it.EpicID != opts.EpicID {
		return false
	}
	if opts.SprintID != "" && it.SprintID != opts.SprintID {
		return false
	}
	if opts.Search != "" && !matchesSearch(it, opts.Search) {
		return false
	}
	return true
}

// matchesSearch performs case-insensitive substring matching across key, summary and description.
func matchesSearch(it *issue.Issue, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(it.Key), q) ||
		strings.Contains(strings.ToLower(it.Summary), q) ||
		strings.Contains(strings.ToLower(it.Description), q)
}
