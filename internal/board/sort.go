package board

import (
	"sort"
	"strconv"
	"strings"

	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

const (
	fieldKey      = "key"
	fieldStatus   = "status"
	fieldPriority = "priority"
	fieldType     = "type"
	fieldCreated  = "created"
	fieldUpdated  = "updated"
	fieldPoints   = "points"
)

// ValidSortFields returns the list of valid --sort field names.
func ValidSortFields() []string {
	return []string{fieldCreated, fieldKey, fieldStatus, fieldPriority, fieldType, fieldUpdated, fieldPoints}
}

// Sort sorts issues by the given field. Status and priority use their
// declared order, not alphabetical. Unknown fields sort by creation order.
func Sort(issues []*issue.Issue, field string, reverse bool) {
	sort.SliceStable(issues, func(i, j int) bool {
		if reverse {
			return compareIssues(issues[j], issues[i], field)
		}
		return compareIssues(issues[i], issues[j], field)
	})
}

func compareIssues(a, b *issue.Issue, field string) bool {
	switch field {
	case fieldKey:
		return lessKey(a, b)
	case fieldStatus:
		return statusIndex(a.Status) < statusIndex(b.Status)
	case fieldPriority:
		return a.Priority.Rank() < b.Priority.Rank()
	case fieldType:
		return a.Type < b.Type
	case fieldUpdated:
		return a.UpdatedAt.Before(b.UpdatedAt)
	case fieldPoints:
		return a.Points() < b.Points()
	default:
		return LessCreated(a, b)
	}
}

// LessCreated orders by creation time, then by key.
func LessCreated(a, b *issue.Issue) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return lessKey(a, b)
}

// lessKey compares keys by project, then numerically by sequence.
func lessKey(a, b *issue.Issue) bool {
	pa, sa := splitKey(a.Key)
	pb, sb := splitKey(b.Key)
	if pa != pb {
		return pa < pb
	}
	return sa < sb
}

func splitKey(key string) (string, int) {
	i := strings.LastIndexByte(key, '-')
	if i < 0 {
		return key, 0
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return key, 0
	}
	return key[:i], n
}

func statusIndex(s issue.Status) int {
	for i, st := range issue.Statuses {
		if st == s {
			return i
		}
	}
	return -1
}
