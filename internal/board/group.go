package board

import (
	"sort"

	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

const (
	fieldAssignee = "assignee"
	fieldEpic     = "epic"
	fieldSprint   = "sprint"
)

// StatusCount holds a count for one status within a group.
type StatusCount struct {
	Status issue.Status `json:"status"`
	Count  int          `json:"count"`
}

// GroupedSummary holds issues grouped by a field.
type GroupedSummary struct {
	Field  string         `json:"field"`
	Groups []GroupSummary `json:"groups"`
}

// GroupSummary is one group within a grouped view.
type GroupSummary struct {
	Key         string        `json:"key"`
	Statuses    []StatusCount `json:"statuses"`
	Total       int           `json:"total"`
	StoryPoints int           `json:"story_points"`
}

// GroupBy groups issues by the specified field and returns summaries per group.
func GroupBy(issues []*issue.Issue, field string) GroupedSummary {
	groups := make(map[string][]*issue.Issue)
	for _, it := range issues {
		key := groupKey(it, field)
		groups[key] = append(groups[key], it)
	}

	keys := sortGroupKeys(groups, field)
	result := GroupedSummary{
		Field:  field,
		Groups: make([]GroupSummary, 0, len(keys)),
	}
	for _, key := range keys {
		members := groups[key]
		counts := CountByStatus(members)
		statuses := make([]StatusCount, 0, len(issue.Statuses))
		points := 0
		for _, st := range issue.Statuses {
			statuses = append(statuses, StatusCount{Status: st, Count: counts[st]})
		}
		for _, it := range members {
			points += it.Points()
		}
		result.Groups = append(result.Groups, GroupSummary{
			Key:         key,
			Statuses:    statuses,
			Total:       len(members),
			StoryPoints: points,
		})
	}
	return result
}

func groupKey(it *issue.Issue, field string) string {
	switch field {
	case fieldAssignee:
		return orNone(it.AssigneeID, "(unassigned)")
	case fieldEpic:
		return orNone(it.EpicID, "(no epic)")
	case fieldSprint:
		return orNone(it.SprintID, "(no sprint)")
	case fieldType:
		return string(it.Type)
	case fieldPriority:
		return string(it.Priority)
	case fieldStatus:
		return string(it.Status)
	default:
		return "(all)"
	}
}

func orNone(v, none string) string {
	if v == "" {
		return none
	}
	return v
}

func sortGroupKeys(groups map[string][]*issue.Issue, field string) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}

	switch field {
	case fieldStatus:
		sort.SliceStable(keys, func(i, j int) bool {
			return statusIndex(issue.Status(keys[i])) < statusIndex(issue.Status(keys[j]))
		})
	case fieldPriority:
		sort.SliceStable(keys, func(i, j int) bool {
			return issue.Priority(keys[i]).Rank() < issue.Priority(keys[j]).Rank()
		})
	default:
		sort.Strings(keys)
	}
	return keys
}

// ValidGroupByFields returns the list of valid --group-by field names.
func ValidGroupByFields() []string {
	return []string{fieldAssignee, fieldType, fieldPriority, fieldStatus, fieldEpic, fieldSprint}
}
