package issue

import (
	"strings"
	"unicode/utf8"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
)

// MaxSummaryLen is the longest summary accepted, in runes.
const MaxSummaryLen = 255

var statusAliases = map[string]Status{
	"todo":        StatusToDo,
	"to do":       StatusToDo,
	"to-do":       StatusToDo,
	"open":        StatusToDo,
	"in_progress": StatusInProgress,
	"in progress": StatusInProgress,
	"inprogress":  StatusInProgress,
	"in-progress": StatusInProgress,
	"doing":       StatusInProgress,
	"done":        StatusDone,
	"closed":      StatusDone,
}

// ParseStatus accepts canonical status values and common aliases,
// case-insensitively ("ToDo", "In Progress", "doing").
func ParseStatus(s string) (Status, error) {
	if st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st, nil
	}
	return "", invalidValue("status", s, Statuses)
}

// ParseType accepts an issue type, case-insensitively.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if t.IsValid() {
		return t, nil
	}
	return "", invalidValue("type", s, Types)
}

// ParsePriority accepts a priority, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if p.IsValid() {
		return p, nil
	}
	return "", invalidValue("priority", s, Priorities)
}

func invalidValue[T ~string](field, input string, allowed []T) *apierr.Error {
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return apierr.Newf(apierr.InvalidInput, "invalid %s %q", field, input).
		WithDetails(map[string]any{
			"field":   field,
			"input":   input,
			"allowed": names,
		})
}

// ValidateSummary checks that a summary is non-empty and not too long.
func ValidateSummary(summary string) error {
	if strings.TrimSpace(summary) == "" {
		return apierr.New(apierr.InvalidInput, "summary is required").
			WithDetails(map[string]any{"field": "summary"})
	}
	if n := utf8.RuneCountInString(summary); n > MaxSummaryLen {
		return apierr.Newf(apierr.InvalidInput,
			"summary is too long (%d > %d characters)", n, MaxSummaryLen).
			WithDetails(map[string]any{"field": "summary", "length": n, "max": MaxSummaryLen})
	}
	return nil
}

// ValidateStoryPoints rejects negative story points.
func ValidateStoryPoints(points *int) error {
	if points != nil && *points < 0 {
		return apierr.Newf(apierr.InvalidInput, "story points must be >= 0, got %d", *points).
			WithDetails(map[string]any{"field": "story_points", "input": *points})
	}
	return nil
}

// ErrEpicNesting is returned when an epic would be linked to another epic.
func ErrEpicNesting(key string) *apierr.Error {
	return apierr.Newf(apierr.InvalidInput, "%s is an epic; epics cannot be nested", key).
		WithDetails(map[string]any{"issue": key})
}

// Validate checks the field domains of an issue record.
func Validate(it *Issue) error {
	if !it.Type.IsValid() {
		return invalidValue("type", string(it.Type), Types)
	}
	if !it.Status.IsValid() {
		return invalidValue("status", string(it.Status), Statuses)
	}
	if !it.Priority.IsValid() {
		return invalidValue("priority", string(it.Priority), Priorities)
	}
	if err := ValidateSummary(it.Summary); err != nil {
		return err
	}
	if err := ValidateStoryPoints(it.StoryPoints); err != nil {
		return err
	}
	if it.IsEpic() && it.EpicID != "" {
		return ErrEpicNesting(it.Key)
	}
	if it.ProjectID == "" {
		return apierr.New(apierr.InvalidInput, "project is required").
			WithDetails(map[string]any{"field": "project_id"})
	}
	return nil
}
