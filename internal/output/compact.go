package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/twiced-technology-gmbh/trackflow/internal/board"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/sprint"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

// IssueCompact renders a list of issues in one-line-per-record compact format.
func IssueCompact(w io.Writer, issues []*issue.Issue) {
	if len(issues) == 0 {
		fmt.Fprintln(os.Stderr, "No issues found.")
		return
	}

	for _, it := range issues {
		fmt.Fprintln(w, formatIssueLine(it))
	}
}

// IssueDetailCompact renders a single issue with detail in compact format.
func IssueDetailCompact(w io.Writer, it *issue.Issue) {
	line := formatIssueLine(it)
	if it.SprintID != "" {
		line += " sprint:" + it.SprintID
	}
	if it.EpicID != "" {
		line += " epic:" + it.EpicID
	}
	fmt.Fprintln(w, line)

	ts := "  created:" + it.CreatedAt.Format("2006-01-02") +
		" updated:" + it.UpdatedAt.Format("2006-01-02")
	if it.StartedAt != nil {
		ts += " started:" + it.StartedAt.Format("2006-01-02")
	}
	if it.CompletedAt != nil {
		ts += " completed:" + it.CompletedAt.Format("2006-01-02")
	}
	fmt.Fprintln(w, ts)

	if it.Description != "" {
		for _, descLine := range strings.Split(it.Description, "\n") {
			fmt.Fprintln(w, "  "+descLine)
		}
	}
}

// OverviewCompact renders a board summary in compact format.
func OverviewCompact(w io.Writer, s board.Overview) {
	fmt.Fprintf(w, "%s (%d issues)\n", s.BoardName, s.TotalIssues)

	for _, cs := range s.Columns {
		line := "  " + cs.Column + ": " + strconv.Itoa(cs.Count)
		if cs.WIPLimit > 0 {
			line += "/" + strconv.Itoa(cs.WIPLimit)
		}
		if cs.OverLimit {
			line += " (over limit)"
		}
		fmt.Fprintln(w, line)
	}

	if len(s.Priorities) > 0 {
		parts := make([]string, 0, len(s.Priorities))
		for _, pc := range s.Priorities {
			parts = append(parts, string(pc.Priority)+"="+strconv.Itoa(pc.Count))
		}
		fmt.Fprintln(w, "Priority: "+strings.Join(parts, " "))
	}
}

// BoardCompact renders a board as one line per issue prefixed by its column.
func BoardCompact(w io.Writer, v *workflow.BoardView) {
	for _, col := range v.Columns {
		for _, it := range col.Issues {
			fmt.Fprintln(w, col.Column+" "+formatIssueLine(it))
		}
	}
}

// SprintCompact renders sprints one per line.
func SprintCompact(w io.Writer, sprints []*sprint.Sprint) {
	if len(sprints) == 0 {
		fmt.Fprintln(os.Stderr, "No sprints found.")
		return
	}
	for _, s := range sprints {
		fmt.Fprintf(w, "%s [%s] %s %s..%s\n", s.ID, s.Status, s.Name, s.StartDate, s.EndDate)
	}
}

// formatIssueLine builds the one-line representation of an issue.
func formatIssueLine(it *issue.Issue) string {
	line := it.Key + " [" + string(it.Status) + "/" + string(it.Priority) + "] " + it.Summary

	if it.AssigneeID != "" {
		line += " @" + it.AssigneeID
	}
	if it.Type != issue.TypeTask {
		line += " (" + string(it.Type) + ")"
	}
	if it.StoryPoints != nil {
		line += " pts:" + strconv.Itoa(*it.StoryPoints)
	}

	return line
}
