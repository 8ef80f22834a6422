package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/twiced-technology-gmbh/trackflow/internal/activity"
	"github.com/twiced-technology-gmbh/trackflow/internal/board"
	"github.com/twiced-technology-gmbh/trackflow/internal/epic"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/project"
	"github.com/twiced-technology-gmbh/trackflow/internal/sprint"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	titleStyle  = lipgloss.NewStyle().Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	// Issue and sprint status colors.
	statusStyles = map[string]lipgloss.Style{
		"todo":        lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		"in_progress": lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		"done":        lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		"planned":     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		"active":      lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true),
		"completed":   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}

	priorityStyles = map[string]lipgloss.Style{
		"critical": lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		"high":     lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		"medium":   lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		"low":      lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}

	typeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
	assigneeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("44")).Bold(true)
)

// DisableColor strips all styling from table output and forces the
// renderer to the ASCII profile, which also covers the interactive board.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
	headerStyle = lipgloss.NewStyle()
	dimStyle = lipgloss.NewStyle()
	titleStyle = lipgloss.NewStyle()
	warnStyle = lipgloss.NewStyle()
	statusStyles = map[string]lipgloss.Style{}
	priorityStyles = map[string]lipgloss.Style{}
	typeStyle = lipgloss.NewStyle()
	assigneeStyle = lipgloss.NewStyle()
}

// IssueTable renders a list of issues as a formatted table.
func IssueTable(w io.Writer, issues []*issue.Issue) {
	if len(issues) == 0 {
		fmt.Fprintln(os.Stderr, "No issues found.")
		return
	}

	const pad = 2
	keyW, typeW, statusW, prioW, ptsW, summaryW, assigneeW := 5, 6, 8, 10, 5, 9, 10
	for _, it := range issues {
		keyW = max(keyW, len(it.Key)+pad)
		typeW = max(typeW, len(it.Type)+pad)
		statusW = max(statusW, len(it.Status)+pad)
		prioW = max(prioW, len(it.Priority)+pad)
		summaryW = max(summaryW, min(len(it.Summary)+pad, 50)) //nolint:mnd // max summary column width
		assigneeW = max(assigneeW, len(assigneeDisplay(it))+pad)
	}

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s %-*s %-*s %-*s",
		keyW, "KEY", typeW, "TYPE", statusW, "STATUS", prioW, "PRIORITY",
		ptsW, "PTS", summaryW, "SUMMARY", assigneeW, "ASSIGNEE")
	fmt.Fprintln(w, headerStyle.Render(strings.TrimRight(header, " ")))

	for _, it := range issues {
		summary := it.Summary
		const maxSummary = 48
		if len(summary) > maxSummary {
			summary = summary[:maxSummary-3] + "..."
		}
		assignee := assigneeDisplay(it)
		if assignee == "" {
			assignee = dimStyle.Render("--")
		} else {
			assignee = assigneeStyle.Render(assignee)
		}

		row := fmt.Sprintf("%-*s %s %s %s %s %s %s",
			keyW, it.Key,
			padRight(typeStyle.Render(string(it.Type)), typeW),
			padRight(styledValue(string(it.Status), statusStyles), statusW),
			padRight(styledValue(string(it.Priority), priorityStyles), prioW),
			padRight(pointsDisplay(it.StoryPoints), ptsW),
			padRight(summary, summaryW),
			assignee)
		fmt.Fprintln(w, strings.TrimRight(row, " "))
	}
}

// IssueDetail renders a single issue with full detail.
func IssueDetail(w io.Writer, it *issue.Issue) {
	titleLine := fmt.Sprintf("%s: %s", it.Key, it.Summary)
	fmt.Fprintln(w, titleStyle.Render(titleLine))
	fmt.Fprintln(w, strings.Repeat("─", lipgloss.Width(titleLine)))

	printField(w, "Type", typeStyle.Render(string(it.Type)))
	printField(w, "Status", styledValue(string(it.Status), statusStyles))
	printField(w, "Priority", styledValue(string(it.Priority), priorityStyles))
	printField(w, "Points", pointsDisplay(it.StoryPoints))
	printField(w, "Assignee", stringOrDash(it.AssigneeID))
	printField(w, "Reporter", stringOrDash(it.ReporterID))
	printField(w, "Sprint", stringOrDash(it.SprintID))
	printField(w, "Epic", stringOrDash(it.EpicID))
	printField(w, "Created", it.CreatedAt.Format("2006-01-02 15:04"))
	printField(w, "Updated", it.UpdatedAt.Format("2006-01-02 15:04"))
	if it.StartedAt != nil {
		printField(w, "Started", it.StartedAt.Format("2006-01-02 15:04"))
	}
	if it.CompletedAt != nil {
		printField(w, "Completed", it.CompletedAt.Format("2006-01-02 15:04"))
		printField(w, "Lead time", FormatDuration(it.CompletedAt.Sub(it.CreatedAt)))
		if it.StartedAt != nil {
			printField(w, "Cycle time", FormatDuration(it.CompletedAt.Sub(*it.StartedAt)))
		}
	}

	if it.Description != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, it.Description)
	}
}

// OverviewTable renders a board summary as a formatted dashboard.
func OverviewTable(w io.Writer, s board.Overview) {
	fmt.Fprintln(w, titleStyle.Render(s.BoardName+" ("+string(s.Kind)+", "+s.ProjectID+")"))
	fmt.Fprintf(w, "Total: %d issues", s.TotalIssues)
	if s.SprintID != "" {
		fmt.Fprintf(w, " in sprint %s", s.SprintID)
	}
	fmt.Fprint(w, "\n\n")

	header := fmt.Sprintf("%-16s %-14s %6s %8s %6s", "COLUMN", "STATUS", "COUNT", "WIP", "PTS")
	fmt.Fprintln(w, headerStyle.Render(header))

	for _, cs := range s.Columns {
		wip := dimStyle.Render("--")
		if cs.WIPLimit > 0 {
			wip = strconv.Itoa(cs.Count) + "/" + strconv.Itoa(cs.WIPLimit)
			if cs.OverLimit {
				wip = warnStyle.Render(wip)
			}
		}
		const nameColW, statusColW = 16, 14
		fmt.Fprintf(w, "%s %s %6d %s %6d\n",
			padRight(cs.Name, nameColW),
			padRight(styledValue(string(cs.Status), statusStyles), statusColW),
			cs.Count, padLeft(wip, 8), cs.StoryPoints) //nolint:mnd // column width
	}

	fmt.Fprintln(w)
	prioHeader := fmt.Sprintf("%-16s %6s", "PRIORITY", "COUNT")
	fmt.Fprintln(w, headerStyle.Render(prioHeader))

	for _, pc := range s.Priorities {
		const prioColW = 16
		fmt.Fprintf(w, "%s %6d\n",
			padRight(styledValue(string(pc.Priority), priorityStyles), prioColW), pc.Count)
	}
}

// BoardTable renders a board column by column with the issues in each.
func BoardTable(w io.Writer, v *workflow.BoardView) {
	title := v.Overview.BoardName
	if v.Overview.SprintID != "" {
		title += " · sprint " + v.Overview.SprintID
	}
	fmt.Fprintln(w, titleStyle.Render(title))

	for _, col := range v.Columns {
		fmt.Fprintln(w)
		heading := fmt.Sprintf("%s (%d", col.Name, col.Count)
		if col.WIPLimit > 0 {
			heading += "/" + strconv.Itoa(col.WIPLimit)
		}
		heading += ")"
		if col.OverLimit {
			fmt.Fprintln(w, warnStyle.Render(heading+" over limit"))
		} else {
			fmt.Fprintln(w, headerStyle.Render(heading))
		}
		if len(col.Issues) == 0 {
			fmt.Fprintln(w, "  "+dimStyle.Render("--"))
			continue
		}
		for _, it := range col.Issues {
			fmt.Fprintln(w, "  "+formatIssueLine(it))
		}
	}
}

// GroupedTable renders a grouped view with per-group status breakdowns.
func GroupedTable(w io.Writer, gs board.GroupedSummary) {
	if len(gs.Groups) == 0 {
		fmt.Fprintln(os.Stderr, "No groups found.")
		return
	}

	for i, g := range gs.Groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		title := fmt.Sprintf("%s (%d issues, %d pts)", g.Key, g.Total, g.StoryPoints)
		fmt.Fprintln(w, titleStyle.Render(title))

		for _, ss := range g.Statuses {
			if ss.Count == 0 {
				continue
			}
			const groupStatusW = 16
			fmt.Fprintf(w, "  %s %d\n",
				padRight(styledValue(string(ss.Status), statusStyles), groupStatusW), ss.Count)
		}
	}
}

// SprintTable renders a list of sprints.
func SprintTable(w io.Writer, sprints []*sprint.Sprint) {
	if len(sprints) == 0 {
		fmt.Fprintln(os.Stderr, "No sprints found.")
		return
	}

	const pad = 2
	idW, nameW, statusW := 4, 6, 8
	for _, s := range sprints {
		idW = max(idW, len(s.ID)+pad)
		nameW = max(nameW, min(len(s.Name)+pad, 40)) //nolint:mnd // max name column width
		statusW = max(statusW, len(s.Status)+pad)
	}

	header := fmt.Sprintf("%-*s %-*s %-*s %-10s  %-10s", idW, "ID", nameW, "NAME", statusW, "STATUS", "START", "END")
	fmt.Fprintln(w, headerStyle.Render(header))
	for _, s := range sprints {
		fmt.Fprintf(w, "%-*s %s %s %-10s  %-10s\n",
			idW, s.ID,
			padRight(s.Name, nameW),
			padRight(styledValue(string(s.Status), statusStyles), statusW),
			s.StartDate.String(), s.EndDate.String())
	}
}

// SprintReportTable renders a sprint with its statistics and members.
func SprintReportTable(w io.Writer, r *workflow.SprintReport) {
	s := r.Sprint
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Sprint %s: %s", s.ID, s.Name)))
	printField(w, "Status", styledValue(string(s.Status), statusStyles))
	printField(w, "Dates", s.StartDate.String()+" → "+s.EndDate.String())
	if s.Goal != "" {
		printField(w, "Goal", s.Goal)
	}
	if s.StartedAt != nil {
		printField(w, "Started", s.StartedAt.Format("2006-01-02 15:04"))
	}
	if s.CompletedAt != nil {
		printField(w, "Completed", s.CompletedAt.Format("2006-01-02 15:04"))
	}
	st := r.Stats
	printField(w, "Issues", fmt.Sprintf("%d committed, %d done, %d in progress, %d to do",
		st.Committed, st.Completed, st.InProgress, st.Todo))
	printField(w, "Points", fmt.Sprintf("%d/%d", st.CompletedStoryPoints, st.TotalStoryPoints))

	if len(r.Issues) > 0 {
		fmt.Fprintln(w)
		IssueTable(w, r.Issues)
	}
}

// EpicTable renders a list of epics.
func EpicTable(w io.Writer, epics []*epic.Epic) {
	if len(epics) == 0 {
		fmt.Fprintln(os.Stderr, "No epics found.")
		return
	}

	const pad = 2
	idW, prioW := 4, 10
	for _, e := range epics {
		idW = max(idW, len(e.ID)+pad)
		prioW = max(prioW, len(e.Priority)+pad)
	}
	header := fmt.Sprintf("%-*s %-*s %s", idW, "ID", prioW, "PRIORITY", "SUMMARY")
	fmt.Fprintln(w, headerStyle.Render(header))
	for _, e := range epics {
		fmt.Fprintf(w, "%-*s %s %s\n",
			idW, e.ID, padRight(styledValue(string(e.Priority), priorityStyles), prioW), e.Summary)
	}
}

// EpicProgressTable renders an epic's progress bar and linked issues.
func EpicProgressTable(w io.Writer, p *workflow.EpicProgress) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Epic %s: %s", p.Epic.ID, p.Epic.Summary)))
	pr := p.Progress
	printField(w, "Progress", progressBar(pr.ProgressPercent)+" "+strconv.Itoa(pr.ProgressPercent)+"%")
	printField(w, "Issues", fmt.Sprintf("%d total, %d done, %d in progress, %d to do",
		pr.Total, pr.Completed, pr.InProgress, pr.Todo))
	printField(w, "Points", fmt.Sprintf("%d/%d", pr.CompletedStoryPoints, pr.TotalStoryPoints))

	if len(p.Issues) > 0 {
		fmt.Fprintln(w)
		IssueTable(w, p.Issues)
	}
}

// ProjectTable renders a list of projects.
func ProjectTable(w io.Writer, projects []*project.Project) {
	if len(projects) == 0 {
		fmt.Fprintln(os.Stderr, "No projects found.")
		return
	}
	header := fmt.Sprintf("%-12s %-30s %8s", "KEY", "NAME", "ISSUES")
	fmt.Fprintln(w, headerStyle.Render(header))
	for _, p := range projects {
		fmt.Fprintf(w, "%-12s %-30s %8d\n", p.ID, p.Name, p.NextSeq-1)
	}
}

// ActivityTable renders activity log entries, oldest first.
func ActivityTable(w io.Writer, entries []activity.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "No activity recorded.")
		return
	}
	header := fmt.Sprintf("%-17s %-16s %-10s %-12s %s", "TIME", "ACTION", "ACTOR", "ENTITY", "DETAIL")
	fmt.Fprintln(w, headerStyle.Render(header))
	for _, e := range entries {
		fmt.Fprintf(w, "%-17s %-16s %s %-12s %s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04"), e.Action,
			padRight(stringOrDash(e.Actor), 10), e.EntityID, e.Detail) //nolint:mnd // column width
	}
}

// Messagef prints a simple formatted message line.
func Messagef(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %-12s %s\n", label+":", value)
}

// FormatDuration renders a duration as human-readable "Xd Yh" or "Xh Ym".
func FormatDuration(d time.Duration) string {
	const hoursPerDay = 24
	days := int(d.Hours()) / hoursPerDay
	hours := int(d.Hours()) % hoursPerDay
	if days > 0 {
		return strconv.Itoa(days) + "d " + strconv.Itoa(hours) + "h"
	}
	minutes := int(d.Minutes()) % 60 //nolint:mnd // 60 minutes per hour
	return strconv.Itoa(hours) + "h " + strconv.Itoa(minutes) + "m"
}

// progressBar renders percent as a 20-cell bar.
func progressBar(percent int) string {
	const cells = 20
	filled := min(max(percent*cells/100, 0), cells) //nolint:mnd // percent
	return "[" + strings.Repeat("#", filled) + dimStyle.Render(strings.Repeat(".", cells-filled)) + "]"
}

// padRight pads s with spaces to the given visible width, accounting for ANSI
// escape codes that are invisible but consume bytes.
func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func padLeft(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return strings.Repeat(" ", width-visible) + s
}

func stringOrDash(s string) string {
	if s == "" {
		return dimStyle.Render("--")
	}
	return s
}

// assigneeDisplay returns "@user" if the issue is assigned, or "" otherwise.
func assigneeDisplay(it *issue.Issue) string {
	if it.AssigneeID != "" {
		return "@" + it.AssigneeID
	}
	return ""
}

func pointsDisplay(points *int) string {
	if points == nil {
		return dimStyle.Render("--")
	}
	return strconv.Itoa(*points)
}

// styledValue renders s using a matching style from the map, or returns s unchanged.
func styledValue(s string, styles map[string]lipgloss.Style) string {
	if st, ok := styles[s]; ok {
		return st.Render(s)
	}
	return s
}
