package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

const (
	cardLines       = 3
	cardHeight      = cardLines + 2 // top and bottom borders
	defaultColWidth = 30
	maxColWidth     = 60
)

var (
	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("236")).
				Padding(0, 1)

	activeColumnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("230")).
				Background(lipgloss.Color("62")).
				Padding(0, 1)

	overLimitHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("230")).
				Background(lipgloss.Color("160")).
				Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activeCardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("226")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	keyStyle       = lipgloss.NewStyle().Bold(true)

	priorityStyles = map[issue.Priority]lipgloss.Style{
		issue.PriorityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		issue.PriorityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		issue.PriorityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		issue.PriorityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2) //nolint:mnd // dialog padding
)

func (b *Board) viewBoard() string {
	if len(b.columns) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, "No columns to show.", "", b.renderStatusBar())
	}

	colWidth := b.columnWidth()
	rendered := make([]string, len(b.columns))
	for i := range b.columns {
		rendered[i] = b.renderColumn(i, &b.columns[i], colWidth)
	}
	boardView := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)

	// Clamp or pad to the available height so the status bar stays put.
	targetHeight := b.height - b.chromeHeight()
	if targetHeight > 0 {
		actual := strings.Count(boardView, "\n") + 1
		if actual > targetHeight {
			lines := strings.SplitN(boardView, "\n", targetHeight+1)
			boardView = strings.Join(lines[:targetHeight], "\n")
		} else if actual < targetHeight {
			boardView += strings.Repeat("\n", targetHeight-actual)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, boardView, "", b.renderStatusBar())
}

func (b *Board) columnWidth() int {
	if b.width == 0 || len(b.columns) == 0 {
		return defaultColWidth
	}
	return min(b.width/len(b.columns), maxColWidth)
}

func (b *Board) renderColumn(colIdx int, col *column, width int) string {
	headerText := fmt.Sprintf("%s (%d)", col.name, len(col.issues))
	if col.wipLimit > 0 {
		headerText = fmt.Sprintf("%s (%d/%d)", col.name, len(col.issues), col.wipLimit)
	}
	const headerPad = 2
	headerText = truncate(headerText, width-headerPad)

	style := columnHeaderStyle
	switch {
	case col.wipLimit > 0 && len(col.issues) > col.wipLimit:
		style = overLimitHeaderStyle
	case colIdx == b.activeCol:
		style = activeColumnHeaderStyle
	}
	parts := []string{style.Width(width).Render(headerText)}

	start := min(col.scrollOff, len(col.issues))
	end := min(start+b.visibleCards(col), len(col.issues))

	if start > 0 {
		parts = append(parts, dimStyle.Width(width).Render(truncate(fmt.Sprintf("  ↑ %d more", start), width)))
	}
	if len(col.issues) == 0 {
		parts = append(parts, dimStyle.Width(width).Render("  (empty)"))
	}
	for row := start; row < end; row++ {
		active := colIdx == b.activeCol && row == b.activeRow
		parts = append(parts, b.renderCard(col.issues[row], active, width))
	}
	if end < len(col.issues) {
		parts = append(parts, dimStyle.Width(width).Render(truncate(fmt.Sprintf("  ↓ %d more", len(col.issues)-end), width)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (b *Board) renderCard(it *issue.Issue, active bool, width int) string {
	style := cardStyle
	if active {
		style = activeCardStyle
	}
	return style.Width(width - 2).Render(strings.Join(b.cardContent(it, width), "\n")) //nolint:mnd // border width
}

// cardContent returns exactly cardLines lines: key and priority, summary,
// then assignee, points and age.
func (b *Board) cardContent(it *issue.Issue, width int) []string {
	const cardChrome = 4 // border (2) + padding (2)
	cardWidth := max(width-cardChrome, 1)

	plainHead := it.Key + " " + string(it.Priority)
	head := keyStyle.Render(it.Key) + " " + priorityStyles[it.Priority].Render(string(it.Priority))
	if it.Type != issue.TypeTask {
		plainHead += " " + string(it.Type)
		head += dimStyle.Render(" " + string(it.Type))
	}
	if lipgloss.Width(plainHead) > cardWidth {
		head = truncate(plainHead, cardWidth)
	}

	var meta []string
	if it.AssigneeID != "" {
		meta = append(meta, "@"+it.AssigneeID)
	}
	if it.StoryPoints != nil {
		meta = append(meta, strconv.Itoa(*it.StoryPoints)+"pt")
	}
	if it.Status == issue.StatusInProgress && it.StartedAt != nil {
		meta = append(meta, humanDuration(b.now().Sub(*it.StartedAt)))
	}

	return []string{
		head,
		truncate(it.Summary, cardWidth),
		dimStyle.Render(truncate(strings.Join(meta, "  "), cardWidth)),
	}
}

func (b *Board) renderStatusBar() string {
	name := b.BoardID()
	total := 0
	if b.view != nil {
		name = b.view.Board.Name
		total = b.view.Overview.TotalIssues
		if b.view.Overview.SprintID != "" {
			name += " [sprint]"
		}
	}
	status := truncate(fmt.Sprintf(" %s | %d issues | ", name, total), b.width)
	bar := statusBarStyle.Render(status) + b.help.ShortHelpView(b.keys.boardHelp())

	switch {
	case b.err != nil:
		return errorStyle.Render(truncate("Error: "+b.err.Error(), b.width)) + "\n" + bar
	case b.notice != "":
		return noticeStyle.Render(truncate(b.notice, b.width)) + "\n" + bar
	}
	return bar
}

func (b *Board) viewDeleteConfirm() string {
	if b.deleteIssue == nil {
		return ""
	}
	content := errorStyle.Render("Delete issue?") + "\n\n" +
		fmt.Sprintf("  %s: %s", b.deleteIssue.Key, b.deleteIssue.Summary) + "\n\n" +
		dimStyle.Render("y:yes  n:no")
	return dialogStyle.Render(content)
}

func truncate(s string, maxLen int) string {
	if maxLen < 4 { //nolint:mnd // minimum length for truncation
		maxLen = 4
	}
	if lipgloss.Width(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	target := min(maxLen-3, len(runes)) //nolint:mnd // room for "..."
	for target > 0 && lipgloss.Width(string(runes[:target])) > maxLen-3 {
		target--
	}
	return string(runes[:target]) + "..."
}

// humanDuration formats a duration compactly: "<1m", "5m", "2h", "3d", "2w".
func humanDuration(d time.Duration) string {
	const (
		day  = 24 * time.Hour
		week = 7 * day
	)
	switch {
	case d < time.Minute:
		return "<1m"
	case d < time.Hour:
		return strconv.Itoa(int(d.Minutes())) + "m"
	case d < day:
		return strconv.Itoa(int(d.Hours())) + "h"
	case d < week:
		return strconv.Itoa(int(d/day)) + "d"
	default:
		return strconv.Itoa(int(d/week)) + "w"
	}
}
