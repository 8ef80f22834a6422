package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

const detailChrome = 2 // blank line + help line

var detailTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230"))

func (b *Board) openDetail() {
	it := b.selectedIssue()
	if it == nil {
		return
	}
	b.resizeDetail()
	b.detail.SetContent(b.renderDetail(it))
	b.detail.GotoTop()
	b.mode = modeDetail
}

func (b *Board) resizeDetail() {
	b.detail.Width = b.width
	b.detail.Height = max(b.height-detailChrome, 1)
}

// renderDetail formats the issue fields followed by its description rendered
// as markdown.
func (b *Board) renderDetail(it *issue.Issue) string {
	var sb strings.Builder
	sb.WriteString(detailTitleStyle.Render(it.Key+"  "+it.Summary) + "\n\n")

	field := func(name, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&sb, "%s %s\n", dimStyle.Render(fmt.Sprintf("%-10s", name)), value)
	}
	field("Type", string(it.Type))
	field("Status", string(it.Status))
	field("Priority", string(it.Priority))
	field("Assignee", it.AssigneeID)
	field("Reporter", it.ReporterID)
	if it.StoryPoints != nil {
		field("Points", fmt.Sprint(*it.StoryPoints))
	}
	field("Sprint", it.SprintID)
	field("Epic", it.EpicID)
	field("Created", it.CreatedAt.Format("2006-01-02 15:04"))
	if it.StartedAt != nil {
		field("Started", it.StartedAt.Format("2006-01-02 15:04"))
	}
	if it.CompletedAt != nil {
		field("Completed", it.CompletedAt.Format("2006-01-02 15:04"))
	}

	if strings.TrimSpace(it.Description) == "" {
		sb.WriteString("\n" + dimStyle.Render("No description."))
		return sb.String()
	}
	sb.WriteString("\n" + b.renderMarkdown(it.Description))
	return sb.String()
}

// renderMarkdown renders md with glamour, falling back to the raw text.
func (b *Board) renderMarkdown(md string) string {
	wrap := b.width
	if wrap <= 0 {
		wrap = 80 //nolint:mnd // default wrap width
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(b.mdStyle),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func (b *Board) viewDetail() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		b.detail.View(),
		"",
		b.help.ShortHelpView([]key.Binding{b.keys.Scroll, b.keys.Back}),
	)
}
