// Package tui implements the interactive terminal board.
package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/permission"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

// Engine is the part of the workflow engine the board drives.
type Engine interface {
	BoardView(ctx context.Context, boardID string) (*workflow.BoardView, error)
	MoveIssue(ctx context.Context, actor permission.Actor, issueRef string, dest issue.Status, boardID string) (*workflow.MoveResult, error)
	DeleteIssue(ctx context.Context, actor permission.Actor, issueRef string) (*issue.Issue, error)
}

// mode is the current screen.
type mode int

const (
	modeBoard mode = iota
	modeDetail
	modeConfirmDelete
)

// Layout constants.
const (
	boardChrome  = 2 // blank line + status bar below the column area
	errorChrome  = 1 // extra line when an error is displayed
	tickInterval = 30 * time.Second
)

// Board is the top-level bubbletea model.
type Board struct {
	ctx       context.Context
	engine    Engine
	actor     permission.Actor
	boardIDs  []string
	boardIdx  int
	view      *workflow.BoardView
	columns   []column
	activeCol int
	activeRow int
	mode      mode
	width     int
	height    int
	err       error
	notice    string
	now       func() time.Time
	exclusive func(func() error) error
	mdStyle   string

	keys   keyMap
	help   help.Model
	detail viewport.Model

	// Issue pending deletion.
	deleteIssue *issue.Issue
}

// column is one rendered board column.
type column struct {
	id        string
	name      string
	status    issue.Status
	wipLimit  int
	issues    []*issue.Issue
	scrollOff int // first visible row index
}

// Option configures a Board.
type Option func(*Board)

// WithClock overrides the clock used for age labels.
func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

// WithExclusive wraps every mutation, e.g. in the workspace file lock.
func WithExclusive(fn func(func() error) error) Option {
	return func(b *Board) { b.exclusive = fn }
}

// WithMarkdownStyle selects the glamour style for issue descriptions
// ("dark", "light", "notty", ...).
func WithMarkdownStyle(style string) Option {
	return func(b *Board) { b.mdStyle = style }
}

// NewBoard creates a board model showing boardIDs[0] first. Tab cycles
// through the remaining boards.
func NewBoard(ctx context.Context, engine Engine, actor permission.Actor, boardIDs []string, opts ...Option) (*Board, error) {
	if len(boardIDs) == 0 {
		return nil, errors.New("no boards configured")
	}
	b := &Board{
		ctx:       ctx,
		engine:    engine,
		actor:     actor,
		boardIDs:  boardIDs,
		now:       time.Now,
		exclusive: func(fn func() error) error { return fn() },
		mdStyle:   "dark",
		keys:      defaultKeyMap(),
		help:      help.New(),
		detail:    viewport.New(0, 0),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.load()
	return b, nil
}

// BoardID returns the ID of the board on screen.
func (b *Board) BoardID() string {
	return b.boardIDs[b.boardIdx]
}

// Init implements tea.Model.
func (b *Board) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (b *Board) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return b.handleKey(msg)
	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height
		b.help.Width = msg.Width
		b.resizeDetail()
		b.ensureVisible()
		return b, nil
	case ReloadMsg:
		if msg.Err != nil {
			b.err = msg.Err
			return b, nil
		}
		b.load()
		return b, nil
	case TickMsg:
		return b, tickCmd()
	}
	return b, nil
}

// View implements tea.Model.
func (b *Board) View() string {
	if b.width == 0 {
		return "Loading..."
	}
	switch b.mode {
	case modeDetail:
		return b.viewDetail()
	case modeConfirmDelete:
		return b.viewDeleteConfirm()
	default:
		return b.viewBoard()
	}
}

func (b *Board) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, b.keys.ForceQuit) {
		return b, tea.Quit
	}
	switch b.mode {
	case modeDetail:
		return b.handleDetailKey(msg)
	case modeConfirmDelete:
		return b.handleDeleteKey(msg)
	default:
		return b.handleBoardKey(msg)
	}
}

func (b *Board) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	b.notice = ""
	switch {
	case key.Matches(msg, b.keys.Quit):
		return b, tea.Quit
	case key.Matches(msg, b.keys.Left):
		if b.activeCol > 0 {
			b.activeCol--
			b.clampRow()
		}
	case key.Matches(msg, b.keys.Right):
		if b.activeCol < len(b.columns)-1 {
			b.activeCol++
			b.clampRow()
		}
	case key.Matches(msg, b.keys.Down):
		col := b.currentColumn()
		if col != nil && b.activeRow < len(col.issues)-1 {
			b.activeRow++
			b.ensureVisible()
		}
	case key.Matches(msg, b.keys.Up):
		if b.activeRow > 0 {
			b.activeRow--
			b.ensureVisible()
		}
	case key.Matches(msg, b.keys.MovePrev):
		b.moveSelected(-1)
	case key.Matches(msg, b.keys.MoveNext):
		b.moveSelected(1)
	case key.Matches(msg, b.keys.Open):
		b.openDetail()
	case key.Matches(msg, b.keys.Delete):
		if it := b.selectedIssue(); it != nil {
			b.deleteIssue = it
			b.mode = modeConfirmDelete
		}
	case key.Matches(msg, b.keys.NextBoard):
		if len(b.boardIDs) > 1 {
			b.boardIdx = (b.boardIdx + 1) % len(b.boardIDs)
			b.activeCol, b.activeRow = 0, 0
			b.columns = nil
			b.load()
		}
	case key.Matches(msg, b.keys.Reload):
		b.load()
	}
	return b, nil
}

func (b *Board) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, b.keys.Back) || key.Matches(msg, b.keys.Quit) {
		b.mode = modeBoard
		return b, nil
	}
	var cmd tea.Cmd
	b.detail, cmd = b.detail.Update(msg)
	return b, cmd
}

func (b *Board) handleDeleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, b.keys.Confirm):
		b.executeDelete()
	case key.Matches(msg, b.keys.Cancel):
		b.deleteIssue = nil
		b.mode = modeBoard
	}
	return b, nil
}

// load fetches the board view and rebuilds the columns, keeping the
// selected issue selected when it is still on the board.
func (b *Board) load() {
	var selectedID string
	if it := b.selectedIssue(); it != nil {
		selectedID = it.ID
	}

	v, err := b.engine.BoardView(b.ctx, b.BoardID())
	if err != nil {
		b.err = err
		return
	}
	b.err = nil
	b.view = v

	prevScroll := make(map[string]int, len(b.columns))
	for _, col := range b.columns {
		prevScroll[col.id] = col.scrollOff
	}
	b.columns = make([]column, len(v.Columns))
	for i, bc := range v.Columns {
		b.columns[i] = column{
			id:        bc.Column,
			name:      bc.Name,
			status:    bc.Status,
			wipLimit:  bc.WIPLimit,
			issues:    bc.Issues,
			scrollOff: prevScroll[bc.Column],
		}
	}
	if b.activeCol >= len(b.columns) {
		b.activeCol = max(len(b.columns)-1, 0)
	}
	if selectedID != "" {
		b.selectIssue(selectedID)
	}
	b.clampRow()
}

// selectIssue moves the cursor to the issue with the given ID.
func (b *Board) selectIssue(id string) bool {
	for c := range b.columns {
		for r, it := range b.columns[c].issues {
			if it.ID == id {
				b.activeCol, b.activeRow = c, r
				return true
			}
		}
	}
	return false
}

// moveSelected moves the selected issue to the nearest column in direction
// step whose status it can transition to. Rejections such as WIP limits are
// shown in the status bar.
func (b *Board) moveSelected(step int) {
	it := b.selectedIssue()
	if it == nil {
		return
	}
	target, err := b.adjacentStatus(it, step)
	if err != nil || target == "" {
		b.err = err
		return
	}

	var res *workflow.MoveResult
	err = b.exclusive(func() error {
		var merr error
		res, merr = b.engine.MoveIssue(b.ctx, b.actor, it.ID, target, b.BoardID())
		return merr
	})
	if err != nil {
		b.err = err
		return
	}
	b.load()
	if !b.selectIssue(res.Issue.ID) {
		b.clampRow()
	}
	b.ensureVisible()
	b.notice = fmt.Sprintf("Moved %s: %s → %s", res.Issue.Key, res.From, res.To)
}

// adjacentStatus finds the first column in direction step whose status it
// can move to. Columns with an unreachable status are skipped; when every
// differing column is unreachable the transition error for the nearest one
// is returned. An empty status means there is nothing in that direction.
func (b *Board) adjacentStatus(it *issue.Issue, step int) (issue.Status, error) {
	col := b.currentColumn()
	if col == nil {
		return "", nil
	}
	next := issue.NextStatuses(it.Status)
	var blocked issue.Status
	for i := b.activeCol + step; i >= 0 && i < len(b.columns); i += step {
		s := b.columns[i].status
		if s == col.status {
			continue
		}
		if slices.Contains(next, s) {
			return s, nil
		}
		if blocked == "" {
			blocked = s
		}
	}
	if blocked != "" {
		return "", issue.ErrTransition(it, blocked)
	}
	return "", nil
}

func (b *Board) executeDelete() {
	it := b.deleteIssue
	b.deleteIssue = nil
	b.mode = modeBoard
	if it == nil {
		return
	}
	err := b.exclusive(func() error {
		_, derr := b.engine.DeleteIssue(b.ctx, b.actor, it.ID)
		return derr
	})
	if err != nil {
		b.err = err
		return
	}
	b.load()
	b.notice = "Deleted " + it.Key
}

func (b *Board) currentColumn() *column {
	if b.activeCol >= 0 && b.activeCol < len(b.columns) {
		return &b.columns[b.activeCol]
	}
	return nil
}

func (b *Board) selectedIssue() *issue.Issue {
	col := b.currentColumn()
	if col == nil || len(col.issues) == 0 {
		return nil
	}
	if b.activeRow >= 0 && b.activeRow < len(col.issues) {
		return col.issues[b.activeRow]
	}
	return nil
}

func (b *Board) clampRow() {
	col := b.currentColumn()
	if col == nil || len(col.issues) == 0 {
		b.activeRow = 0
		return
	}
	if b.activeRow >= len(col.issues) {
		b.activeRow = len(col.issues) - 1
	}
	b.ensureVisible()
}

// chromeHeight returns the number of lines below the column area.
func (b *Board) chromeHeight() int {
	h := boardChrome
	if b.err != nil || b.notice != "" {
		h += errorChrome
	}
	return h
}

// visibleCards returns how many cards of col fit on screen, leaving room
// for the header and the "more" indicators.
func (b *Board) visibleCards(col *column) int {
	if b.height == 0 {
		return len(col.issues)
	}
	avail := b.height - b.chromeHeight() - 1 // column header
	if col.scrollOff > 0 {
		avail--
	}
	n := avail / cardHeight
	if col.scrollOff+n < len(col.issues) {
		n = (avail - 1) / cardHeight
	}
	return max(n, 1)
}

// ensureVisible scrolls the active column so the selected row is shown.
func (b *Board) ensureVisible() {
	col := b.currentColumn()
	if col == nil {
		return
	}
	for range len(col.issues) + 1 {
		maxVis := b.visibleCards(col)
		switch {
		case b.activeRow >= col.scrollOff+maxVis:
			col.scrollOff = b.activeRow - maxVis + 1
		case b.activeRow < col.scrollOff:
			col.scrollOff = b.activeRow
		default:
			return
		}
	}
}

// --- Messages ---

// ReloadMsg asks the board to refetch its view, e.g. after the database or
// config changed on disk. A non-nil Err is shown instead.
type ReloadMsg struct {
	Err error
}

// TickMsg is sent periodically to refresh age labels.
type TickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return TickMsg{} })
}
