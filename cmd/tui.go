package cmd

import (
	"context"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/trackflow/internal/config"
	"github.com/twiced-technology-gmbh/trackflow/internal/tui"
	"github.com/twiced-technology-gmbh/trackflow/internal/watcher"
)

var tuiCmd = &cobra.Command{
	Use:   "tui [BOARD]",
	Short: "Open the interactive board",
	Long: `Opens a full-screen board. Move issues between columns with H/L, open
details with enter and switch boards with tab. The board refreshes when
the database or config changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		first, err := resolveBoardID(a.cfg, args)
		if err != nil {
			return err
		}
		boardIDs := []string{first}
		for _, b := range a.boards.All() {
			if !slices.Contains(boardIDs, b.ID) {
				boardIDs = append(boardIDs, b.ID)
			}
		}

		mdStyle := "dark"
		if flagNoColor {
			mdStyle = "notty"
		}
		model, err := tui.NewBoard(ctx, a.engine, a.actor(), boardIDs,
			tui.WithExclusive(a.exclusive),
			tui.WithMarkdownStyle(mdStyle),
		)
		if err != nil {
			return err
		}
		p := tea.NewProgram(model, tea.WithAltScreen())

		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go startTUIWatcher(watchCtx, a, p)

		_, err = p.Run()
		return err
	})
}

// startTUIWatcher reloads the board whenever the database or config file
// changes. The TUI works without live refresh if the watcher cannot start.
func startTUIWatcher(ctx context.Context, a *app, p *tea.Program) {
	paths := []string{a.cfg.ConfigPath()}
	if a.cfg.Storage.Driver == config.DriverSQLite {
		paths = append(paths, a.cfg.StoragePath())
	}
	w, err := watcher.New(paths, func() {
		fresh, lerr := config.Load(a.cfg.Dir())
		if lerr == nil {
			lerr = a.boards.Reload(fresh)
		}
		p.Send(tui.ReloadMsg{Err: lerr})
	})
	if err != nil {
		a.logger.Warn("starting tui watcher", "err", err)
		return
	}
	defer w.Close()
	w.Run(ctx, nil)
}
