package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/board"
	"github.com/twiced-technology-gmbh/trackflow/internal/config"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/output"
	"github.com/twiced-technology-gmbh/trackflow/internal/watcher"
)

var flagWatch bool

var boardCmd = &cobra.Command{
	Use:     "board [BOARD]",
	Aliases: []string{"summary"},
	Short:   "Show a board",
	Long: `Displays a board: issue counts per column, WIP utilization and the
priority distribution. Scrum boards show the active sprint only.

Use --issues to list the issues of every column. Use --watch to keep the
display live-updating whenever the database or config changes (e.g., from
another terminal). Press Ctrl+C to stop.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBoard,
}

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List configured boards",
	Args:  cobra.NoArgs,
	RunE:  runBoards,
}

func init() {
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(boardsCmd)
	boardCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "live-update the board on changes")
	boardCmd.Flags().BoolP("issues", "i", false, "list the issues of each column")
	boardCmd.Flags().String("group-by", "", "group board issues by field ("+strings.Join(board.ValidGroupByFields(), ", ")+")")
}

func runBoard(cmd *cobra.Command, args []string) error {
	groupBy, _ := cmd.Flags().GetString("group-by")
	if groupBy != "" && !slices.Contains(board.ValidGroupByFields(), groupBy) {
		return apierr.Newf(apierr.InvalidInput, "invalid --group-by field %q; valid: %s",
			groupBy, strings.Join(board.ValidGroupByFields(), ", "))
	}
	withIssues, _ := cmd.Flags().GetBool("issues")

	return withApp(func(ctx context.Context, a *app) error {
		boardID, err := resolveBoardID(a.cfg, args)
		if err != nil {
			return err
		}

		// Render once.
		render := func() error { return renderBoard(ctx, a, boardID, groupBy, withIssues) }
		if err := render(); err != nil {
			return err
		}

		if !flagWatch {
			return nil
		}
		return watchBoard(a, render)
	})
}

func resolveBoardID(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	bc := cfg.DefaultBoard()
	if bc == nil {
		return "", apierr.New(apierr.InvalidInput, "no board configured")
	}
	return bc.ID, nil
}

func renderBoard(ctx context.Context, a *app, boardID, groupBy string, withIssues bool) error {
	view, err := a.engine.BoardView(ctx, boardID)
	if err != nil {
		return err
	}

	if groupBy != "" {
		var issues []*issue.Issue
		for _, col := range view.Columns {
			issues = append(issues, col.Issues...)
		}
		return outputGroupedList(issues, groupBy)
	}

	format := outputFormat()
	switch {
	case format == output.FormatJSON && withIssues:
		return output.JSON(os.Stdout, view)
	case format == output.FormatJSON:
		return output.JSON(os.Stdout, view.Overview)
	case format == output.FormatCompact && withIssues:
		output.BoardCompact(os.Stdout, view)
	case format == output.FormatCompact:
		output.OverviewCompact(os.Stdout, view.Overview)
	case withIssues:
		output.BoardTable(os.Stdout, view)
	default:
		output.OverviewTable(os.Stdout, view.Overview)
	}
	return nil
}

func runBoards(_ *cobra.Command, _ []string) error {
	return withApp(func(_ context.Context, a *app) error {
		boards := a.boards.All()
		if outputFormat() == output.FormatJSON {
			return output.JSON(os.Stdout, boards)
		}
		for _, b := range boards {
			cols := make([]string, len(b.Columns))
			for i, c := range b.Columns {
				cols[i] = c.ID
				if c.WIPLimit > 0 {
					cols[i] += fmt.Sprintf("(%d)", c.WIPLimit)
				}
			}
			output.Messagef(os.Stdout, "%-12s %-7s %-8s %s", b.ID, b.Kind, b.ProjectID, strings.Join(cols, " → "))
		}
		return nil
	})
}

// watchBoard re-renders whenever the database or config file changes.
// Config changes also reload the board definitions.
func watchBoard(a *app, render func() error) error {
	watchFiles := []string{a.cfg.ConfigPath()}
	if a.cfg.Storage.Driver == config.DriverSQLite {
		watchFiles = append(watchFiles, a.cfg.StoragePath())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New(watchFiles, func() {
		clearScreen()
		reloadBoards(a)
		if renderErr := render(); renderErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: rendering board: %v\n", renderErr)
		}
	})
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer w.Close()

	fmt.Fprintln(os.Stderr, "Watching for changes... (Ctrl+C to stop)")

	w.Run(ctx, func(watchErr error) {
		fmt.Fprintf(os.Stderr, "Warning: file watcher: %v\n", watchErr)
	})

	return nil
}

// reloadBoards re-reads the config file and swaps the board definitions.
// On error the previous boards stay in effect.
func reloadBoards(a *app) {
	fresh, err := config.Load(a.cfg.Dir())
	if err == nil {
		err = a.boards.Reload(fresh)
	}
	if err != nil {
		a.logger.Warn("reloading config", "err", err)
		fmt.Fprintf(os.Stderr, "Warning: reloading config: %v\n", err)
	}
}

// clearScreen sends ANSI escape codes to clear the terminal and move the
// cursor to the top-left corner.
func clearScreen() {
	fmt.Fprint(os.Stdout, "\033[2J\033[H")
}
