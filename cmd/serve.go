package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/twiced-technology-gmbh/trackflow/internal/config"
	"github.com/twiced-technology-gmbh/trackflow/internal/server"
	"github.com/twiced-technology-gmbh/trackflow/internal/watcher"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow engine over HTTP",
	Long: `Starts the JSON HTTP API under /api. Requests act as the user named in the
X-Trackflow-Actor header, falling back to the CLI actor.

Board definitions are reloaded when config.yml changes. Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	serveCmd.Flags().Bool("no-reload", false, "do not reload boards when the config changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = config.DefaultServerAddr
	}
	noReload, _ := cmd.Flags().GetBool("no-reload")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Error("closing store", slog.String("error", cerr.Error()))
		}
	}()

	srv := server.New(a.engine, a.boards, a.logger, server.WithDefaultActor(currentActor().ID))
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting server", slog.String("addr", httpServer.Addr), slog.String("version", version))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		}
		return nil
	})
	if !noReload {
		w, err := watcher.New([]string{cfg.ConfigPath()}, func() {
			reloadBoards(a)
			a.logger.Info("config reloaded", slog.Int("boards", len(a.boards.All())))
		})
		if err != nil {
			return fmt.Errorf("starting config watcher: %w", err)
		}
		defer w.Close()
		g.Go(func() error {
			w.Run(gctx, func(watchErr error) {
				a.logger.Warn("config watcher", slog.String("error", watchErr.Error()))
			})
			return nil
		})
	}

	err = g.Wait()
	a.logger.Info("server stopped")
	return err
}
