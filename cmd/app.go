package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/twiced-technology-gmbh/trackflow/internal/activity"
	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/board"
	"github.com/twiced-technology-gmbh/trackflow/internal/config"
	"github.com/twiced-technology-gmbh/trackflow/internal/filelock"
	"github.com/twiced-technology-gmbh/trackflow/internal/logging"
	"github.com/twiced-technology-gmbh/trackflow/internal/permission"
	"github.com/twiced-technology-gmbh/trackflow/internal/store"
	"github.com/twiced-technology-gmbh/trackflow/internal/store/memory"
	"github.com/twiced-technology-gmbh/trackflow/internal/store/sqlite"
	"github.com/twiced-technology-gmbh/trackflow/internal/telemetry"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

const (
	lockFileName = ".trackflow.lock"
	serviceName  = "trackflow"
)

// app bundles everything a command needs to talk to the workflow engine.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    store.Store
	boards   *board.Registry
	activity *activity.Log
	engine   *workflow.Engine
}

// openApp loads the workspace config and builds the engine over it.
// CLI commands log warnings and errors only; serve passes the configured level.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, string(logging.LevelWarn))
}

func newApp(ctx context.Context, cfg *config.Config, level string) (*app, error) {
	logger := logging.Setup(os.Stderr, level, cfg.Log.Format)

	if err := telemetry.Init(ctx, os.Stderr, serviceName, version); err != nil {
		return nil, err
	}

	s, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	boards, err := board.RegistryFromConfig(cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	log := activity.NewLog(cfg.ActivityLogPath())
	engine := workflow.New(
		telemetry.WrapStore(s),
		boards,
		permission.FromConfig(cfg.Permissions),
		workflow.WithLogger(logger),
		workflow.WithRecorder(log),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		boards:   boards,
		activity: log,
		engine:   engine,
	}, nil
}

// openStore opens the repository backend selected by the config.
func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite, "":
		s, err := sqlite.Open(cfg.StoragePath(), logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMemory:
		logger.Warn("using the in-memory store; nothing will be persisted")
		return memory.New(), nil
	default:
		return nil, apierr.Newf(apierr.InvalidInput, "unknown storage driver %q", cfg.Storage.Driver).
			WithDetails(map[string]any{"field": "storage.driver", "input": cfg.Storage.Driver})
	}
}

// Close flushes telemetry and closes the store.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	telemetry.Shutdown(ctx)
	return a.store.Close()
}

// actor returns the acting user: --as, then $TRACKFLOW_ACTOR, then $USER.
func (a *app) actor() permission.Actor {
	return currentActor()
}

func currentActor() permission.Actor {
	if flagActor != "" {
		return permission.Actor{ID: flagActor}
	}
	fallback := os.Getenv("USER")
	if fallback == "" {
		fallback = "anonymous"
	}
	return permission.Actor{ID: config.Actor(fallback)}
}

// defaultProject returns --project when set, else the workspace project.
func (a *app) defaultProject(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if a.cfg.Project == "" {
		return "", apierr.New(apierr.InvalidInput, "no project given and no default project configured (use --project)").
			WithDetails(map[string]any{"field": "project"})
	}
	return a.cfg.Project, nil
}

// exclusive runs fn while holding the workspace lock file, serializing
// mutations across trackflow processes sharing the directory.
func (a *app) exclusive(fn func() error) error {
	return withDirLock(a.cfg.Dir(), fn)
}

func withDirLock(dir string, fn func() error) error {
	path := filepath.Join(dir, lockFileName)
	unlock, err := filelock.TryLock(path)
	if errors.Is(err, filelock.ErrLocked) {
		slog.Warn("waiting for another trackflow process to release the workspace", "lock", path)
		unlock, err = filelock.Lock(path)
	}
	if err != nil {
		return fmt.Errorf("locking workspace: %w", err)
	}
	defer func() { _ = unlock() }()
	return fn()
}

// withApp opens the app, runs fn and closes it again.
func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Warn("closing store", "err", cerr)
		}
	}()
	return fn(ctx, a)
}
