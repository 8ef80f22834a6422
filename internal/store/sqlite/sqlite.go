// Package sqlite implements store.Store on a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/store"
)

var _ store.Store = (*Store)(nil)

const beginMaxElapsed = 5 * time.Second

// Store wraps a SQLite database. Reads and single writes go through the
// pool; transactions pin a dedicated connection.
type Store struct {
	queries
	db     *sql.DB
	logger *slog.Logger
}

// Open initializes the database at dbPath and runs the schema migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, apierr.New(apierr.InvalidInput, "empty database path")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, apierr.Wrap(err, "create database directory")
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, apierr.Wrap(err, "open sqlite")
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{queries: queries{q: db}, db: db, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("sqlite store opened", "path", dbPath)
	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            next_seq INTEGER NOT NULL DEFAULT 1,
            created_at TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS sprints (
            id TEXT PRIMARY KEY,
            project_id TEXT NOT NULL,
            name TEXT NOT NULL,
            goal TEXT NOT NULL DEFAULT '',
            start_date TEXT,
            end_date TEXT,
            status TEXT NOT NULL DEFAULT 'planned',
            started_at TEXT,
            completed_at TEXT,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL,
            FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS epics (
            id TEXT PRIMARY KEY,
            project_id TEXT NOT NULL,
            summary TEXT NOT NULL,
            priority TEXT NOT NULL DEFAULT 'medium',
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL,
            FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS issues (
            id TEXT PRIMARY KEY,
            key TEXT NOT NULL UNIQUE,
            project_id TEXT NOT NULL,
            type TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'todo',
            priority TEXT NOT NULL DEFAULT 'medium',
            summary TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            sprint_id TEXT,
            epic_id TEXT,
            story_points INTEGER,
            assignee_id TEXT NOT NULL DEFAULT '',
            reporter_id TEXT NOT NULL DEFAULT '',
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL,
            started_at TEXT,
            completed_at TEXT,
            FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_issues_project ON issues(project_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_issues_sprint ON issues(sprint_id);`,
		`CREATE INDEX IF NOT EXISTS idx_issues_epic ON issues(epic_id);`,
		`CREATE INDEX IF NOT EXISTS idx_sprints_project ON sprints(project_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_epics_project ON epics(project_id);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return apierr.Wrap(err, "migration failed")
		}
	}
	return nil
}

// RunInTransaction executes fn on a dedicated connection inside a
// BEGIN IMMEDIATE transaction. The write lock is taken up front so two
// writers never deadlock upgrading from a read lock. If fn returns an error
// or panics the transaction is rolled back.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return apierr.Wrap(err, "acquire connection for transaction")
	}
	defer func() { _ = conn.Close() }()

	if err := s.beginImmediate(ctx, conn); err != nil {
		return apierr.Wrap(err, "begin transaction")
	}

	committed := false
	defer func() {
		if !committed {
			// Background context so the rollback runs even if ctx is cancelled.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(&queries{q: conn}); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return apierr.Wrap(err, "commit transaction")
	}
	committed = true
	return nil
}

func newBeginBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxElapsedTime = beginMaxElapsed
	return bo
}

func (s *Store) beginImmediate(ctx context.Context, conn *sql.Conn) error {
	return backoff.Retry(func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if isBusy(err) {
			s.logger.Debug("sqlite busy, retrying begin", "err", err)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(newBeginBackoff(), ctx))
}

// isBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED.
func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}
