// Package workflow is the single entry point for every issue, sprint and
// epic operation. It checks permissions, serializes mutations per project,
// runs them in one repository transaction and records what happened.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/twiced-technology-gmbh/trackflow/internal/activity"
	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/board"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/lockset"
	"github.com/twiced-technology-gmbh/trackflow/internal/permission"
	"github.com/twiced-technology-gmbh/trackflow/internal/sprint"
	"github.com/twiced-technology-gmbh/trackflow/internal/store"
)

// BoardSource resolves board configurations by ID.
type BoardSource interface {
	Board(id string) (*board.Board, error)
}

// Engine implements the workflow operations. It is safe for concurrent use.
type Engine struct {
	store  store.Store
	boards BoardSource
	gate   permission.Gate
	locks  *lockset.Set
	logger *slog.Logger
	rec    activity.Recorder
	now    func() time.Time
	newID  func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRecorder sets where successful mutations are recorded.
func WithRecorder(r activity.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.rec = r
		}
	}
}

// WithIDGenerator overrides the entity ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithLocks shares a lock set between engines over the same store.
func WithLocks(s *lockset.Set) Option {
	return func(e *Engine) {
		if s != nil {
			e.locks = s
		}
	}
}

// New returns an Engine. A nil gate allows everything.
func New(s store.Store, boards BoardSource, gate permission.Gate, opts ...Option) *Engine {
	if gate == nil {
		gate = permission.AllowAll{}
	}
	e := &Engine{
		store:  s,
		boards: boards,
		gate:   gate,
		locks:  lockset.New(),
		logger: slog.New(slog.DiscardHandler),
		rec:    activity.Nop{},
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// authorize fails with FORBIDDEN unless actor holds capability.
func (e *Engine) authorize(ctx context.Context, op string, actor permission.Actor, capability string) error {
	if e.gate.HasCapability(ctx, actor, capability) {
		return nil
	}
	err := apierr.Newf(apierr.Forbidden, "%s is not allowed to %s", actorName(actor), capability).
		WithDetails(map[string]any{"actor": actor.ID, "capability": capability})
	return e.rejected(op, actor, "", err)
}

func actorName(a permission.Actor) string {
	if a.ID == "" {
		return "anonymous actor"
	}
	return "actor " + a.ID
}

// mutate runs fn in one transaction while holding the project's lock.
func (e *Engine) mutate(ctx context.Context, projectID string, fn func(tx store.Tx) error) error {
	key := lockset.ProjectKey(projectID)
	unlock, ok := e.locks.TryLock(key)
	if !ok {
		e.logger.Debug("waiting for project lock", "project", projectID)
		var err error
		if unlock, err = e.locks.Lock(ctx, key); err != nil {
			return err
		}
	}
	defer unlock()
	return e.store.RunInTransaction(ctx, fn)
}

// recorded logs a committed mutation and appends it to the activity log.
func (e *Engine) recorded(ctx context.Context, op string, actor permission.Actor, projectID, entityID, detail string) {
	e.logger.Info("workflow mutation",
		"op", op, "actor", actor.ID, "project", projectID, "entity", entityID, "detail", detail)
	e.rec.Record(ctx, activity.Entry{
		Timestamp: e.now(),
		Action:    op,
		Actor:     actor.ID,
		ProjectID: projectID,
		EntityID:  entityID,
		Detail:    detail,
	})
}

// rejected logs a failed operation and returns err unchanged.
func (e *Engine) rejected(op string, actor permission.Actor, projectID string, err error) error {
	if err != nil {
		e.logger.Debug("workflow operation rejected",
			"op", op, "actor", actor.ID, "project", projectID, "code", apierr.CodeOf(err), "err", err)
	}
	return err
}

// loadIssue resolves ref as an issue ID, falling back to an issue key.
func loadIssue(ctx context.Context, r store.Reader, ref string) (*issue.Issue, error) {
	if ref == "" {
		return nil, apierr.New(apierr.InvalidInput, "issue is required").
			WithDetails(map[string]any{"field": "issue"})
	}
	it, err := r.GetIssue(ctx, ref)
	if err == nil || !apierr.Is(err, apierr.NotFound) {
		return it, err
	}
	return r.GetIssueByKey(ctx, ref)
}

// activeSprintID returns the ID of the project's active sprint, or "".
func activeSprintID(ctx context.Context, r store.Reader, projectID string) (string, error) {
	sprints, err := r.ListSprintsByProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	if s := sprint.ActiveOf(sprints); s != nil {
		return s.ID, nil
	}
	return "", nil
}

func requireProject(ctx context.Context, r store.Reader, projectID string) error {
	if projectID == "" {
		return apierr.New(apierr.InvalidInput, "project is required").
			WithDetails(map[string]any{"field": "project"})
	}
	_, err := r.GetProject(ctx, projectID)
	return err
}
