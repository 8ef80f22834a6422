// Package server exposes the workflow engine as an HTTP JSON API.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/board"
	"github.com/twiced-technology-gmbh/trackflow/internal/output"
	"github.com/twiced-technology-gmbh/trackflow/internal/permission"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

// ActorHeader names the request header carrying the acting user.
const ActorHeader = "X-Trackflow-Actor"

// BoardLister lists the configured boards.
type BoardLister interface {
	All() []*board.Board
}

// Server provides HTTP handlers over a workflow engine.
type Server struct {
	router       *gin.Engine
	engine       *workflow.Engine
	boards       BoardLister
	logger       *slog.Logger
	defaultActor string
}

// Option configures a Server.
type Option func(*Server)

// WithDefaultActor sets the actor used when a request has no ActorHeader.
func WithDefaultActor(id string) Option {
	return func(s *Server) { s.defaultActor = id }
}

// New constructs the HTTP server with routes and middleware configured.
func New(engine *workflow.Engine, boards BoardLister, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	srv := &Server{
		router: router,
		engine: engine,
		boards: boards,
		logger: logger,
	}
	for _, opt := range opts {
		opt(srv)
	}
	router.Use(srv.requestLogger())

	srv.registerRoutes()
	return srv
}

// Handler exposes the underlying Gin engine.
func (s *Server) Handler() http.Handler {
	return s.router
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		projects := api.Group("/projects")
		{
			projects.GET("", s.handleListProjects)
			projects.POST("", s.handleCreateProject)
			projects.GET(":project", s.handleGetProject)
			projects.GET(":project/issues", s.handleListIssues)
			projects.POST(":project/issues", s.handleCreateIssue)
			projects.GET(":project/backlog", s.handleBacklog)
			projects.GET(":project/sprints", s.handleListSprints)
			projects.POST(":project/sprints", s.handleCreateSprint)
			projects.GET(":project/epics", s.handleListEpics)
			projects.POST(":project/epics", s.handleCreateEpic)
		}

		issues := api.Group("/issues")
		{
			issues.GET(":issue", s.handleGetIssue)
			issues.PATCH(":issue", s.handleUpdateIssue)
			issues.DELETE(":issue", s.handleDeleteIssue)
			issues.POST(":issue/move", s.handleMoveIssue)
			issues.PUT(":issue/epic", s.handleAttachEpic)
			issues.DELETE(":issue/epic", s.handleDetachEpic)
			issues.DELETE(":issue/sprint", s.handleRemoveFromSprint)
		}

		sprints := api.Group("/sprints")
		{
			sprints.GET(":sprint", s.handleSprintReport)
			sprints.POST(":sprint/plan", s.handlePlanSprint)
			sprints.POST(":sprint/start", s.handleStartSprint)
			sprints.POST(":sprint/complete", s.handleCompleteSprint)
		}

		api.GET("/epics/:epic", s.handleEpicProgress)

		api.GET("/boards", s.handleListBoards)
		api.GET("/boards/:board", s.handleBoardView)
	}
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListBoards(c *gin.Context) {
	boards := []*board.Board{}
	if s.boards != nil {
		boards = append(boards, s.boards.All()...)
	}
	respondSuccess(c, http.StatusOK, gin.H{"boards": boards})
}

func (s *Server) handleBoardView(c *gin.Context) {
	view, err := s.engine.BoardView(c.Request.Context(), c.Param("board"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, view)
}

// actor identifies the caller from ActorHeader.
func (s *Server) actor(c *gin.Context) permission.Actor {
	if id := strings.TrimSpace(c.GetHeader(ActorHeader)); id != "" {
		return permission.Actor{ID: id}
	}
	return permission.Actor{ID: s.defaultActor}
}

// bindJSON decodes the request body, reporting malformed input as INVALID_INPUT.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.respondError(c, apierr.Newf(apierr.InvalidInput, "invalid request body: %v", err))
		return false
	}
	return true
}

// respondError logs the error and returns the structured error envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	var e *apierr.Error
	if !errors.As(err, &e) {
		e = &apierr.Error{Code: apierr.InternalError, Message: err.Error(), Err: err}
	}
	status := e.HTTPStatus()
	attrs := []any{
		slog.String("method", c.Request.Method),
		slog.String("path", c.FullPath()),
		slog.Int("status", status),
		slog.String("code", e.Code),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Warn("request rejected", attrs...)
	}
	c.JSON(status, output.NewErrorResponse(e))
}

// respondSuccess writes payload as JSON, or only the status for a nil payload.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}

// requestLogger logs every request at debug level.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("actor", s.actor(c).ID),
		)
	}
}
