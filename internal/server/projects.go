package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/twiced-technology-gmbh/trackflow/internal/date"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

type projectRequest struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type sprintRequest struct {
	Name      string    `json:"name"`
	Goal      string    `json:"goal"`
	StartDate date.Date `json:"start_date"`
	EndDate   date.Date `json:"end_date"`
}

type epicRequest struct {
	Summary  string `json:"summary"`
	Priority string `json:"priority"`
}

type planRequest struct {
	Issues []string `json:"issues"`
}

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.engine.ListProjects(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"projects": projects})
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var req projectRequest
	if !s.bindJSON(c, &req) {
		return
	}
	p, err := s.engine.CreateProject(c.Request.Context(), s.actor(c), req.Key, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"project": p})
}

func (s *Server) handleGetProject(c *gin.Context) {
	p, err := s.engine.GetProject(c.Request.Context(), c.Param("project"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": p})
}

func (s *Server) handleListSprints(c *gin.Context) {
	sprints, err := s.engine.ListSprints(c.Request.Context(), c.Param("project"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprints": sprints})
}

func (s *Server) handleCreateSprint(c *gin.Context) {
	var req sprintRequest
	if !s.bindJSON(c, &req) {
		return
	}
	sp, err := s.engine.CreateSprint(c.Request.Context(), s.actor(c), workflow.SprintInput{
		ProjectID: c.Param("project"),
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"sprint": sp})
}

// handleSprintReport returns a sprint with its members and statistics.
func (s *Server) handleSprintReport(c *gin.Context) {
	report, err := s.engine.SprintReport(c.Request.Context(), c.Param("sprint"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, report)
}

func (s *Server) handlePlanSprint(c *gin.Context) {
	var req planRequest
	if !s.bindJSON(c, &req) {
		return
	}
	res, err := s.engine.PlanSprint(c.Request.Context(), s.actor(c), c.Param("sprint"), req.Issues)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, res)
}

func (s *Server) handleStartSprint(c *gin.Context) {
	sp, err := s.engine.StartSprint(c.Request.Context(), s.actor(c), c.Param("sprint"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprint": sp})
}

func (s *Server) handleCompleteSprint(c *gin.Context) {
	sp, err := s.engine.CompleteSprint(c.Request.Context(), s.actor(c), c.Param("sprint"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprint": sp})
}

func (s *Server) handleListEpics(c *gin.Context) {
	epics, err := s.engine.ListEpics(c.Request.Context(), c.Param("project"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"epics": epics})
}

func (s *Server) handleCreateEpic(c *gin.Context) {
	var req epicRequest
	if !s.bindJSON(c, &req) {
		return
	}
	in := workflow.EpicInput{ProjectID: c.Param("project"), Summary: req.Summary}
	if req.Priority != "" {
		p, err := issue.ParsePriority(req.Priority)
		if err != nil {
			s.respondError(c, err)
			return
		}
		in.Priority = p
	}
	ep, err := s.engine.CreateEpic(c.Request.Context(), s.actor(c), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"epic": ep})
}

// handleEpicProgress returns an epic with its linked issues and progress.
func (s *Server) handleEpicProgress(c *gin.Context) {
	p, err := s.engine.ComputeEpicProgress(c.Request.Context(), c.Param("epic"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, p)
}
