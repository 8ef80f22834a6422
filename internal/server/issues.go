package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
	"github.com/twiced-technology-gmbh/trackflow/internal/workflow"
)

type createIssueRequest struct {
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	StoryPoints *int   `json:"story_points"`
	Assignee    string `json:"assignee"`
	SprintID    string `json:"sprint_id"`
	EpicID      string `json:"epic_id"`
}

type updateIssueRequest struct {
	Summary          *string `json:"summary"`
	Description      *string `json:"description"`
	Type             *string `json:"type"`
	Priority         *string `json:"priority"`
	Assignee         *string `json:"assignee"`
	StoryPoints      *int    `json:"story_points"`
	ClearStoryPoints bool    `json:"clear_story_points"`
}

type moveRequest struct {
	Status string `json:"status"`
	Board  string `json:"board"`
}

type attachRequest struct {
	EpicID string `json:"epic_id"`
}

// handleListIssues lists a project's issues with optional filters.
func (s *Server) handleListIssues(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	issues, err := s.engine.ListIssues(c.Request.Context(), c.Param("project"), opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"issues": issues})
}

// handleBacklog lists the issues no open sprint claims.
func (s *Server) handleBacklog(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	issues, err := s.engine.ComputeBacklog(c.Request.Context(), c.Param("project"), opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"issues": issues})
}

// handleCreateIssue creates an issue in a project.
func (s *Server) handleCreateIssue(c *gin.Context) {
	var req createIssueRequest
	if !s.bindJSON(c, &req) {
		return
	}
	in := workflow.IssueInput{
		ProjectID:   c.Param("project"),
		Summary:     req.Summary,
		Description: req.Description,
		StoryPoints: req.StoryPoints,
		AssigneeID:  req.Assignee,
		SprintID:    req.SprintID,
		EpicID:      req.EpicID,
	}
	if req.Type != "" {
		t, err := issue.ParseType(req.Type)
		if err != nil {
			s.respondError(c, err)
			return
		}
		in.Type = t
	}
	if req.Priority != "" {
		p, err := issue.ParsePriority(req.Priority)
		if err != nil {
			s.respondError(c, err)
			return
		}
		in.Priority = p
	}

	it, err := s.engine.CreateIssue(c.Request.Context(), s.actor(c), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"issue": it})
}

func (s *Server) handleGetIssue(c *gin.Context) {
	it, err := s.engine.GetIssue(c.Request.Context(), c.Param("issue"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"issue": it})
}

// handleUpdateIssue edits descriptive issue fields.
func (s *Server) handleUpdateIssue(c *gin.Context) {
	var req updateIssueRequest
	if !s.bindJSON(c, &req) {
		return
	}
	patch := workflow.IssuePatch{
		Summary:          req.Summary,
		Description:      req.Description,
		AssigneeID:       req.Assignee,
		StoryPoints:      req.StoryPoints,
		ClearStoryPoints: req.ClearStoryPoints,
	}
	if req.Type != nil {
		t, err := issue.ParseType(*req.Type)
		if err != nil {
			s.respondError(c, err)
			return
		}
		patch.Type = &t
	}
	if req.Priority != nil {
		p, err := issue.ParsePriority(*req.Priority)
		if err != nil {
			s.respondError(c, err)
			return
		}
		patch.Priority = &p
	}

	it, err := s.engine.UpdateIssue(c.Request.Context(), s.actor(c), c.Param("issue"), patch)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"issue": it})
}

func (s *Server) handleDeleteIssue(c *gin.Context) {
	it, err := s.engine.DeleteIssue(c.Request.Context(), s.actor(c), c.Param("issue"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"issue": it, "status": "deleted"})
}

// handleMoveIssue moves an issue to a status on a board.
func (s *Server) handleMoveIssue(c *gin.Context) {
	var req moveRequest
	if !s.bindJSON(c, &req) {
		return
	}
	dest, err := issue.ParseStatus(req.Status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	res, err := s.engine.MoveIssue(c.Request.Context(), s.actor(c), c.Param("issue"), dest, req.Board)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, res)
}

func (s *Server) handleAttachEpic(c *gin.Context) {
	var req attachRequest
	if !s.bindJSON(c, &req) {
		return
	}
	it, err := s.engine.AttachToEpic(c.Request.Context(), s.actor(c), c.Param("issue"), req.EpicID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"issue": it})
}

func (s *Server) handleDetachEpic(c *gin.Context) {
	it, err := s.engine.DetachFromEpic(c.Request.Context(), s.actor(c), c.Param("issue"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"issue": it})
}

func (s *Server) handleRemoveFromSprint(c *gin.Context) {
	it, err := s.engine.RemoveFromSprint(c.Request.Context(), s.actor(c), c.Param("issue"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"issue": it})
}

// listOptions reads filter, sort and limit query parameters. List values
// are comma-separated.
func listOptions(c *gin.Context) (workflow.ListOptions, error) {
	var opts workflow.ListOptions
	f := &opts.Filter
	for _, v := range splitList(c.Query("status")) {
		st, err := issue.ParseStatus(v)
		if err != nil {
			return opts, err
		}
		f.Statuses = append(f.Statuses, st)
	}
	for _, v := range splitList(c.Query("type")) {
		t, err := issue.ParseType(v)
		if err != nil {
			return opts, err
		}
		f.Types = append(f.Types, t)
	}
	for _, v := range splitList(c.Query("priority")) {
		p, err := issue.ParsePriority(v)
		if err != nil {
			return opts, err
		}
		f.Priorities = append(f.Priorities, p)
	}
	f.Assignee = c.Query("assignee")
	f.Unassigned = c.Query("unassigned") == "true"
	f.EpicID = c.Query("epic")
	f.SprintID = c.Query("sprint")
	f.Search = c.Query("q")

	opts.SortBy = c.Query("sort")
	opts.Reverse = c.Query("reverse") == "true"
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, apierr.Newf(apierr.InvalidInput, "invalid limit %q", raw).
				WithDetails(map[string]any{"field": "limit", "input": raw})
		}
		opts.Limit = n
	}
	return opts, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
