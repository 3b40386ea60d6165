package handlers

import (
	"github.com/econify/econify/internal/middleware"
	"github.com/econify/econify/internal/services"
	"github.com/econify/econify/pkg/response"
	"github.com/gin-gonic/gin"
)

type TeamHandler struct {
	teamService *services.TeamService
}

func NewTeamHandler(teamService *services.TeamService) *TeamHandler {
	return &TeamHandler{teamService: teamService}
}

// Create makes a team with the caller as its first member
// POST /api/teams
func (h *TeamHandler) Create(c *gin.Context) {
	var req services.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	team, err := h.teamService.Create(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, team)
}

// Join adds the caller to a team
// POST /api/teams/join
func (h *TeamHandler) Join(c *gin.Context) {
	var req services.JoinTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	team, err := h.teamService.Join(middleware.GetUserID(c), req.TeamID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "joined team successfully", "team": team})
}

// Leave removes the caller from their team in a project
// POST /api/teams/leave
func (h *TeamHandler) Leave(c *gin.Context) {
	var req services.LeaveTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.teamService.Leave(middleware.GetUserID(c), req.ProjectID); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "left team successfully")
}

// RemoveUser takes a student off a team
// POST /api/teams/remove-user
func (h *TeamHandler) RemoveUser(c *gin.Context) {
	var req services.RemoveMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.teamService.RemoveUser(middleware.GetUserID(c), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "user removed from team")
}

// ListByProject returns the teams of a project with their members
// GET /api/teams/project/:projectId
func (h *TeamHandler) ListByProject(c *gin.Context) {
	projectID, ok := paramID(c, "projectId", "project")
	if !ok {
		return
	}

	teams, err := h.teamService.ListByProject(projectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, teams)
}

// Members lists a team's members
// GET /api/teams/:id/members
func (h *TeamHandler) Members(c *gin.Context) {
	id, ok := paramID(c, "id", "team")
	if !ok {
		return
	}

	members, err := h.teamService.Members(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, members)
}

// Delete removes a team
// DELETE /api/teams/:id
func (h *TeamHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "team")
	if !ok {
		return
	}

	if err := h.teamService.Delete(middleware.GetUserID(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "team deleted successfully")
}
