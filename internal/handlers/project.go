package handlers

import (
	"fmt"

	"github.com/econify/econify/internal/middleware"
	"github.com/econify/econify/internal/services"
	"github.com/econify/econify/pkg/response"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ProjectHandler struct {
	projectService *services.ProjectService
	statsService   *services.StatsService
	exportService  *services.ExportService
}

func NewProjectHandler(projects *services.ProjectService, stats *services.StatsService, export *services.ExportService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projects,
		statsService:   stats,
		exportService:  export,
	}
}

// List returns every project
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projectService.List()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, projects)
}

// Mine returns the caller's projects
// GET /api/projects/mine
func (h *ProjectHandler) Mine(c *gin.Context) {
	projects, err := h.projectService.ListByProfessor(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, projects)
}

// GetByID returns a project by ID
// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id", "project")
	if !ok {
		return
	}

	project, err := h.projectService.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

// Create creates a new project owned by the caller
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	project, err := h.projectService.Create(&req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// Update updates a project
// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id", "project")
	if !ok {
		return
	}

	var req services.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	project, err := h.projectService.Update(id, middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

// Delete deletes a project
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "project")
	if !ok {
		return
	}

	if err := h.projectService.Delete(id, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "project deleted successfully")
}

// Stats summarises grading progress per team
// GET /api/projects/:id/stats
func (h *ProjectHandler) Stats(c *gin.Context) {
	id, ok := paramID(c, "id", "project")
	if !ok {
		return
	}

	stats, err := h.statsService.ProjectStats(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// Gradebook downloads the project's grades as a spreadsheet
// GET /api/projects/:id/gradebook.xlsx
func (h *ProjectHandler) Gradebook(c *gin.Context) {
	id, ok := paramID(c, "id", "project")
	if !ok {
		return
	}

	data, filename, err := h.exportService.Gradebook(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(200, xlsxContentType, data)
}
