package handlers

import (
	"net/http"

	"github.com/econify/econify/internal/middleware"
	"github.com/econify/econify/internal/services"
	"github.com/econify/econify/pkg/response"
	"github.com/gin-gonic/gin"
)

// DeliverableHandler serves deliverables together with their jury and grades.
type DeliverableHandler struct {
	deliverableService *services.DeliverableService
	juryService        *services.JuryService
	gradeService       *services.GradeService
}

func NewDeliverableHandler(deliverables *services.DeliverableService, jury *services.JuryService, grades *services.GradeService) *DeliverableHandler {
	return &DeliverableHandler{
		deliverableService: deliverables,
		juryService:        jury,
		gradeService:       grades,
	}
}

// Create adds a deliverable to the caller's team
// POST /api/deliverables
func (h *DeliverableHandler) Create(c *gin.Context) {
	var req services.CreateDeliverableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	d, err := h.deliverableService.Create(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, d)
}

// Update edits a deliverable before its due date
// PUT /api/deliverables/:id
func (h *DeliverableHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id", "deliverable")
	if !ok {
		return
	}

	var req services.UpdateDeliverableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	d, err := h.deliverableService.Update(id, middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, d)
}

// Delete removes a deliverable before its due date
// DELETE /api/deliverables/:id
func (h *DeliverableHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "deliverable")
	if !ok {
		return
	}

	if err := h.deliverableService.Delete(id, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "deliverable deleted successfully")
}

// ListByTeam returns a team's deliverables
// GET /api/deliverables/team/:teamId
func (h *DeliverableHandler) ListByTeam(c *gin.Context) {
	teamID, ok := paramID(c, "teamId", "team")
	if !ok {
		return
	}

	out, err := h.deliverableService.ListByTeam(teamID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, out)
}

// ListForProfessor groups the caller's deliverables by team
// GET /api/deliverables/professor
func (h *DeliverableHandler) ListForProfessor(c *gin.Context) {
	out, err := h.deliverableService.ListForProfessor(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, out)
}

// Members lists the owning team of a deliverable
// GET /api/deliverables/:id/members
func (h *DeliverableHandler) Members(c *gin.Context) {
	id, ok := paramID(c, "id", "deliverable")
	if !ok {
		return
	}

	members, err := h.deliverableService.Members(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, members)
}

// Assigned lists the deliverables the caller judges
// GET /api/deliverables/assigned
func (h *DeliverableHandler) Assigned(c *gin.Context) {
	out, err := h.deliverableService.Assigned(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, out)
}

// JuryAssigned GET /api/deliverables/:id/jury-assigned
func (h *DeliverableHandler) JuryAssigned(c *gin.Context) {
	id, ok := paramID(c, "id", "deliverable")
	if !ok {
		return
	}

	assigned, err := h.deliverableService.JuryAssigned(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"juryAssigned": assigned})
}

// AssignJury draws the jury for a deliverable
// POST /api/deliverables/assign-jury
func (h *DeliverableHandler) AssignJury(c *gin.Context) {
	var req services.AssignJuryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.juryService.AssignJury(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Jurors lists the jury of a deliverable
// GET /api/deliverables/:id/jury
func (h *DeliverableHandler) Jurors(c *gin.Context) {
	id, ok := paramID(c, "id", "deliverable")
	if !ok {
		return
	}

	jurors, err := h.juryService.Jurors(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, jurors)
}

// SubmitGrade records the caller's grade, answering 201 for a first
// submission and 200 for a revision
// POST /api/deliverables/grade
func (h *DeliverableHandler) SubmitGrade(c *gin.Context) {
	var req services.SubmitGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	created, err := h.gradeService.SubmitGrade(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		c.JSON(http.StatusCreated, response.MessageBody{Message: "grade submitted successfully"})
		return
	}
	response.Message(c, "grade updated successfully")
}

// ToggleRelease releases or hides a deliverable's grades
// PUT /api/deliverables/:id/release
func (h *DeliverableHandler) ToggleRelease(c *gin.Context) {
	id, ok := paramID(c, "id", "deliverable")
	if !ok {
		return
	}

	res, err := h.gradeService.ToggleRelease(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Aggregate returns the released mean grade
// GET /api/deliverables/:id/grades
func (h *DeliverableHandler) Aggregate(c *gin.Context) {
	id, ok := paramID(c, "id", "deliverable")
	if !ok {
		return
	}

	agg, err := h.gradeService.GetAggregate(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, agg)
}

// ProfessorGrades GET /api/deliverables/:id/grades/professor
func (h *DeliverableHandler) ProfessorGrades(c *gin.Context) {
	id, ok := paramID(c, "id", "deliverable")
	if !ok {
		return
	}

	view, err := h.gradeService.ProfessorGrades(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// StudentGrades GET /api/deliverables/:id/grades/student
func (h *DeliverableHandler) StudentGrades(c *gin.Context) {
	id, ok := paramID(c, "id", "deliverable")
	if !ok {
		return
	}

	view, err := h.gradeService.StudentGrades(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}
