package services

import (
	"strings"
	"time"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/pkg/response"
	"gorm.io/gorm"
)

var ErrDeadlinePassed = response.NewForbidden("editing deadline has passed")

const dateOnlyLayout = "2006-01-02"

type DeliverableService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

// NewDeliverableService creates the service. Date-only due dates are read in loc.
func NewDeliverableService(db *gorm.DB, loc *time.Location) *DeliverableService {
	if loc == nil {
		loc = time.UTC
	}
	return &DeliverableService{db: db, loc: loc, now: time.Now}
}

type CreateDeliverableRequest struct {
	Title             string `json:"title" binding:"required,max=200"`
	Description       string `json:"description"`
	DueDate           string `json:"dueDate" binding:"required"`
	SubmissionLink    string `json:"submissionLink" binding:"omitempty,url,max=500"`
	TeamID            uint   `json:"teamId" binding:"required"`
	IsLastDeliverable bool   `json:"isLastDeliverable"`
}

type UpdateDeliverableRequest struct {
	Title             *string `json:"title" binding:"omitempty,min=1,max=200"`
	Description       *string `json:"description"`
	DueDate           *string `json:"dueDate"`
	SubmissionLink    *string `json:"submissionLink" binding:"omitempty,url,max=500"`
	IsLastDeliverable *bool   `json:"isLastDeliverable"`
}

// ParseDueDate accepts RFC 3339 or YYYY-MM-DD. A bare date means the end of
// that day in loc. The result is always UTC.
func ParseDueDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	d, err := time.ParseInLocation(dateOnlyLayout, value, loc)
	if err != nil {
		return time.Time{}, response.NewBadRequest("dueDate must be RFC 3339 or YYYY-MM-DD")
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, loc).UTC(), nil
}

// clearLastDeliverable unmarks every other deliverable of the team. Callers
// run it in the same transaction that marks the new one.
func clearLastDeliverable(tx *gorm.DB, teamID, exceptID uint) error {
	return tx.Model(&models.Deliverable{}).
		Where("team_id = ? AND id <> ? AND last_deliverable = ?", teamID, exceptID, true).
		Update("last_deliverable", false).Error
}

func (s *DeliverableService) requireMember(teamID, userID uint) error {
	ok, err := isTeamMember(s.db, teamID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotTeamMember
	}
	return nil
}

// Create adds a deliverable for a team the caller belongs to. When it is
// flagged as the last one, the flag moves to it atomically.
func (s *DeliverableService) Create(userID uint, req *CreateDeliverableRequest) (*models.Deliverable, error) {
	if _, err := loadTeam(s.db, req.TeamID); err != nil {
		return nil, err
	}
	if err := s.requireMember(req.TeamID, userID); err != nil {
		return nil, err
	}

	due, err := ParseDueDate(req.DueDate, s.loc)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, response.NewBadRequest("title is required")
	}

	d := &models.Deliverable{
		Title:           title,
		Description:     req.Description,
		DueDate:         due,
		SubmissionLink:  req.SubmissionLink,
		LastDeliverable: req.IsLastDeliverable,
		TeamID:          req.TeamID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(d).Error; err != nil {
			return err
		}
		if d.LastDeliverable {
			return clearLastDeliverable(tx, d.TeamID, d.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// checkMutable applies the membership check and the deadline gate shared by
// Update and Delete.
func (s *DeliverableService) checkMutable(id, userID uint) (*models.Deliverable, error) {
	d, err := loadDeliverable(s.db, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(d.TeamID, userID); err != nil {
		return nil, err
	}
	if d.DeadlinePassed(s.now()) {
		return nil, ErrDeadlinePassed
	}
	return d, nil
}

func (s *DeliverableService) Update(id, userID uint, req *UpdateDeliverableRequest) (*models.Deliverable, error) {
	d, err := s.checkMutable(id, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, response.NewBadRequest("title cannot be empty")
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.SubmissionLink != nil {
		updates["submission_link"] = *req.SubmissionLink
	}
	if req.DueDate != nil {
		due, err := ParseDueDate(*req.DueDate, s.loc)
		if err != nil {
			return nil, err
		}
		updates["due_date"] = due
	}
	if req.IsLastDeliverable != nil {
		updates["last_deliverable"] = *req.IsLastDeliverable
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Deliverable{}).Where("id = ?", d.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.IsLastDeliverable != nil && *req.IsLastDeliverable {
			return clearLastDeliverable(tx, d.TeamID, d.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var updated models.Deliverable
	if err := s.db.First(&updated, d.ID).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a deliverable with its jury and grades.
func (s *DeliverableService) Delete(id, userID uint) error {
	d, err := s.checkMutable(id, userID)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("deliverable_id = ?", d.ID).Delete(&models.Grade{}).Error; err != nil {
			return err
		}
		if err := tx.Where("deliverable_id = ?", d.ID).Delete(&models.DeliverableJury{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Deliverable{}, d.ID).Error
	})
}

type TeamDeliverables struct {
	Deliverables      []models.Deliverable `json:"deliverables"`
	LastDeliverableID *uint                `json:"lastDeliverableId"`
}

// ListByTeam returns a team's deliverables ordered by due date.
func (s *DeliverableService) ListByTeam(teamID uint) (*TeamDeliverables, error) {
	if _, err := loadTeam(s.db, teamID); err != nil {
		return nil, err
	}

	out := &TeamDeliverables{Deliverables: []models.Deliverable{}}
	if err := s.db.Where("team_id = ?", teamID).Order("due_date, id").Find(&out.Deliverables).Error; err != nil {
		return nil, err
	}
	for i := range out.Deliverables {
		if out.Deliverables[i].LastDeliverable {
			id := out.Deliverables[i].ID
			out.LastDeliverableID = &id
		}
	}
	return out, nil
}

type ProfessorTeamDeliverables struct {
	ProjectID    uint                 `json:"projectId"`
	ProjectTitle string               `json:"projectTitle"`
	TeamID       uint                 `json:"teamId"`
	TeamName     string               `json:"teamName"`
	Deliverables []models.Deliverable `json:"deliverables"`
}

// ListForProfessor groups deliverables by team across the professor's projects.
func (s *DeliverableService) ListForProfessor(professorID uint) ([]ProfessorTeamDeliverables, error) {
	var teams []models.Team
	if err := s.db.Preload("Project").
		Joins("JOIN projects ON projects.id = teams.project_id").
		Where("projects.professor_id = ?", professorID).
		Order("teams.project_id, teams.name").
		Find(&teams).Error; err != nil {
		return nil, err
	}

	out := make([]ProfessorTeamDeliverables, 0, len(teams))
	for _, t := range teams {
		group := ProfessorTeamDeliverables{
			ProjectID:    t.ProjectID,
			TeamID:       t.ID,
			TeamName:     t.Name,
			Deliverables: []models.Deliverable{},
		}
		if t.Project != nil {
			group.ProjectTitle = t.Project.Title
		}
		if err := s.db.Where("team_id = ?", t.ID).Order("due_date, id").Find(&group.Deliverables).Error; err != nil {
			return nil, err
		}
		out = append(out, group)
	}
	return out, nil
}

// Members lists the owning team of a deliverable.
func (s *DeliverableService) Members(id uint) ([]UserSummary, error) {
	d, err := loadDeliverable(s.db, id)
	if err != nil {
		return nil, err
	}
	return listTeamMembers(s.db, d.TeamID)
}

// AssignedDeliverable is a deliverable as seen by one of its jurors. The
// owning team is deliberately not named.
type AssignedDeliverable struct {
	ID             uint      `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	DueDate        time.Time `json:"dueDate"`
	SubmissionLink string    `json:"submissionLink"`
	Released       bool      `json:"released"`
	AssignedAt     time.Time `json:"assignedAt"`
	MyGrade        *float64  `json:"myGrade"`
	MyFeedback     string    `json:"myFeedback"`
}

// Assigned lists the deliverables userID judges, with the caller's own grade.
func (s *DeliverableService) Assigned(userID uint) ([]AssignedDeliverable, error) {
	out := []AssignedDeliverable{}
	err := s.db.Table("deliverable_juries").
		Select("deliverables.id, deliverables.title, deliverables.description, deliverables.due_date, "+
			"deliverables.submission_link, deliverables.released, deliverable_juries.assigned_at, "+
			"grades.grade AS my_grade, COALESCE(grades.feedback, '') AS my_feedback").
		Joins("JOIN deliverables ON deliverables.id = deliverable_juries.deliverable_id").
		Joins("LEFT JOIN grades ON grades.deliverable_id = deliverable_juries.deliverable_id AND grades.user_id = deliverable_juries.user_id").
		Where("deliverable_juries.user_id = ?", userID).
		Order("deliverables.due_date, deliverables.id").
		Scan(&out).Error
	return out, err
}

// JuryAssigned reports whether a jury has been drawn for the deliverable.
func (s *DeliverableService) JuryAssigned(id uint) (bool, error) {
	var d models.Deliverable
	if err := s.db.Select("id", "is_assigned").First(&d, id).Error; err != nil {
		return false, notFound(err, ErrDeliverableNotFound, "deliverable")
	}
	return d.IsAssigned, nil
}
