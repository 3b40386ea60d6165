package services

import (
	"strings"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/pkg/response"
	"gorm.io/gorm"
)

type ProjectService struct {
	db *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

type CreateProjectRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description"`
}

type UpdateProjectRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
}

// ProjectView is a project with its professor's name, as listed on dashboards.
type ProjectView struct {
	models.Project
	ProfessorName string `json:"professorName"`
	TeamCount     int64  `json:"teamCount"`
}

func (s *ProjectService) Create(req *CreateProjectRequest, professorID uint) (*models.Project, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, response.NewBadRequest("title is required")
	}
	project := &models.Project{
		Title:       title,
		Description: req.Description,
		ProfessorID: professorID,
	}
	if err := s.db.Create(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) list(scope func(*gorm.DB) *gorm.DB) ([]ProjectView, error) {
	var views []ProjectView
	query := s.db.Model(&models.Project{}).
		Select("projects.*, users.name AS professor_name, " +
			"(SELECT COUNT(*) FROM teams WHERE teams.project_id = projects.id) AS team_count").
		Joins("LEFT JOIN users ON users.id = projects.professor_id")
	if scope != nil {
		query = scope(query)
	}
	if err := query.Order("projects.created_at DESC, projects.id DESC").Scan(&views).Error; err != nil {
		return nil, err
	}
	return views, nil
}

// List returns every project for the student dashboard.
func (s *ProjectService) List() ([]ProjectView, error) {
	return s.list(nil)
}

// ListByProfessor returns the projects a professor owns.
func (s *ProjectService) ListByProfessor(professorID uint) ([]ProjectView, error) {
	return s.list(func(q *gorm.DB) *gorm.DB {
		return q.Where("projects.professor_id = ?", professorID)
	})
}

func (s *ProjectService) GetByID(id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.Preload("Professor").Preload("Teams.Members.User").First(&project, id).Error; err != nil {
		return nil, notFound(err, ErrProjectNotFound, "project")
	}
	return &project, nil
}

// Update changes title and description. The owner cannot be reassigned.
func (s *ProjectService) Update(id, professorID uint, req *UpdateProjectRequest) (*models.Project, error) {
	project, err := loadProject(s.db, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(project, professorID); err != nil {
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
	if len(updates) > 0 {
		if err := s.db.Model(project).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return loadProject(s.db, id)
}

// Delete removes the project with its teams, deliverables, juries and grades.
func (s *ProjectService) Delete(id, professorID uint) error {
	project, err := loadProject(s.db, id)
	if err != nil {
		return err
	}
	if err := requireOwner(project, professorID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var teamIDs []uint
		if err := tx.Model(&models.Team{}).Where("project_id = ?", id).Pluck("id", &teamIDs).Error; err != nil {
			return err
		}
		for _, teamID := range teamIDs {
			if err := deleteTeamTx(tx, teamID); err != nil {
				return err
			}
		}
		return tx.Delete(&models.Project{}, id).Error
	})
}

// deleteTeamTx removes a team and everything hanging off it, children first.
func deleteTeamTx(tx *gorm.DB, teamID uint) error {
	deliverables := func() *gorm.DB {
		return tx.Model(&models.Deliverable{}).Select("id").Where("team_id = ?", teamID)
	}
	if err := tx.Where("deliverable_id IN (?)", deliverables()).Delete(&models.Grade{}).Error; err != nil {
		return err
	}
	if err := tx.Where("deliverable_id IN (?)", deliverables()).Delete(&models.DeliverableJury{}).Error; err != nil {
		return err
	}
	if err := tx.Where("team_id = ?", teamID).Delete(&models.Deliverable{}).Error; err != nil {
		return err
	}
	if err := tx.Where("team_id = ?", teamID).Delete(&models.TeamMember{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Team{}, teamID).Error
}
