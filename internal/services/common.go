package services

import (
	"errors"
	"fmt"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrDeliverableNotFound = response.NewNotFound("deliverable not found")
	ErrProjectNotFound     = response.NewNotFound("project not found")
	ErrTeamNotFound        = response.NewNotFound("team not found")
	ErrUserNotFound        = response.NewNotFound("user not found")
	ErrNotProjectOwner     = response.NewForbidden("only the professor who owns this project can do that")
	ErrNotTeamMember       = response.NewForbidden("you are not a member of this team")
)

// notFound maps gorm.ErrRecordNotFound to appErr and wraps anything else.
func notFound(err error, appErr *response.AppError, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return appErr
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// loadDeliverable fetches a deliverable with its team and the team's project.
func loadDeliverable(db *gorm.DB, id uint) (*models.Deliverable, error) {
	var d models.Deliverable
	if err := db.Preload("Team.Project").First(&d, id).Error; err != nil {
		return nil, notFound(err, ErrDeliverableNotFound, "deliverable")
	}
	if d.Team == nil || d.Team.Project == nil {
		return nil, fmt.Errorf("deliverable %d: owning team or project is missing", d.ID)
	}
	return &d, nil
}

func loadProject(db *gorm.DB, id uint) (*models.Project, error) {
	var p models.Project
	if err := db.First(&p, id).Error; err != nil {
		return nil, notFound(err, ErrProjectNotFound, "project")
	}
	return &p, nil
}

func loadTeam(db *gorm.DB, id uint) (*models.Team, error) {
	var t models.Team
	if err := db.Preload("Project").First(&t, id).Error; err != nil {
		return nil, notFound(err, ErrTeamNotFound, "team")
	}
	return &t, nil
}

// requireOwner passes when professorID owns project. Zero is the operator
// (CLI) and always passes.
func requireOwner(project *models.Project, professorID uint) error {
	if professorID != 0 && project.ProfessorID != professorID {
		return ErrNotProjectOwner
	}
	return nil
}

func isTeamMember(db *gorm.DB, teamID, userID uint) (bool, error) {
	var count int64
	if err := db.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func teamMemberIDs(db *gorm.DB, teamID uint) ([]uint, error) {
	var ids []uint
	err := db.Model(&models.TeamMember{}).Where("team_id = ?", teamID).Pluck("user_id", &ids).Error
	return ids, err
}

// UserSummary is the public view of a user shown to other users.
type UserSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func summarize(u *models.User) UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}
