package services

import (
	"errors"
	"strings"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrAlreadyInTeam = response.NewBadRequest("you are already in a team for this project")
	ErrTeamNameTaken = response.NewConflict("a team with this name already exists in the project")
	ErrTeamFull      = response.NewBadRequest("team is full")
	ErrJurorOnTeam   = response.NewForbidden("you are a juror for a deliverable in this project and cannot join a team")
)

type TeamService struct {
	db          *gorm.DB
	maxTeamSize int
}

func NewTeamService(db *gorm.DB, maxTeamSize int) *TeamService {
	return &TeamService{db: db, maxTeamSize: maxTeamSize}
}

type CreateTeamRequest struct {
	Name      string `json:"name" binding:"required,max=100"`
	ProjectID uint   `json:"projectId" binding:"required"`
}

type JoinTeamRequest struct {
	TeamID uint `json:"teamId" binding:"required"`
}

type LeaveTeamRequest struct {
	ProjectID uint `json:"projectId" binding:"required"`
}

type RemoveMemberRequest struct {
	TeamID uint `json:"teamId" binding:"required"`
	UserID uint `json:"userId" binding:"required"`
}

func inProjectTeam(tx *gorm.DB, projectID, userID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.TeamMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	return count > 0, err
}

// Create makes a team and adds the creator as its first member.
func (s *TeamService) Create(userID uint, req *CreateTeamRequest) (*models.Team, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, response.NewBadRequest("team name is required")
	}
	if _, err := loadProject(s.db, req.ProjectID); err != nil {
		return nil, err
	}

	team := &models.Team{Name: name, ProjectID: req.ProjectID}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		member, err := inProjectTeam(tx, req.ProjectID, userID)
		if err != nil {
			return err
		}
		if member {
			return ErrAlreadyInTeam
		}

		var count int64
		if err := tx.Model(&models.Team{}).
			Where("project_id = ? AND name = ?", req.ProjectID, name).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrTeamNameTaken
		}

		if err := tx.Create(team).Error; err != nil {
			return err
		}
		return tx.Create(&models.TeamMember{TeamID: team.ID, ProjectID: team.ProjectID, UserID: userID}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, response.NewConflict("team name or membership already exists")
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

// Join adds a student to an existing team. Jurors of the project's
// deliverables cannot join, which keeps them from grading their own team.
func (s *TeamService) Join(userID, teamID uint) (*models.Team, error) {
	team, err := loadTeam(s.db, teamID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		member, err := inProjectTeam(tx, team.ProjectID, userID)
		if err != nil {
			return err
		}
		if member {
			return ErrAlreadyInTeam
		}

		var juries int64
		if err := tx.Model(&models.DeliverableJury{}).
			Joins("JOIN deliverables ON deliverables.id = deliverable_juries.deliverable_id").
			Joins("JOIN teams ON teams.id = deliverables.team_id").
			Where("deliverable_juries.user_id = ? AND teams.project_id = ?", userID, team.ProjectID).
			Count(&juries).Error; err != nil {
			return err
		}
		if juries > 0 {
			return ErrJurorOnTeam
		}

		var size int64
		if err := tx.Model(&models.TeamMember{}).Where("team_id = ?", teamID).Count(&size).Error; err != nil {
			return err
		}
		if s.maxTeamSize > 0 && size >= int64(s.maxTeamSize) {
			return ErrTeamFull
		}

		return tx.Create(&models.TeamMember{TeamID: team.ID, ProjectID: team.ProjectID, UserID: userID}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrAlreadyInTeam
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

// Leave removes the caller from their team in the project.
func (s *TeamService) Leave(userID, projectID uint) error {
	res := s.db.Where("project_id = ? AND user_id = ?", projectID, userID).Delete(&models.TeamMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return response.NewNotFound("you are not in a team for this project")
	}
	return nil
}

// RemoveUser lets the owning professor take a student off a team.
func (s *TeamService) RemoveUser(professorID uint, req *RemoveMemberRequest) error {
	team, err := loadTeam(s.db, req.TeamID)
	if err != nil {
		return err
	}
	if err := requireOwner(team.Project, professorID); err != nil {
		return err
	}

	res := s.db.Where("team_id = ? AND user_id = ?", req.TeamID, req.UserID).Delete(&models.TeamMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return response.NewNotFound("user is not a member of this team")
	}
	return nil
}

// TeamView is a team with its members' public details.
type TeamView struct {
	ID        uint          `json:"id"`
	Name      string        `json:"name"`
	ProjectID uint          `json:"projectId"`
	Members   []UserSummary `json:"members"`
}

func (s *TeamService) ListByProject(projectID uint) ([]TeamView, error) {
	if _, err := loadProject(s.db, projectID); err != nil {
		return nil, err
	}

	var teams []models.Team
	if err := s.db.Preload("Members.User").
		Where("project_id = ?", projectID).
		Order("name").
		Find(&teams).Error; err != nil {
		return nil, err
	}

	views := make([]TeamView, 0, len(teams))
	for i := range teams {
		views = append(views, toTeamView(&teams[i]))
	}
	return views, nil
}

func toTeamView(t *models.Team) TeamView {
	v := TeamView{ID: t.ID, Name: t.Name, ProjectID: t.ProjectID, Members: []UserSummary{}}
	for _, m := range t.Members {
		if m.User != nil {
			v.Members = append(v.Members, summarize(m.User))
		}
	}
	return v
}

func (s *TeamService) Members(teamID uint) ([]UserSummary, error) {
	if _, err := loadTeam(s.db, teamID); err != nil {
		return nil, err
	}
	return listTeamMembers(s.db, teamID)
}

func listTeamMembers(db *gorm.DB, teamID uint) ([]UserSummary, error) {
	var users []models.User
	if err := db.Joins("JOIN team_members ON team_members.user_id = users.id").
		Where("team_members.team_id = ?", teamID).
		Order("users.name").
		Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]UserSummary, 0, len(users))
	for i := range users {
		out = append(out, summarize(&users[i]))
	}
	return out, nil
}

// Delete removes a team and its deliverables; owning professor only.
func (s *TeamService) Delete(professorID, teamID uint) error {
	team, err := loadTeam(s.db, teamID)
	if err != nil {
		return err
	}
	if err := requireOwner(team.Project, professorID); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return deleteTeamTx(tx, teamID)
	})
}
