package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type StatsService struct {
	db *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

type TeamStats struct {
	TeamID       uint    `json:"teamId"`
	TeamName     string  `json:"teamName"`
	Members      int64   `json:"members"`
	Deliverables int64   `json:"deliverables"`
	JuryAssigned int64   `json:"juryAssigned"`
	Graded       int64   `json:"graded"`
	Released     int64   `json:"released"`
	AverageGrade *string `json:"averageGrade"`
}

type ProjectStats struct {
	ProjectID uint        `json:"projectId"`
	Title     string      `json:"title"`
	Teams     []TeamStats `json:"teams"`
}

// ProjectStats summarises grading progress per team; owning professor only.
func (s *StatsService) ProjectStats(professorID, projectID uint) (*ProjectStats, error) {
	project, err := loadProject(s.db, projectID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(project, professorID); err != nil {
		return nil, err
	}

	var rows []struct {
		TeamID       uint
		TeamName     string
		Members      int64
		Deliverables int64
		JuryAssigned int64
		Graded       int64
		Released     int64
		Average      *float64
	}
	err = s.db.Table("teams").
		Select(`teams.id AS team_id, teams.name AS team_name,
			(SELECT COUNT(*) FROM team_members tm WHERE tm.team_id = teams.id) AS members,
			(SELECT COUNT(*) FROM deliverables d WHERE d.team_id = teams.id) AS deliverables,
			(SELECT COUNT(*) FROM deliverables d WHERE d.team_id = teams.id AND d.is_assigned = ?) AS jury_assigned,
			(SELECT COUNT(DISTINCT g.deliverable_id) FROM grades g JOIN deliverables d ON d.id = g.deliverable_id WHERE d.team_id = teams.id) AS graded,
			(SELECT COUNT(*) FROM deliverables d WHERE d.team_id = teams.id AND d.released = ?) AS released,
			(SELECT AVG(g.grade) FROM grades g JOIN deliverables d ON d.id = g.deliverable_id WHERE d.team_id = teams.id) AS average`,
			true, true).
		Where("teams.project_id = ?", projectID).
		Order("teams.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := &ProjectStats{ProjectID: project.ID, Title: project.Title, Teams: make([]TeamStats, 0, len(rows))}
	for _, r := range rows {
		ts := TeamStats{
			TeamID:       r.TeamID,
			TeamName:     r.TeamName,
			Members:      r.Members,
			Deliverables: r.Deliverables,
			JuryAssigned: r.JuryAssigned,
			Graded:       r.Graded,
			Released:     r.Released,
		}
		if r.Average != nil {
			avg := fmt.Sprintf("%.2f", *r.Average)
			ts.AverageGrade = &avg
		}
		out.Teams = append(out.Teams, ts)
	}
	return out, nil
}

// GradebookRow is one submitted grade with its team, deliverable and juror.
type GradebookRow struct {
	TeamName         string
	DeliverableID    uint
	DeliverableTitle string
	DueDate          time.Time
	Released         bool
	JurorName        string
	JurorEmail       string
	Grade            float64
	Feedback         string
	SubmittedAt      time.Time
}

// GradebookRows lists every grade in the project, ordered for printing.
func (s *StatsService) GradebookRows(projectID uint) ([]GradebookRow, error) {
	var rows []GradebookRow
	err := s.db.Table("grades").
		Select(`teams.name AS team_name, deliverables.id AS deliverable_id,
			deliverables.title AS deliverable_title, deliverables.due_date AS due_date,
			deliverables.released AS released, users.name AS juror_name, users.email AS juror_email,
			grades.grade AS grade, grades.feedback AS feedback, grades.created_at AS submitted_at`).
		Joins("JOIN deliverables ON deliverables.id = grades.deliverable_id").
		Joins("JOIN teams ON teams.id = deliverables.team_id").
		Joins("JOIN users ON users.id = grades.user_id").
		Where("teams.project_id = ?", projectID).
		Order("teams.name, deliverables.due_date, deliverables.id, grades.created_at, grades.id").
		Scan(&rows).Error
	return rows, err
}
