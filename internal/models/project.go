package models

import "time"

// Project is owned by the professor who created it; the owner never changes.
type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	ProfessorID uint      `gorm:"index;not null" json:"professorId"`
	Professor   *User     `gorm:"foreignKey:ProfessorID" json:"professor,omitempty"`
	Teams       []Team    `gorm:"foreignKey:ProjectID" json:"teams,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Project) TableName() string { return "projects" }

// Team names are unique within a project.
type Team struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"size:100;not null;uniqueIndex:idx_team_project_name" json:"name"`
	ProjectID uint         `gorm:"not null;uniqueIndex:idx_team_project_name" json:"projectId"`
	Project   *Project     `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Members   []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (Team) TableName() string { return "teams" }

// TeamMember links a student to a team. ProjectID is denormalised from the
// team so the database can enforce one team per student per project.
type TeamMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    uint      `gorm:"index;not null" json:"teamId"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_member_project_user" json:"projectId"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_member_project_user;index" json:"userId"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time `json:"joinedAt"`
}

func (TeamMember) TableName() string { return "team_members" }
