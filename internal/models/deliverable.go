package models

import "time"

// Deliverable is a gradable submission owned by a team.
type Deliverable struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"size:200;not null" json:"title"`
	Description     string    `gorm:"type:text" json:"description"`
	DueDate         time.Time `gorm:"not null;index" json:"dueDate"`
	SubmissionLink  string    `gorm:"size:500" json:"submissionLink"`
	LastDeliverable bool      `gorm:"default:false" json:"lastDeliverable"`
	Released        bool      `gorm:"default:false" json:"released"`
	IsAssigned      bool      `gorm:"default:false" json:"isAssigned"`
	TeamID          uint      `gorm:"index;not null" json:"teamId"`
	Team            *Team     `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (Deliverable) TableName() string { return "deliverables" }

// DeadlinePassed reports whether now is strictly after the due date.
func (d *Deliverable) DeadlinePassed(now time.Time) bool {
	return now.After(d.DueDate)
}

// DeliverableJury records one juror assigned to a deliverable.
type DeliverableJury struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	DeliverableID uint      `gorm:"not null;uniqueIndex:idx_jury_deliverable_user" json:"deliverableId"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_jury_deliverable_user;index" json:"userId"`
	User          *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AssignedAt    time.Time `gorm:"not null" json:"assignedAt"`
}

func (DeliverableJury) TableName() string { return "deliverable_juries" }

// Grade is one juror's mark for one deliverable.
type Grade struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	DeliverableID uint      `gorm:"not null;uniqueIndex:idx_grade_deliverable_user" json:"deliverableId"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_grade_deliverable_user;index" json:"userId"`
	User          *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Grade         float64   `gorm:"not null" json:"grade"`
	Feedback      string    `gorm:"type:text" json:"feedback"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (Grade) TableName() string { return "grades" }
