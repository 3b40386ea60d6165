package models

import "time"

const (
	NotificationJuryAssigned    = "jury_assigned"
	NotificationGradesReleased  = "grades_released"
	NotificationGradesHidden    = "grades_hidden"
	NotificationGradingReminder = "grading_reminder"
)

type Notification struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"index;not null" json:"userId"`
	Type          string     `gorm:"size:50;not null" json:"type"`
	Title         string     `gorm:"size:200" json:"title"`
	Message       string     `gorm:"type:text" json:"message"`
	DeliverableID *uint      `gorm:"index" json:"deliverableId,omitempty"`
	ReadAt        *time.Time `json:"readAt,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }
