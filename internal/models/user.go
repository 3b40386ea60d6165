package models

import "time"

const (
	RoleStudent   = "student"
	RoleProfessor = "professor"

	AuthTypeLocal = "local"
	AuthTypeLDAP  = "ldap"
)

// User is either a student or a professor. Team membership lives in
// TeamMember so a student can belong to one team in each project.
type User struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"size:100;not null" json:"name"`
	Email      string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password   string     `gorm:"size:255" json:"-"` // empty for LDAP users
	Role       string     `gorm:"size:20;not null;index" json:"role"`
	AuthType   string     `gorm:"size:20;default:local" json:"authType"`
	Department string     `gorm:"size:100" json:"department,omitempty"`
	Major      string     `gorm:"size:100" json:"major,omitempty"`
	Year       int        `json:"year,omitempty"`
	Office     string     `gorm:"size:100" json:"office,omitempty"`
	IsActive   bool       `gorm:"default:true" json:"isActive"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

func (u *User) IsProfessor() bool { return u.Role == RoleProfessor }
func (u *User) IsStudent() bool   { return u.Role == RoleStudent }

// ValidRole reports whether role is one of the two account roles.
func ValidRole(role string) bool {
	return role == RoleStudent || role == RoleProfessor
}
