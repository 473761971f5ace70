package models

import "time"

type ProjectRole string

const (
	ProjectRoleMember  ProjectRole = "member"
	ProjectRoleManager ProjectRole = "manager"
	ProjectRoleAdmin   ProjectRole = "admin"
)

type ProjectMember struct {
	ProjectID  uint64      `gorm:"primarykey" json:"project_id"`
	UserID     uint64      `gorm:"primarykey" json:"user_id"`
	Role       ProjectRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	HourlyRate *int64      `json:"hourly_rate"`
	IsActive   bool        `gorm:"not null;default:true" json:"is_active"`
	AddedByID  uint64      `gorm:"not null" json:"added_by_id"`
	JoinedAt   time.Time   `json:"joined_at"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
