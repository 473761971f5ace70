package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleManager  UserRole = "manager"
	UserRoleEmployee UserRole = "employee"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleManager, UserRoleEmployee:
		return true
	}
	return false
}

type User struct {
	ID           uint64         `gorm:"primarykey" json:"id"`
	Email        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username     string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	PasswordHash string         `gorm:"type:varchar(255);not null" json:"-"`
	FullName     string         `gorm:"type:varchar(255)" json:"full_name"`
	Role         UserRole       `gorm:"type:varchar(20);not null;default:'employee'" json:"role"`
	IsActive     bool           `gorm:"not null;default:true" json:"is_active"`
	IsSuperuser  bool           `gorm:"not null;default:false" json:"is_superuser"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	OwnedProjects      []Project       `gorm:"foreignKey:OwnerID" json:"-"`
	ProjectMemberships []ProjectMember `gorm:"foreignKey:UserID" json:"-"`
	TimeEntries        []TimeEntry     `gorm:"foreignKey:UserID" json:"-"`
}

// IsPrivileged reports whether the user may act on other users' records.
func (u *User) IsPrivileged() bool {
	return u.IsSuperuser || u.Role == UserRoleManager || u.Role == UserRoleAdmin
}

// IsAdmin reports whether the user has admin rights.
func (u *User) IsAdmin() bool {
	return u.IsSuperuser || u.Role == UserRoleAdmin
}
