package models

import (
	"time"

	"gorm.io/gorm"
)

type TimeEntryStatus string

const (
	TimeEntryStatusRunning  TimeEntryStatus = "running"
	TimeEntryStatusStopped  TimeEntryStatus = "stopped"
	TimeEntryStatusApproved TimeEntryStatus = "approved"
	TimeEntryStatusRejected TimeEntryStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s TimeEntryStatus) Valid() bool {
	switch s {
	case TimeEntryStatusRunning, TimeEntryStatusStopped, TimeEntryStatusApproved, TimeEntryStatusRejected:
		return true
	}
	return false
}

// TimeEntry is a tracked span of work. EndTime and Duration stay nil while
// the entry is running.
type TimeEntry struct {
	ID          uint64          `gorm:"primarykey" json:"id"`
	Description string          `gorm:"type:text" json:"description"`
	StartTime   time.Time       `gorm:"not null" json:"start_time"`
	EndTime     *time.Time      `json:"end_time"`
	Duration    *int64          `json:"duration"` // seconds
	Status      TimeEntryStatus `gorm:"type:varchar(20);not null;default:'running'" json:"status"`
	IsBillable  bool            `gorm:"not null" json:"is_billable"`
	HourlyRate  *int64          `json:"hourly_rate"` // minor currency units, overrides the project rate
	UserID      uint64          `gorm:"not null" json:"user_id"`
	ProjectID   uint64          `gorm:"not null" json:"project_id"`
	TaskID      *uint64         `json:"task_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relations
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Task    *Task   `gorm:"foreignKey:TaskID" json:"task,omitempty"`
}

// IsRunning reports whether the entry has no recorded end yet.
func (e *TimeEntry) IsRunning() bool {
	return e.Status == TimeEntryStatusRunning
}

// EffectiveHourlyRate resolves the billing rate: the entry override first,
// then the project's rate. The project must be preloaded for the fallback.
func (e *TimeEntry) EffectiveHourlyRate() *int64 {
	if e.HourlyRate != nil {
		return e.HourlyRate
	}
	if e.Project.ID != 0 {
		return e.Project.HourlyRate
	}
	return nil
}
