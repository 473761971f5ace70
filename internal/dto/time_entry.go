package dto

import (
	"time"

	"github.com/yukikurage/timetracker-api/internal/models"
)

// TimeEntryDTO represents a time entry in API responses
type TimeEntryDTO struct {
	ID                  uint64                 `json:"id"`
	Description         string                 `json:"description"`
	StartTime           time.Time              `json:"start_time"`
	EndTime             *time.Time             `json:"end_time"`
	Duration            *int64                 `json:"duration"`
	Status              models.TimeEntryStatus `json:"status"`
	IsBillable          bool                   `json:"is_billable"`
	HourlyRate          *int64                 `json:"hourly_rate"`
	EffectiveHourlyRate *int64                 `json:"effective_hourly_rate"`
	UserID              uint64                 `json:"user_id"`
	ProjectID           uint64                 `json:"project_id"`
	TaskID              *uint64                `json:"task_id"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
	Project             *ProjectSummaryDTO     `json:"project,omitempty"`
	Task                *TaskSummaryDTO        `json:"task,omitempty"`
}

// TimeEntryListResponse represents a paginated list of time entries
type TimeEntryListResponse struct {
	TimeEntries []TimeEntryDTO `json:"time_entries"`
	Page        int            `json:"page"`
	PageSize    int            `json:"page_size"`
	TotalCount  int64          `json:"total_count"`
	TotalPages  int            `json:"total_pages"`
}

// StartTimerResponse is returned when a timer starts. AutoStopped lists the
// entries that were closed to make room for it.
type StartTimerResponse struct {
	TimeEntry   TimeEntryDTO   `json:"time_entry"`
	AutoStopped []TimeEntryDTO `json:"auto_stopped"`
}

// ToTimeEntryDTO converts a TimeEntry model to TimeEntryDTO
func ToTimeEntryDTO(e models.TimeEntry) TimeEntryDTO {
	dto := TimeEntryDTO{
		ID:                  e.ID,
		Description:         e.Description,
		StartTime:           e.StartTime,
		EndTime:             e.EndTime,
		Duration:            e.Duration,
		Status:              e.Status,
		IsBillable:          e.IsBillable,
		HourlyRate:          e.HourlyRate,
		EffectiveHourlyRate: e.EffectiveHourlyRate(),
		UserID:              e.UserID,
		ProjectID:           e.ProjectID,
		TaskID:              e.TaskID,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}

	if e.Project.ID != 0 {
		project := ToProjectSummaryDTO(e.Project)
		dto.Project = &project
	}
	if e.Task != nil && e.Task.ID != 0 {
		dto.Task = &TaskSummaryDTO{ID: e.Task.ID, Title: e.Task.Title, Status: e.Task.Status}
	}

	return dto
}

// ToTimeEntryDTOs converts a slice of time entries
func ToTimeEntryDTOs(entries []models.TimeEntry) []TimeEntryDTO {
	items := make([]TimeEntryDTO, len(entries))
	for i, e := range entries {
		items[i] = ToTimeEntryDTO(e)
	}
	return items
}

// ToTimeEntryListResponse converts a slice of entries to TimeEntryListResponse
func ToTimeEntryListResponse(entries []models.TimeEntry, page, pageSize int, totalCount int64) TimeEntryListResponse {
	return TimeEntryListResponse{
		TimeEntries: ToTimeEntryDTOs(entries),
		Page:        page,
		PageSize:    pageSize,
		TotalCount:  totalCount,
		TotalPages:  totalPages(totalCount, pageSize),
	}
}
