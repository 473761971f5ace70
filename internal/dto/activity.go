package dto

import "github.com/yukikurage/timetracker-api/internal/models"

// ActivityLogListResponse represents a paginated list of activity logs
type ActivityLogListResponse struct {
	ActivityLogs []models.ActivityLog `json:"activity_logs"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
	TotalCount   int64                `json:"total_count"`
	TotalPages   int                  `json:"total_pages"`
}

// ScreenshotListResponse represents a paginated list of screenshot metadata
type ScreenshotListResponse struct {
	Screenshots []models.Screenshot `json:"screenshots"`
	Page        int                 `json:"page"`
	PageSize    int                 `json:"page_size"`
	TotalCount  int64               `json:"total_count"`
	TotalPages  int                 `json:"total_pages"`
}

// ToActivityLogListResponse wraps activity logs with pagination metadata
func ToActivityLogListResponse(logs []models.ActivityLog, page, pageSize int, totalCount int64) ActivityLogListResponse {
	if logs == nil {
		logs = []models.ActivityLog{}
	}
	return ActivityLogListResponse{
		ActivityLogs: logs,
		Page:         page,
		PageSize:     pageSize,
		TotalCount:   totalCount,
		TotalPages:   totalPages(totalCount, pageSize),
	}
}

// ToScreenshotListResponse wraps screenshots with pagination metadata
func ToScreenshotListResponse(shots []models.Screenshot, page, pageSize int, totalCount int64) ScreenshotListResponse {
	if shots == nil {
		shots = []models.Screenshot{}
	}
	return ScreenshotListResponse{
		Screenshots: shots,
		Page:        page,
		PageSize:    pageSize,
		TotalCount:  totalCount,
		TotalPages:  totalPages(totalCount, pageSize),
	}
}
