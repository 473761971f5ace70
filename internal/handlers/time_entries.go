package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/timetracker-api/internal/dto"
	apierrors "github.com/yukikurage/timetracker-api/internal/errors"
	"github.com/yukikurage/timetracker-api/internal/middleware"
	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/realtime"
	"github.com/yukikurage/timetracker-api/internal/repository"
	"github.com/yukikurage/timetracker-api/internal/services"
	"github.com/yukikurage/timetracker-api/internal/utils"
	"go.uber.org/zap"
)

// TimeEntryHandler serves the time tracking endpoints
type TimeEntryHandler struct {
	timer    *services.TimerService
	notifier *realtime.Notifier
	log      *zap.Logger
}

// NewTimeEntryHandler creates a new TimeEntryHandler
func NewTimeEntryHandler(timer *services.TimerService, notifier *realtime.Notifier, log *zap.Logger) *TimeEntryHandler {
	return &TimeEntryHandler{
		timer:    timer,
		notifier: notifier,
		log:      log,
	}
}

type startTimerRequest struct {
	ProjectID   uint64  `json:"project_id" binding:"required"`
	TaskID      *uint64 `json:"task_id"`
	Description string  `json:"description" binding:"max=5000"`
	IsBillable  *bool   `json:"is_billable"`
	HourlyRate  *int64  `json:"hourly_rate" binding:"omitempty,min=0"`
}

type stopTimerRequest struct {
	Description *string `json:"description" binding:"omitempty,max=5000"`
}

type createTimeEntryRequest struct {
	ProjectID   uint64                 `json:"project_id" binding:"required"`
	TaskID      *uint64                `json:"task_id"`
	Description string                 `json:"description" binding:"max=5000"`
	StartTime   *time.Time             `json:"start_time"`
	EndTime     *time.Time             `json:"end_time"`
	Duration    *int64                 `json:"duration"`
	Status      models.TimeEntryStatus `json:"status"`
	IsBillable  *bool                  `json:"is_billable"`
	HourlyRate  *int64                 `json:"hourly_rate" binding:"omitempty,min=0"`
}

type updateTimeEntryRequest struct {
	Description     *string                 `json:"description" binding:"omitempty,max=5000"`
	ProjectID       *uint64                 `json:"project_id"`
	TaskID          *uint64                 `json:"task_id"`
	ClearTask       bool                    `json:"clear_task"`
	StartTime       *time.Time              `json:"start_time"`
	EndTime         *time.Time              `json:"end_time"`
	Duration        *int64                  `json:"duration"`
	Status          *models.TimeEntryStatus `json:"status"`
	IsBillable      *bool                   `json:"is_billable"`
	HourlyRate      *int64                  `json:"hourly_rate" binding:"omitempty,min=0"`
	ClearHourlyRate bool                    `json:"clear_hourly_rate"`
}

// ListTimeEntries returns entries matching the query filters. Callers without
// manager rights only ever see their own entries.
func (h *TimeEntryHandler) ListTimeEntries(c *gin.Context) {
	filter, ok := scopedTimeEntryFilter(c)
	if !ok {
		return
	}
	h.respondList(c, filter)
}

// ListMyTimeEntries returns the caller's own entries
func (h *TimeEntryHandler) ListMyTimeEntries(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	filter, ok := timeEntryFilterFromQuery(c)
	if !ok {
		return
	}
	filter.UserID = &user.ID

	h.respondList(c, filter)
}

func (h *TimeEntryHandler) respondList(c *gin.Context, filter repository.TimeEntryFilter) {
	entries, total, err := h.timer.ListTimeEntries(filter)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToTimeEntryListResponse(entries, filter.Page, filter.PageSize, total))
}

// scopedTimeEntryFilter parses the query filters, forcing callers
// without manager rights onto their own entries.
func scopedTimeEntryFilter(c *gin.Context) (repository.TimeEntryFilter, bool) {
	user, ok := currentUser(c)
	if !ok {
		return repository.TimeEntryFilter{}, false
	}
	filter, ok := timeEntryFilterFromQuery(c)
	if !ok {
		return filter, false
	}
	if !user.IsPrivileged() {
		filter.UserID = &user.ID
	}
	return filter, true
}

// GetActiveTimeEntry returns the caller's running entry, or null
func (h *TimeEntryHandler) GetActiveTimeEntry(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	entry, err := h.timer.GetActiveEntry(user.ID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, dto.ToTimeEntryDTO(*entry))
}

// GetTimeEntry returns one entry loaded by RequireTimeEntryAccess
func (h *TimeEntryHandler) GetTimeEntry(c *gin.Context) {
	entry, ok := middleware.GetTimeEntry(c)
	if !ok {
		apierrors.InternalError(c, "Time entry not found in context")
		return
	}
	c.JSON(http.StatusOK, dto.ToTimeEntryDTO(*entry))
}

// StartTimer stops the caller's running timer, if any, and starts a new one
func (h *TimeEntryHandler) StartTimer(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req startTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	result, err := h.timer.StartTimer(services.StartTimerInput{
		UserID:      user.ID,
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		Description: req.Description,
		IsBillable:  req.IsBillable,
		HourlyRate:  req.HourlyRate,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.announceStart(result)
	c.JSON(http.StatusCreated, startResponse(result))
}

// StopActiveTimer stops whatever the caller has running
func (h *TimeEntryHandler) StopActiveTimer(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	req, ok := bindStopRequest(c)
	if !ok {
		return
	}

	entry, err := h.timer.StopActiveTimer(user.ID, req.Description)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.notifier.TimeEntryStopped(entry, false)
	c.JSON(http.StatusOK, dto.ToTimeEntryDTO(*entry))
}

// StopTimeEntry stops the entry in the path
func (h *TimeEntryHandler) StopTimeEntry(c *gin.Context) {
	current, ok := middleware.GetTimeEntry(c)
	if !ok {
		apierrors.InternalError(c, "Time entry not found in context")
		return
	}

	req, ok := bindStopRequest(c)
	if !ok {
		return
	}

	entry, err := h.timer.StopTimer(current.ID, req.Description)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.notifier.TimeEntryStopped(entry, false)
	c.JSON(http.StatusOK, dto.ToTimeEntryDTO(*entry))
}

// CreateTimeEntry records an entry with explicit times
func (h *TimeEntryHandler) CreateTimeEntry(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req createTimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	result, err := h.timer.CreateTimeEntry(services.CreateTimeEntryInput{
		UserID:      user.ID,
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Duration:    req.Duration,
		Status:      req.Status,
		IsBillable:  req.IsBillable,
		HourlyRate:  req.HourlyRate,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	if result.Entry.IsRunning() {
		h.announceStart(result)
	}
	c.JSON(http.StatusCreated, startResponse(result))
}

// UpdateTimeEntry applies a partial update to the entry in the path
func (h *TimeEntryHandler) UpdateTimeEntry(c *gin.Context) {
	current, ok := middleware.GetTimeEntry(c)
	if !ok {
		apierrors.InternalError(c, "Time entry not found in context")
		return
	}

	var req updateTimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	entry, err := h.timer.UpdateTimeEntry(current.ID, services.UpdateTimeEntryInput{
		Description:     req.Description,
		ProjectID:       req.ProjectID,
		TaskID:          req.TaskID,
		ClearTask:       req.ClearTask,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Duration:        req.Duration,
		Status:          req.Status,
		IsBillable:      req.IsBillable,
		HourlyRate:      req.HourlyRate,
		ClearHourlyRate: req.ClearHourlyRate,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTimeEntryDTO(*entry))
}

// DeleteTimeEntry deletes the entry in the path. Only the owner or an admin
// may delete.
func (h *TimeEntryHandler) DeleteTimeEntry(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	entry, ok := middleware.GetTimeEntry(c)
	if !ok {
		apierrors.InternalError(c, "Time entry not found in context")
		return
	}
	if entry.UserID != user.ID && !user.IsAdmin() {
		apierrors.Forbidden(c, "Only the owner or an admin can delete this time entry")
		return
	}

	if err := h.timer.DeleteTimeEntry(entry.ID); err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Time entry deleted successfully"})
}

// announceStart emits the stop events of displaced entries before the start
// event of the new one
func (h *TimeEntryHandler) announceStart(result *services.StartResult) {
	for i := range result.AutoStopped {
		h.notifier.TimeEntryStopped(&result.AutoStopped[i], true)
	}
	h.notifier.TimeEntryStarted(result.Entry)
}

func startResponse(result *services.StartResult) dto.StartTimerResponse {
	return dto.StartTimerResponse{
		TimeEntry:   dto.ToTimeEntryDTO(*result.Entry),
		AutoStopped: dto.ToTimeEntryDTOs(result.AutoStopped),
	}
}

func bindStopRequest(c *gin.Context) (stopTimerRequest, bool) {
	var req stopTimerRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return req, false
	}
	return req, true
}

func timeEntryFilterFromQuery(c *gin.Context) (repository.TimeEntryFilter, bool) {
	params := utils.GetPaginationParams(c)
	filter := repository.TimeEntryFilter{Page: params.Page, PageSize: params.Limit}

	var ok bool
	if filter.UserID, ok = parseUintQuery(c, "user_id"); !ok {
		return filter, false
	}
	if filter.ProjectID, ok = parseUintQuery(c, "project_id"); !ok {
		return filter, false
	}
	if filter.TaskID, ok = parseUintQuery(c, "task_id"); !ok {
		return filter, false
	}
	if raw := c.Query("status"); raw != "" {
		status := models.TimeEntryStatus(raw)
		if !status.Valid() {
			apierrors.BadRequest(c, "Invalid status")
			return filter, false
		}
		filter.Status = &status
	}
	if filter.StartFrom, ok = parseTimeQuery(c, "start_date"); !ok {
		return filter, false
	}
	if filter.EndBy, ok = parseTimeQuery(c, "end_date"); !ok {
		return filter, false
	}
	if filter.EndBy != nil && len(c.Query("end_date")) == len(time.DateOnly) {
		// A bare date includes the whole day
		end := filter.EndBy.Add(24*time.Hour - time.Microsecond)
		filter.EndBy = &end
	}
	return filter, true
}
