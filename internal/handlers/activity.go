package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/timetracker-api/internal/dto"
	apierrors "github.com/yukikurage/timetracker-api/internal/errors"
	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/realtime"
	"github.com/yukikurage/timetracker-api/internal/repository"
	"github.com/yukikurage/timetracker-api/internal/services"
	"github.com/yukikurage/timetracker-api/internal/utils"
	"go.uber.org/zap"
)

// ActivityHandler serves activity samples and screenshot metadata sent by
// desktop clients
type ActivityHandler struct {
	activity *services.ActivityService
	notifier *realtime.Notifier
	log      *zap.Logger
}

func NewActivityHandler(activity *services.ActivityService, notifier *realtime.Notifier, log *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		activity: activity,
		notifier: notifier,
		log:      log,
	}
}

type activityRequest struct {
	Timestamp         *time.Time `json:"timestamp"`
	KeyboardStrokes   int        `json:"keyboard_strokes"`
	MouseClicks       int        `json:"mouse_clicks"`
	MouseMoves        int        `json:"mouse_moves"`
	ScrollEvents      int        `json:"scroll_events"`
	ActiveWindowTitle string     `json:"active_window_title" binding:"max=500"`
	ActiveApplication string     `json:"active_application" binding:"max=255"`
	URLVisited        string     `json:"url_visited" binding:"max=1000"`
	ProductivityScore *float64   `json:"productivity_score"`
	IsProductive      *bool      `json:"is_productive"`
	TimeEntryID       *uint64    `json:"time_entry_id"`
}

func (r activityRequest) input() services.ActivityInput {
	return services.ActivityInput{
		Timestamp:         r.Timestamp,
		KeyboardStrokes:   r.KeyboardStrokes,
		MouseClicks:       r.MouseClicks,
		MouseMoves:        r.MouseMoves,
		ScrollEvents:      r.ScrollEvents,
		ActiveWindowTitle: r.ActiveWindowTitle,
		ActiveApplication: r.ActiveApplication,
		URLVisited:        r.URLVisited,
		ProductivityScore: r.ProductivityScore,
		IsProductive:      r.IsProductive,
		TimeEntryID:       r.TimeEntryID,
	}
}

// LogActivity stores one activity sample for the caller
func (h *ActivityHandler) LogActivity(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	log, err := h.activity.LogActivity(user.ID, req.input())
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.notifier.ActivityLogged(log)
	h.alertIfUnproductive(log)
	c.JSON(http.StatusCreated, log)
}

// LogActivityBatch stores several samples at once
func (h *ActivityHandler) LogActivityBatch(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	type BatchRequest struct {
		Activities []activityRequest `json:"activities" binding:"required,dive"`
	}

	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	inputs := make([]services.ActivityInput, len(req.Activities))
	for i, a := range req.Activities {
		inputs[i] = a.input()
	}

	logs, err := h.activity.LogActivityBatch(user.ID, inputs)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.notifier.ActivityBatchLogged(user.ID, len(logs))
	for i := range logs {
		h.alertIfUnproductive(&logs[i])
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Activity logs recorded",
		"count":   len(logs),
	})
}

func (h *ActivityHandler) alertIfUnproductive(log *models.ActivityLog) {
	if h.activity.NeedsAlert(log) {
		h.notifier.ProductivityAlert(log, h.activity.Threshold())
	}
}

// ListActivity returns activity logs. Callers without manager rights only
// see their own.
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	filter, ok := h.activityFilter(c)
	if !ok {
		return
	}

	logs, total, err := h.activity.ListActivity(filter)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToActivityLogListResponse(logs, filter.Page, filter.PageSize, total))
}

// RecordScreenshot stores metadata of a capture uploaded elsewhere
func (h *ActivityHandler) RecordScreenshot(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	type ScreenshotRequest struct {
		Filename      string     `json:"filename" binding:"required,max=255"`
		FilePath      string     `json:"file_path" binding:"required,max=1000"`
		FileSize      *int64     `json:"file_size" binding:"omitempty,min=0"`
		Width         *int       `json:"width" binding:"omitempty,min=0"`
		Height        *int       `json:"height" binding:"omitempty,min=0"`
		IsBlurred     bool       `json:"is_blurred"`
		BlurLevel     int        `json:"blur_level" binding:"min=0"`
		ThumbnailPath string     `json:"thumbnail_path" binding:"max=1000"`
		CapturedAt    *time.Time `json:"captured_at"`
		TimeEntryID   *uint64    `json:"time_entry_id"`
	}

	var req ScreenshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	shot, err := h.activity.RecordScreenshot(user.ID, services.ScreenshotInput{
		Filename:      req.Filename,
		FilePath:      req.FilePath,
		FileSize:      req.FileSize,
		Width:         req.Width,
		Height:        req.Height,
		IsBlurred:     req.IsBlurred,
		BlurLevel:     req.BlurLevel,
		ThumbnailPath: req.ThumbnailPath,
		CapturedAt:    req.CapturedAt,
		TimeEntryID:   req.TimeEntryID,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.notifier.ScreenshotTaken(shot)
	c.JSON(http.StatusCreated, shot)
}

// ListScreenshots returns screenshot metadata with the same scoping as
// ListActivity
func (h *ActivityHandler) ListScreenshots(c *gin.Context) {
	filter, ok := h.activityFilter(c)
	if !ok {
		return
	}

	shots, total, err := h.activity.ListScreenshots(filter)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToScreenshotListResponse(shots, filter.Page, filter.PageSize, total))
}

func (h *ActivityHandler) activityFilter(c *gin.Context) (repository.ActivityFilter, bool) {
	var filter repository.ActivityFilter

	user, ok := currentUser(c)
	if !ok {
		return filter, false
	}
	if filter.UserID, ok = parseUintQuery(c, "user_id"); !ok {
		return filter, false
	}
	if filter.TimeEntryID, ok = parseUintQuery(c, "time_entry_id"); !ok {
		return filter, false
	}
	if filter.From, ok = parseTimeQuery(c, "start_date"); !ok {
		return filter, false
	}
	if filter.To, ok = parseTimeQuery(c, "end_date"); !ok {
		return filter, false
	}
	if filter.To != nil && len(c.Query("end_date")) == len(time.DateOnly) {
		end := filter.To.Add(24 * time.Hour)
		filter.To = &end
	}
	if !user.IsPrivileged() {
		filter.UserID = &user.ID
	}

	pagination := utils.GetPaginationParams(c)
	filter.Page = pagination.Page
	filter.PageSize = pagination.Limit
	return filter, true
}

// visibleTo hides samples of other users from non-privileged callers with the
// same answer as a missing row.
func visibleTo(c *gin.Context, user *models.User, ownerID uint64, what string) bool {
	if ownerID != user.ID && !user.IsPrivileged() {
		apierrors.NotFound(c, what+" not found")
		return false
	}
	return true
}

// removableBy reports whether user may delete a sample owned by ownerID.
// Managers can read team samples but only admins remove them.
func removableBy(c *gin.Context, user *models.User, ownerID uint64) bool {
	if ownerID != user.ID && !user.IsAdmin() {
		apierrors.Forbidden(c, "Only the owner or an admin can delete this")
		return false
	}
	return true
}

// GetActivityLog returns one activity sample
func (h *ActivityHandler) GetActivityLog(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	log, err := h.activity.GetActivityLog(id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	if !visibleTo(c, user, log.UserID, "Activity log") {
		return
	}

	c.JSON(http.StatusOK, log)
}

// DeleteActivityLog removes one activity sample
func (h *ActivityHandler) DeleteActivityLog(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	log, err := h.activity.GetActivityLog(id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	if !visibleTo(c, user, log.UserID, "Activity log") || !removableBy(c, user, log.UserID) {
		return
	}

	if err := h.activity.DeleteActivityLog(id); err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Activity log deleted"})
}

// GetScreenshot returns the metadata of one capture
func (h *ActivityHandler) GetScreenshot(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	shot, err := h.activity.GetScreenshot(id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	if !visibleTo(c, user, shot.UserID, "Screenshot") {
		return
	}

	c.JSON(http.StatusOK, shot)
}

// UpdateScreenshot applies blur and thumbnail results to a capture
func (h *ActivityHandler) UpdateScreenshot(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	type UpdateScreenshotRequest struct {
		Status        *models.ScreenshotStatus `json:"status"`
		IsBlurred     *bool                    `json:"is_blurred"`
		BlurLevel     *int                     `json:"blur_level" binding:"omitempty,min=0"`
		ThumbnailPath *string                  `json:"thumbnail_path" binding:"omitempty,max=1000"`
		FileSize      *int64                   `json:"file_size" binding:"omitempty,min=0"`
		Width         *int                     `json:"width" binding:"omitempty,min=0"`
		Height        *int                     `json:"height" binding:"omitempty,min=0"`
	}

	var req UpdateScreenshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	shot, err := h.activity.GetScreenshot(id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	if !visibleTo(c, user, shot.UserID, "Screenshot") {
		return
	}

	shot, err = h.activity.UpdateScreenshot(id, services.UpdateScreenshotInput{
		Status:        req.Status,
		IsBlurred:     req.IsBlurred,
		BlurLevel:     req.BlurLevel,
		ThumbnailPath: req.ThumbnailPath,
		FileSize:      req.FileSize,
		Width:         req.Width,
		Height:        req.Height,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, shot)
}

// DeleteScreenshot marks a capture deleted
func (h *ActivityHandler) DeleteScreenshot(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	shot, err := h.activity.GetScreenshot(id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	if !visibleTo(c, user, shot.UserID, "Screenshot") || !removableBy(c, user, shot.UserID) {
		return
	}

	if err := h.activity.DeleteScreenshot(id); err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Screenshot deleted"})
}
