package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/timetracker-api/internal/dto"
	apierrors "github.com/yukikurage/timetracker-api/internal/errors"
	"github.com/yukikurage/timetracker-api/internal/events"
	"github.com/yukikurage/timetracker-api/internal/middleware"
	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/realtime"
	"github.com/yukikurage/timetracker-api/internal/services"
	"github.com/yukikurage/timetracker-api/internal/utils"
	"go.uber.org/zap"
)

type TaskHandler struct {
	tasks    *services.TaskService
	notifier *realtime.Notifier
	log      *zap.Logger
}

func NewTaskHandler(tasks *services.TaskService, notifier *realtime.Notifier, log *zap.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:    tasks,
		notifier: notifier,
		log:      log,
	}
}

// ListTasks returns the tasks of the project in the path
func (h *TaskHandler) ListTasks(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	assigneeID, ok := parseUintQuery(c, "assignee_id")
	if !ok {
		return
	}
	var status *models.TaskStatus
	if raw := c.Query("status"); raw != "" {
		s := models.TaskStatus(raw)
		status = &s
	}
	pagination := utils.GetPaginationParams(c)

	tasks, total, err := h.tasks.ListTasks(services.ListTasksInput{
		ProjectID:     project.ID,
		AssigneeID:    assigneeID,
		DueToday:      c.Query("due_today") == "true",
		Status:        status,
		SortByDueDate: c.Query("sort") == "due_date",
		Page:          pagination.Page,
		PageSize:      pagination.Limit,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, pagination.Page, pagination.Limit, total))
}

// CreateTask creates a task in the project in the path
func (h *TaskHandler) CreateTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	type CreateTaskRequest struct {
		Title          string              `json:"title" binding:"required,max=255"`
		Description    string              `json:"description"`
		Status         models.TaskStatus   `json:"status"`
		Priority       models.TaskPriority `json:"priority"`
		EstimatedHours *int                `json:"estimated_hours" binding:"omitempty,min=0"`
		DueDate        *time.Time          `json:"due_date"`
		AssigneeID     *uint64             `json:"assignee_id"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	task, err := h.tasks.CreateTask(services.CreateTaskInput{
		ProjectID:      project.ID,
		CreatorID:      user.ID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		EstimatedHours: req.EstimatedHours,
		DueDate:        req.DueDate,
		AssigneeID:     req.AssigneeID,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.notifier.TaskChanged(task, events.TaskCreated)
	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// GetTask returns the task loaded by RequireTaskAccess
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}
	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// UpdateTask applies a partial update. Sending null for due_date or
// assignee_id clears it.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	current, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	// Parse raw JSON to detect which fields were sent
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	var input services.UpdateTaskInput
	var invalid string
	decode := func(key string, dst any) bool {
		value, sent := raw[key]
		if !sent || string(value) == "null" || invalid != "" {
			return false
		}
		if err := json.Unmarshal(value, dst); err != nil {
			invalid = key
			return false
		}
		return true
	}

	var title, description string
	var status models.TaskStatus
	var priority models.TaskPriority
	var estimate int
	var dueDate time.Time
	var assigneeID uint64
	if decode("title", &title) {
		input.Title = &title
	}
	if decode("description", &description) {
		input.Description = &description
	}
	if decode("status", &status) {
		input.Status = &status
	}
	if decode("priority", &priority) {
		input.Priority = &priority
	}
	if decode("estimated_hours", &estimate) {
		input.EstimatedHours = &estimate
	}
	if decode("due_date", &dueDate) {
		input.DueDate = &dueDate
	}
	if decode("assignee_id", &assigneeID) {
		input.AssigneeID = &assigneeID
	}
	if invalid != "" {
		apierrors.BadRequest(c, "Invalid "+invalid)
		return
	}
	if v, sent := raw["due_date"]; sent && string(v) == "null" {
		input.ClearDueDate = true
	}
	if v, sent := raw["assignee_id"]; sent && string(v) == "null" {
		input.ClearAssignee = true
	}

	task, err := h.tasks.UpdateTask(current.ID, input)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.notifier.TaskChanged(task, events.TaskUpdated)
	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// DeleteTask deletes a task. Time entries that referenced it keep their
// project and lose the task link.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	current, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	task, err := h.tasks.DeleteTask(current.ID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.notifier.TaskChanged(task, events.TaskDeleted)
	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
	})
}

// GenerateTasks turns free text into tasks of the project using AI
func (h *TaskHandler) GenerateTasks(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	type GenerateTasksRequest struct {
		Text string `json:"text" binding:"required,max=10000"`
	}

	var req GenerateTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	tasks, err := h.tasks.GenerateTasks(c.Request.Context(), services.GenerateTasksInput{
		Project:   project,
		CreatorID: user.ID,
		Text:      req.Text,
	})
	if err != nil {
		if errors.Is(err, services.ErrAINoTasksGenerated) || errors.Is(err, services.ErrAINoValidTasks) {
			apierrors.RespondWithError(c, http.StatusUnprocessableEntity, apierrors.NewAPIError(apierrors.ErrCodeOperationFailed, err.Error()))
			return
		}
		respondServiceError(c, h.log, err)
		return
	}

	for i := range tasks {
		h.notifier.TaskChanged(&tasks[i], events.TaskCreated)
	}
	c.JSON(http.StatusCreated, gin.H{
		"tasks": dto.ToTaskDTOs(tasks),
	})
}
