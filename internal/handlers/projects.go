package handlers

import (
	"encoding/json"
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

type ProjectHandler struct {
	projects *services.ProjectService
	notifier *realtime.Notifier
	log      *zap.Logger
}

func NewProjectHandler(projects *services.ProjectService, notifier *realtime.Notifier, log *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		notifier: notifier,
		log:      log,
	}
}

// CreateProject creates a project owned by the caller
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	type CreateProjectRequest struct {
		Name        string     `json:"name" binding:"required,max=255"`
		Description string     `json:"description"`
		ClientName  string     `json:"client_name" binding:"max=255"`
		HourlyRate  *int64     `json:"hourly_rate" binding:"omitempty,min=0"`
		Budget      *int64     `json:"budget" binding:"omitempty,min=0"`
		Deadline    *time.Time `json:"deadline"`
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	project, err := h.projects.CreateProject(services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		ClientName:  req.ClientName,
		HourlyRate:  req.HourlyRate,
		Budget:      req.Budget,
		Deadline:    req.Deadline,
		OwnerID:     user.ID,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToProjectDTO(*project))
}

// ListProjects returns the projects visible to the caller
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var status *models.ProjectStatus
	if raw := c.Query("status"); raw != "" {
		s := models.ProjectStatus(raw)
		status = &s
	}
	pagination := utils.GetPaginationParams(c)

	projects, total, err := h.projects.ListProjects(user, status, pagination.Page, pagination.Limit)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectListResponse(projects, pagination.Page, pagination.Limit, total))
}

// GetProject returns project details with its members
func (h *ProjectHandler) GetProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	current, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	project, members, err := h.projects.GetProjectWithMembers(current.ID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	canManage, err := h.projects.CanManage(user, project)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDetailDTO(*project, members, canManage))
}

// UpdateProject applies a partial update. Sending null for hourly_rate or
// deadline clears it.
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	current, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	// Parse raw JSON to detect which fields were sent
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	var input services.UpdateProjectInput
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
	sentNull := func(key string) bool {
		value, sent := raw[key]
		return sent && string(value) == "null"
	}

	var name, description, clientName string
	var status models.ProjectStatus
	var rate, budget int64
	var deadline time.Time
	if decode("name", &name) {
		input.Name = &name
	}
	if decode("description", &description) {
		input.Description = &description
	}
	if decode("client_name", &clientName) {
		input.ClientName = &clientName
	}
	if decode("status", &status) {
		input.Status = &status
	}
	if decode("hourly_rate", &rate) {
		input.HourlyRate = &rate
	}
	if decode("budget", &budget) {
		input.Budget = &budget
	}
	if decode("deadline", &deadline) {
		input.Deadline = &deadline
	}
	if invalid != "" {
		apierrors.BadRequest(c, "Invalid "+invalid)
		return
	}
	input.ClearRate = sentNull("hourly_rate")
	input.ClearDeadline = sentNull("deadline")

	project, err := h.projects.UpdateProject(current.ID, input)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.notifier.ProjectUpdated(project, events.ProjectUpdated, &user.ID)
	c.JSON(http.StatusOK, dto.ToProjectDTO(*project))
}

// AddMember adds a user to the project
func (h *ProjectHandler) AddMember(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	type AddMemberRequest struct {
		UserID     uint64             `json:"user_id" binding:"required"`
		Role       models.ProjectRole `json:"role"`
		HourlyRate *int64             `json:"hourly_rate" binding:"omitempty,min=0"`
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	member, err := h.projects.AddMember(services.AddMemberInput{
		ProjectID:  project.ID,
		ActorID:    user.ID,
		UserID:     req.UserID,
		Role:       req.Role,
		HourlyRate: req.HourlyRate,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.notifier.ProjectUpdated(project, events.ProjectMemberAdded, &req.UserID)
	c.JSON(http.StatusCreated, dto.ToProjectMemberDTO(*member))
}

// RemoveMember removes a user from the project
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}
	targetID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.projects.RemoveMember(project.ID, targetID); err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.notifier.ProjectUpdated(project, events.ProjectMemberRemoved, &targetID)
	c.JSON(http.StatusOK, gin.H{
		"message": "Member removed successfully",
	})
}

// ListMembers returns every membership of the project
func (h *ProjectHandler) ListMembers(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	members, err := h.projects.ListMembers(project.ID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": dto.ToProjectMemberDTOs(members)})
}

// UpdateMember changes a member's role, rate or active flag. Sending null
// for hourly_rate clears it.
func (h *ProjectHandler) UpdateMember(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}
	targetID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}

	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	var input services.UpdateMemberInput
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

	var role models.ProjectRole
	var rate int64
	var active bool
	if decode("role", &role) {
		input.Role = &role
	}
	if decode("hourly_rate", &rate) {
		input.HourlyRate = &rate
	}
	if decode("is_active", &active) {
		input.IsActive = &active
	}
	if invalid != "" {
		apierrors.BadRequest(c, "Invalid "+invalid)
		return
	}
	if value, sent := raw["hourly_rate"]; sent && string(value) == "null" {
		input.ClearRate = true
	}

	member, err := h.projects.UpdateMember(project.ID, targetID, input)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.notifier.ProjectUpdated(project, events.ProjectMemberUpdated, &targetID)
	c.JSON(http.StatusOK, dto.ToProjectMemberDTO(*member))
}

// DeleteProject removes the project. Only its owner or an admin may do so.
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	current, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}
	if current.OwnerID != user.ID && !user.IsAdmin() {
		apierrors.Forbidden(c, "Only the project owner or an admin can delete it")
		return
	}

	project, err := h.projects.DeleteProject(current.ID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.notifier.ProjectUpdated(project, events.ProjectDeleted, &user.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}
