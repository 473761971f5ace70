package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/timetracker-api/internal/errors"
	"github.com/yukikurage/timetracker-api/internal/middleware"
	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/services"
	"go.uber.org/zap"
)

var notFoundErrors = []error{
	services.ErrTimeEntryNotFound,
	services.ErrNoActiveTimer,
	services.ErrProjectNotFound,
	services.ErrProjectMemberNotFound,
	services.ErrTaskNotFound,
	services.ErrUserNotFound,
	services.ErrActivityLogNotFound,
	services.ErrScreenshotNotFound,
}

var validationErrors = []error{
	services.ErrInvalidTimeEntryStatus,
	services.ErrInvalidTimeRange,
	services.ErrInvalidDuration,
	services.ErrMissingEndTime,
	services.ErrRunningEntryHasEnd,
	services.ErrTaskProjectMismatch,
	services.ErrInvalidProjectName,
	services.ErrInvalidProjectStatus,
	services.ErrInvalidProjectRole,
	services.ErrNegativeRate,
	services.ErrTitleRequired,
	services.ErrTitleEmpty,
	services.ErrInvalidTaskStatus,
	services.ErrInvalidTaskPriority,
	services.ErrInvalidTaskAssignee,
	services.ErrInvalidProductivityScore,
	services.ErrNegativeCounter,
	services.ErrEmptyBatch,
	services.ErrBatchTooLarge,
	services.ErrFilenameRequired,
	services.ErrInvalidScreenshotStatus,
	services.ErrInvalidScreenshotMeta,
	services.ErrUsernameRequired,
	services.ErrInvalidEmail,
	services.ErrInvalidRole,
	services.ErrPasswordTooShort,
}

// respondServiceError maps service errors onto API error responses. Anything
// unrecognised is logged and answered with 500.
func respondServiceError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case services.IsInvalidState(err):
		apierrors.InvalidState(c, err.Error())
	case matchesAny(err, notFoundErrors):
		apierrors.NotFound(c, err.Error())
	case matchesAny(err, validationErrors):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrForeignTimeEntry),
		errors.Is(err, services.ErrProjectPermissionDenied),
		errors.Is(err, services.ErrNotProjectMember),
		errors.Is(err, services.ErrUserAccessDenied):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrUsernameTaken):
		apierrors.RespondWithError(c, http.StatusConflict, apierrors.NewAPIError(apierrors.ErrCodeAlreadyExists, err.Error()))
	case errors.Is(err, services.ErrUserOwnsProjects):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrCannotRemoveOwner),
		errors.Is(err, services.ErrCannotDemoteOwner),
		errors.Is(err, services.ErrProjectHasRunningTimers),
		errors.Is(err, services.ErrCannotChangeOwnAdmin):
		apierrors.RespondWithError(c, http.StatusConflict, apierrors.NewAPIError(apierrors.ErrCodeInvalidOperation, err.Error()))
	case errors.Is(err, services.ErrAIServiceNotConfigured):
		apierrors.ServiceUnavailable(c, err.Error())
	default:
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		apierrors.InternalError(c, "")
	}
}

func matchesAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// currentUser returns the user resolved by LoadCurrentUser, answering 401
// when it is missing
func currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return nil, false
	}
	return user, true
}

// parseIDParam reads a positive numeric path parameter
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		apierrors.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// parseUintQuery reads an optional numeric query parameter
func parseUintQuery(c *gin.Context, name string) (*uint64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid "+name)
		return nil, false
	}
	return &v, true
}

// parseTimeQuery reads an optional RFC 3339 timestamp or YYYY-MM-DD date
func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, true
	}
	apierrors.BadRequest(c, "Invalid "+name+", expected RFC 3339 or YYYY-MM-DD")
	return nil, false
}
