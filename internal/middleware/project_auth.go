package middleware

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/timetracker-api/internal/constants"
	apierrors "github.com/yukikurage/timetracker-api/internal/errors"
	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/services"
)

// ProjectAccess answers project permission questions.
type ProjectAccess interface {
	GetProject(projectID uint64) (*models.Project, error)
	CanAccess(actor *models.User, projectID uint64) (bool, error)
	CanManage(actor *models.User, project *models.Project) (bool, error)
}

// RequireProjectAccess checks that the current user may see the project in
// the :id parameter and stores it in the context
func RequireProjectAccess(projects ProjectAccess) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid project ID")
			c.Abort()
			return
		}

		user, ok := GetCurrentUser(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		project, err := projects.GetProject(projectID)
		if err != nil {
			if errors.Is(err, services.ErrProjectNotFound) {
				apierrors.NotFound(c, "Project not found")
			} else {
				apierrors.InternalError(c, "Failed to load project")
			}
			c.Abort()
			return
		}

		allowed, err := projects.CanAccess(user, project.ID)
		if err != nil {
			apierrors.InternalError(c, "Failed to verify project access")
			c.Abort()
			return
		}
		if !allowed {
			// Return 404 instead of 403 to avoid leaking project existence
			apierrors.NotFound(c, "Project not found")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyProject, project)
		c.Next()
	}
}

// RequireProjectManager checks that the current user may change the project.
// It must run after RequireProjectAccess.
func RequireProjectManager(projects ProjectAccess) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetCurrentUser(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}
		project, ok := GetProject(c)
		if !ok {
			apierrors.Forbidden(c, "Project access required")
			c.Abort()
			return
		}

		allowed, err := projects.CanManage(user, project)
		if err != nil {
			apierrors.InternalError(c, "Failed to verify project permissions")
			c.Abort()
			return
		}
		if !allowed {
			apierrors.Forbidden(c, "Only project managers can perform this action")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetProject retrieves the project stored by RequireProjectAccess
func GetProject(c *gin.Context) (*models.Project, bool) {
	v, exists := c.Get(constants.ContextKeyProject)
	if !exists {
		return nil, false
	}
	project, ok := v.(*models.Project)
	return project, ok
}
