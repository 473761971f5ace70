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

// TimeEntryFinder loads time entries.
type TimeEntryFinder interface {
	GetTimeEntry(entryID uint64) (*models.TimeEntry, error)
}

// RequireTimeEntryAccess lets the entry owner and privileged users through and
// stores the entry in the context.
func RequireTimeEntryAccess(entries TimeEntryFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		entryID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid time entry ID")
			c.Abort()
			return
		}

		user, ok := GetCurrentUser(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		entry, err := entries.GetTimeEntry(entryID)
		if err != nil {
			if errors.Is(err, services.ErrTimeEntryNotFound) {
				apierrors.NotFound(c, "Time entry not found")
			} else {
				apierrors.InternalError(c, "Failed to load time entry")
			}
			c.Abort()
			return
		}

		if entry.UserID != user.ID && !user.IsPrivileged() {
			// Same answer as a missing entry so ids of other users stay hidden
			apierrors.NotFound(c, "Time entry not found")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyTimeEntry, entry)
		c.Next()
	}
}

// GetTimeEntry retrieves the entry stored by RequireTimeEntryAccess
func GetTimeEntry(c *gin.Context) (*models.TimeEntry, bool) {
	v, exists := c.Get(constants.ContextKeyTimeEntry)
	if !exists {
		return nil, false
	}
	entry, ok := v.(*models.TimeEntry)
	return entry, ok
}
