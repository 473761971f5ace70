package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/timetracker-api/internal/errors"
	"github.com/yukikurage/timetracker-api/internal/realtime"
)

type NotificationHandler struct {
	notifier *realtime.Notifier
}

func NewNotificationHandler(notifier *realtime.Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

// SendNotification pushes a system notification to one user, or to everyone
// connected when user_id is omitted
func (h *NotificationHandler) SendNotification(c *gin.Context) {
	type NotificationRequest struct {
		UserID  *uint64 `json:"user_id"`
		Title   string  `json:"title" binding:"required,max=255"`
		Message string  `json:"message" binding:"required,max=2000"`
		Level   string  `json:"level" binding:"omitempty,oneof=info warning error success"`
	}

	var req NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}
	if req.Level == "" {
		req.Level = "info"
	}

	delivered := h.notifier.SystemNotification(req.UserID, req.Title, req.Message, req.Level)
	c.JSON(http.StatusAccepted, gin.H{
		"message":   "Notification sent",
		"delivered": delivered,
	})
}
