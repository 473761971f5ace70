package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yukikurage/timetracker-api/internal/events"
	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/realtime"
	"github.com/yukikurage/timetracker-api/internal/services"
	"go.uber.org/zap"
)

// Client frame actions
const (
	actionSubscribeProject   = "subscribe_project"
	actionUnsubscribeProject = "unsubscribe_project"
	actionPing               = "ping"
)

// ProjectAccessChecker decides whether a user may follow a project's updates.
type ProjectAccessChecker interface {
	CanAccess(actor *models.User, projectID uint64) (bool, error)
}

type clientFrame struct {
	Action    string `json:"action"`
	ProjectID uint64 `json:"project_id"`
}

// WebSocketHandler upgrades authenticated requests and attaches them to the
// Hub
type WebSocketHandler struct {
	hub      *realtime.Hub
	projects ProjectAccessChecker
	upgrader *websocket.Upgrader
	opts     realtime.WSOptions
	log      *zap.Logger
}

func NewWebSocketHandler(hub *realtime.Hub, projects ProjectAccessChecker, upgrader *websocket.Upgrader, opts realtime.WSOptions, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		projects: projects,
		upgrader: upgrader,
		opts:     opts,
		log:      log,
	}
}

// Connect serves GET /api/ws. It blocks for the lifetime of the socket.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already answered the request
		h.log.Debug("websocket upgrade failed", zap.Uint64("user_id", user.ID), zap.Error(err))
		return
	}

	conn := realtime.NewWSConn(ws, h.opts)
	defer conn.Close()

	if err := h.hub.Connect(conn, user.ID); err != nil {
		h.log.Warn("websocket registration failed",
			zap.String("conn_id", conn.ID()),
			zap.Uint64("user_id", user.ID),
			zap.Error(err))
		return
	}
	defer h.hub.Disconnect(conn)

	err = conn.Run(func(frame []byte) {
		h.handleFrame(conn, user, frame)
	})
	if err != nil {
		h.log.Debug("websocket closed",
			zap.String("conn_id", conn.ID()),
			zap.Uint64("user_id", user.ID),
			zap.Error(err))
	}
}

func (h *WebSocketHandler) handleFrame(conn realtime.Conn, user *models.User, frame []byte) {
	var msg clientFrame
	if err := json.Unmarshal(frame, &msg); err != nil {
		h.reject(conn, "INVALID_MESSAGE", "Message must be a JSON object")
		return
	}

	switch msg.Action {
	case actionPing:
		h.hub.SendToConn(conn, events.New(events.Pong{}, nil))
	case actionSubscribeProject:
		if msg.ProjectID == 0 {
			h.reject(conn, "INVALID_MESSAGE", "project_id is required")
			return
		}
		allowed, err := h.projects.CanAccess(user, msg.ProjectID)
		if err != nil && !errors.Is(err, services.ErrProjectNotFound) {
			h.log.Error("project access check failed",
				zap.Uint64("user_id", user.ID),
				zap.Uint64("project_id", msg.ProjectID),
				zap.Error(err))
			h.reject(conn, "INTERNAL_ERROR", "Could not verify project access")
			return
		}
		if !allowed {
			h.reject(conn, "FORBIDDEN", "No access to this project")
			return
		}
		if err := h.hub.SubscribeProject(conn, msg.ProjectID); err != nil {
			h.log.Debug("subscribe on unregistered connection", zap.String("conn_id", conn.ID()), zap.Error(err))
		}
	case actionUnsubscribeProject:
		h.hub.UnsubscribeProject(conn, msg.ProjectID)
	default:
		h.reject(conn, "UNKNOWN_ACTION", "Unknown action")
	}
}

func (h *WebSocketHandler) reject(conn realtime.Conn, code, message string) {
	h.hub.SendToConn(conn, events.New(events.Error{Code: code, Message: message}, nil))
}

// Stats reports live connection counts
func (h *WebSocketHandler) Stats(c *gin.Context) {
	users := h.hub.ConnectedUsers()
	c.JSON(http.StatusOK, gin.H{
		"total_connections": h.hub.TotalConnections(),
		"connected_users":   users,
		"user_count":        len(users),
	})
}
