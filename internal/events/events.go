// Package events defines the realtime event kinds and the wire envelope
// {"type", "data", "timestamp"} shared by every notification.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type names an event kind on the wire.
type Type string

const (
	TypeConnection         Type = "connection"
	TypeTimeEntryStarted   Type = "time_entry_started"
	TypeTimeEntryStopped   Type = "time_entry_stopped"
	TypeActivityUpdate     Type = "activity_update"
	TypeScreenshotTaken    Type = "screenshot_taken"
	TypeProjectUpdate      Type = "project_update"
	TypeTaskUpdate         Type = "task_update"
	TypeUserStatusChange   Type = "user_status_change"
	TypeSystemNotification Type = "system_notification"
	TypeProductivityAlert  Type = "productivity_alert"
	TypePong               Type = "pong"
	TypeError              Type = "error"
)

// Payload is implemented by every typed event body.
type Payload interface {
	EventType() Type
}

// Event is the transport envelope. Timestamp marshals as null when unset.
type Event struct {
	Type      Type       `json:"type"`
	Data      Payload    `json:"data"`
	Timestamp *time.Time `json:"timestamp"`
}

// New wraps a payload in an envelope.
func New(p Payload, ts *time.Time) Event {
	if ts != nil {
		utc := ts.UTC()
		ts = &utc
	}
	return Event{Type: p.EventType(), Data: p, Timestamp: ts}
}

// Encode serializes the envelope for a text frame.
func (e Event) Encode() ([]byte, error) {
	if e.Data == nil {
		return nil, fmt.Errorf("event %q has no payload", e.Type)
	}
	return json.Marshal(e)
}

// Connected acknowledges a freshly registered connection.
type Connected struct {
	UserID       uint64 `json:"user_id"`
	ConnectionID string `json:"connection_id"`
	Message      string `json:"message"`
}

func (Connected) EventType() Type { return TypeConnection }

type TimeEntryStarted struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	ProjectID uint64    `json:"project_id"`
	TaskID    *uint64   `json:"task_id"`
	StartTime time.Time `json:"start_time"`
}

func (TimeEntryStarted) EventType() Type { return TypeTimeEntryStarted }

type TimeEntryStopped struct {
	ID        uint64     `json:"id"`
	UserID    uint64     `json:"user_id"`
	ProjectID uint64     `json:"project_id"`
	TaskID    *uint64    `json:"task_id"`
	EndTime   *time.Time `json:"end_time"`
	Duration  *int64     `json:"duration"`
	// AutoStopped is set when a new timer start closed this entry.
	AutoStopped bool `json:"auto_stopped"`
}

func (TimeEntryStopped) EventType() Type { return TypeTimeEntryStopped }

type ActivityUpdate struct {
	ID                *uint64   `json:"id,omitempty"`
	BatchCount        int       `json:"batch_count,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	IsProductive      *bool     `json:"is_productive,omitempty"`
	ProductivityScore *float64  `json:"productivity_score,omitempty"`
}

func (ActivityUpdate) EventType() Type { return TypeActivityUpdate }

type ScreenshotTaken struct {
	ID          uint64    `json:"id"`
	TimeEntryID *uint64   `json:"time_entry_id"`
	ProjectID   *uint64   `json:"project_id"`
	Filename    string    `json:"filename"`
	IsBlurred   bool      `json:"is_blurred"`
	CapturedAt  time.Time `json:"captured_at"`
}

func (ScreenshotTaken) EventType() Type { return TypeScreenshotTaken }

// ProjectAction says what happened to a project.
type ProjectAction string

const (
	ProjectUpdated       ProjectAction = "updated"
	ProjectMemberAdded   ProjectAction = "member_added"
	ProjectMemberRemoved ProjectAction = "member_removed"
	ProjectMemberUpdated ProjectAction = "member_updated"
	ProjectDeleted       ProjectAction = "deleted"
)

type ProjectUpdate struct {
	ProjectID uint64        `json:"project_id"`
	Action    ProjectAction `json:"action"`
	Name      string        `json:"name,omitempty"`
	Status    string        `json:"status,omitempty"`
	UserID    *uint64       `json:"user_id,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (ProjectUpdate) EventType() Type { return TypeProjectUpdate }

// TaskAction says what happened to a task.
type TaskAction string

const (
	TaskCreated TaskAction = "created"
	TaskUpdated TaskAction = "updated"
	TaskDeleted TaskAction = "deleted"
)

type TaskUpdate struct {
	TaskID     uint64     `json:"task_id"`
	ProjectID  uint64     `json:"project_id"`
	Action     TaskAction `json:"action"`
	Title      string     `json:"title,omitempty"`
	Status     string     `json:"status,omitempty"`
	AssigneeID *uint64    `json:"assignee_id,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (TaskUpdate) EventType() Type { return TypeTaskUpdate }

// UserStatus is the presence state announced by user_status_change.
type UserStatus string

const (
	UserOnline  UserStatus = "online"
	UserOffline UserStatus = "offline"
)

type UserStatusChange struct {
	UserID uint64     `json:"user_id"`
	Status UserStatus `json:"status"`
}

func (UserStatusChange) EventType() Type { return TypeUserStatusChange }

type SystemNotification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

func (SystemNotification) EventType() Type { return TypeSystemNotification }

type ProductivityAlert struct {
	ActivityLogID     uint64    `json:"activity_log_id"`
	ProductivityScore float64   `json:"productivity_score"`
	Threshold         float64   `json:"threshold"`
	Message           string    `json:"message"`
	Timestamp         time.Time `json:"timestamp"`
}

func (ProductivityAlert) EventType() Type { return TypeProductivityAlert }

type Pong struct{}

func (Pong) EventType() Type { return TypePong }

// Error reports a rejected client frame back to the sending connection.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (Error) EventType() Type { return TypeError }
