package realtime

import (
	"time"

	"github.com/yukikurage/timetracker-api/internal/events"
	"github.com/yukikurage/timetracker-api/internal/models"
)

// Notifier turns domain changes into events and routes them through the hub.
// Every method is fire-and-forget: delivery failures are absorbed by the hub.
type Notifier struct {
	hub *Hub
	now func() time.Time
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub, now: time.Now}
}

// Hub exposes the underlying hub for transport wiring.
func (n *Notifier) Hub() *Hub { return n.hub }

func (n *Notifier) TimeEntryStarted(e *models.TimeEntry) {
	start := e.StartTime
	n.hub.SendToUser(e.UserID, events.New(events.TimeEntryStarted{
		ID:        e.ID,
		UserID:    e.UserID,
		ProjectID: e.ProjectID,
		TaskID:    e.TaskID,
		StartTime: start.UTC(),
	}, &start))
}

// TimeEntryStopped announces a stop. autoStopped marks entries closed by a
// subsequent timer start rather than an explicit stop.
func (n *Notifier) TimeEntryStopped(e *models.TimeEntry, autoStopped bool) {
	var end *time.Time
	if e.EndTime != nil {
		t := e.EndTime.UTC()
		end = &t
	}
	n.hub.SendToUser(e.UserID, events.New(events.TimeEntryStopped{
		ID:          e.ID,
		UserID:      e.UserID,
		ProjectID:   e.ProjectID,
		TaskID:      e.TaskID,
		EndTime:     end,
		Duration:    e.Duration,
		AutoStopped: autoStopped,
	}, end))
}

func (n *Notifier) ActivityLogged(log *models.ActivityLog) {
	id := log.ID
	productive := log.IsProductive
	ts := log.Timestamp
	n.hub.SendToUser(log.UserID, events.New(events.ActivityUpdate{
		ID:                &id,
		Timestamp:         ts.UTC(),
		IsProductive:      &productive,
		ProductivityScore: log.ProductivityScore,
	}, &ts))
}

// ActivityBatchLogged sends one summary event for a batch upload.
func (n *Notifier) ActivityBatchLogged(userID uint64, count int) {
	ts := n.now()
	n.hub.SendToUser(userID, events.New(events.ActivityUpdate{
		BatchCount: count,
		Timestamp:  ts.UTC(),
	}, &ts))
}

func (n *Notifier) ScreenshotTaken(s *models.Screenshot) {
	ts := s.CapturedAt
	var projectID *uint64
	if s.TimeEntry != nil {
		id := s.TimeEntry.ProjectID
		projectID = &id
	}
	n.hub.SendToUser(s.UserID, events.New(events.ScreenshotTaken{
		ID:          s.ID,
		TimeEntryID: s.TimeEntryID,
		ProjectID:   projectID,
		Filename:    s.Filename,
		IsBlurred:   s.IsBlurred,
		CapturedAt:  ts.UTC(),
	}, &ts))
}

func (n *Notifier) ProjectUpdated(p *models.Project, action events.ProjectAction, userID *uint64) {
	ts := p.UpdatedAt
	if ts.IsZero() || action == events.ProjectDeleted {
		ts = n.now()
	}
	n.hub.SendToProject(p.ID, events.New(events.ProjectUpdate{
		ProjectID: p.ID,
		Action:    action,
		Name:      p.Name,
		Status:    string(p.Status),
		UserID:    userID,
		UpdatedAt: ts.UTC(),
	}, &ts))
}

func (n *Notifier) TaskChanged(t *models.Task, action events.TaskAction) {
	ts := t.UpdatedAt
	if ts.IsZero() || action == events.TaskDeleted {
		ts = n.now()
	}
	n.hub.SendToProject(t.ProjectID, events.New(events.TaskUpdate{
		TaskID:     t.ID,
		ProjectID:  t.ProjectID,
		Action:     action,
		Title:      t.Title,
		Status:     string(t.Status),
		AssigneeID: t.AssigneeID,
		UpdatedAt:  ts.UTC(),
	}, &ts))
}

// UserStatusChanged broadcasts presence. It carries no timestamp.
func (n *Notifier) UserStatusChanged(userID uint64, online bool) {
	status := events.UserOffline
	if online {
		status = events.UserOnline
	}
	n.hub.Broadcast(events.New(events.UserStatusChange{UserID: userID, Status: status}, nil))
}

// SystemNotification targets one user, or everyone when userID is nil. It
// returns the number of connections reached.
func (n *Notifier) SystemNotification(userID *uint64, title, message, level string) int {
	ts := n.now()
	ev := events.New(events.SystemNotification{
		Title:     title,
		Message:   message,
		Level:     level,
		CreatedAt: ts.UTC(),
	}, &ts)
	if userID == nil {
		return n.hub.Broadcast(ev)
	}
	return n.hub.SendToUser(*userID, ev)
}

func (n *Notifier) ProductivityAlert(log *models.ActivityLog, threshold float64) {
	if log.ProductivityScore == nil {
		return
	}
	ts := log.Timestamp
	n.hub.SendToUser(log.UserID, events.New(events.ProductivityAlert{
		ActivityLogID:     log.ID,
		ProductivityScore: *log.ProductivityScore,
		Threshold:         threshold,
		Message:           "Productivity dropped below the configured threshold",
		Timestamp:         ts.UTC(),
	}, &ts))
}
