package services

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/repository"
	"github.com/yukikurage/timetracker-api/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTimeEntryNotFound       = errors.New("time entry not found")
	ErrNoActiveTimer           = errors.New("no active timer")
	ErrTimerNotRunning         = errors.New("time entry is not running")
	ErrTimerRunning            = errors.New("time entry is still running; stop it first")
	ErrInvalidStatusTransition = errors.New("a stopped time entry cannot be resumed")
	ErrInvalidTimeEntryStatus  = errors.New("invalid time entry status")
	ErrInvalidTimeRange        = errors.New("end time must not be before start time")
	ErrInvalidDuration         = errors.New("duration must be between 0 and the longest representable span")
	ErrMissingEndTime          = errors.New("end_time or duration is required for a finished entry")
	ErrRunningEntryHasEnd      = errors.New("a running entry cannot have an end time or duration")
	ErrTaskProjectMismatch     = errors.New("task does not belong to the project")
)

// IsInvalidState reports whether err means the operation does not fit the
// entry's current status.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrTimerNotRunning) ||
		errors.Is(err, ErrTimerRunning) ||
		errors.Is(err, ErrInvalidStatusTransition)
}

// TimerService owns the time entry lifecycle. All mutations of one user's
// entries are serialized so that user never has more than one running entry.
type TimerService struct {
	entries  repository.TimeEntryRepository
	projects repository.ProjectRepository
	tasks    repository.TaskRepository
	log      *zap.Logger
	now      func() time.Time

	userLocks sync.Map // uint64 -> *sync.Mutex
}

// NewTimerService creates a new TimerService.
func NewTimerService(
	entries repository.TimeEntryRepository,
	projects repository.ProjectRepository,
	tasks repository.TaskRepository,
	log *zap.Logger,
) *TimerService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TimerService{
		entries:  entries,
		projects: projects,
		tasks:    tasks,
		log:      log,
		now:      time.Now,
	}
}

// StartResult is the outcome of starting a timer. AutoStopped holds entries
// that were closed to make room for the new one.
type StartResult struct {
	Entry       *models.TimeEntry
	AutoStopped []models.TimeEntry
}

// StartTimerInput represents input for starting a timer.
type StartTimerInput struct {
	UserID      uint64
	ProjectID   uint64
	TaskID      *uint64
	Description string
	IsBillable  *bool
	HourlyRate  *int64
}

// StartTimer stops the user's running entry, if any, and starts a new one at
// the current instant.
func (s *TimerService) StartTimer(input StartTimerInput) (*StartResult, error) {
	if err := s.validateTargets(input.ProjectID, input.TaskID); err != nil {
		return nil, err
	}

	unlock := s.lockUser(input.UserID)
	defer unlock()

	result := &StartResult{}
	err := s.entries.Transaction(func(tx repository.TimeEntryRepository) error {
		if err := tx.LockUser(input.UserID); err != nil {
			return mapUserErr(err)
		}

		now := s.now().UTC()
		stopped, err := s.autoStopPrevious(tx, input.UserID, now)
		if err != nil {
			return err
		}
		result.AutoStopped = stopped

		entry := &models.TimeEntry{
			Description: utils.SanitizeText(input.Description),
			StartTime:   now,
			Status:      models.TimeEntryStatusRunning,
			IsBillable:  boolOr(input.IsBillable, true),
			HourlyRate:  input.HourlyRate,
			UserID:      input.UserID,
			ProjectID:   input.ProjectID,
			TaskID:      input.TaskID,
		}
		if err := tx.Create(entry); err != nil {
			return fmt.Errorf("failed to create time entry: %w", err)
		}
		result.Entry = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("timer started",
		zap.Uint64("user_id", input.UserID),
		zap.Uint64("time_entry_id", result.Entry.ID),
		zap.Int("auto_stopped", len(result.AutoStopped)))

	result.Entry = s.reload(result.Entry)
	return result, nil
}

// autoStopPrevious closes every running entry of the user at now. It must run
// inside the user's lock and transaction.
func (s *TimerService) autoStopPrevious(tx repository.TimeEntryRepository, userID uint64, now time.Time) ([]models.TimeEntry, error) {
	running := models.TimeEntryStatusRunning
	active, _, err := tx.List(repository.TimeEntryFilter{UserID: &userID, Status: &running})
	if err != nil {
		return nil, fmt.Errorf("failed to load running entries: %w", err)
	}

	stopped := make([]models.TimeEntry, 0, len(active))
	for i := range active {
		entry := active[i]
		stopEntry(&entry, now, nil)
		if err := tx.Update(&entry); err != nil {
			return nil, fmt.Errorf("failed to stop time entry %d: %w", entry.ID, err)
		}
		stopped = append(stopped, entry)
	}
	return stopped, nil
}

// StopTimer stops a running entry. A supplied description replaces the
// current one.
func (s *TimerService) StopTimer(entryID uint64, description *string) (*models.TimeEntry, error) {
	owner, err := s.ownerOf(entryID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockUser(owner)
	defer unlock()

	var entry *models.TimeEntry
	err = s.entries.Transaction(func(tx repository.TimeEntryRepository) error {
		e, err := tx.FindByID(entryID)
		if err != nil {
			return mapTimeEntryErr(err)
		}
		if !e.IsRunning() {
			return ErrTimerNotRunning
		}
		stopEntry(e, s.now().UTC(), description)
		if err := tx.Update(e); err != nil {
			return fmt.Errorf("failed to stop time entry: %w", err)
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("timer stopped",
		zap.Uint64("user_id", owner),
		zap.Uint64("time_entry_id", entry.ID),
		zap.Int64("duration", *entry.Duration))

	return s.reload(entry), nil
}

// StopActiveTimer stops whichever entry the user has running.
func (s *TimerService) StopActiveTimer(userID uint64, description *string) (*models.TimeEntry, error) {
	active, err := s.entries.FindActiveByUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveTimer
		}
		return nil, fmt.Errorf("failed to find active timer: %w", err)
	}
	return s.StopTimer(active.ID, description)
}

// GetActiveEntry returns the user's running entry, or nil when there is none.
func (s *TimerService) GetActiveEntry(userID uint64) (*models.TimeEntry, error) {
	active, err := s.entries.FindActiveByUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active timer: %w", err)
	}
	return s.reload(active), nil
}

// UpdateTimeEntryInput represents a partial update. Nil fields are left as is.
type UpdateTimeEntryInput struct {
	Description     *string
	ProjectID       *uint64
	TaskID          *uint64
	ClearTask       bool
	StartTime       *time.Time
	EndTime         *time.Time
	Duration        *int64
	Status          *models.TimeEntryStatus
	IsBillable      *bool
	HourlyRate      *int64
	ClearHourlyRate bool
}

// UpdateTimeEntry applies a partial update. When the start or end changes and
// both are set afterwards, the duration is recomputed and any supplied
// duration is ignored.
func (s *TimerService) UpdateTimeEntry(entryID uint64, input UpdateTimeEntryInput) (*models.TimeEntry, error) {
	if input.Status != nil && !input.Status.Valid() {
		return nil, ErrInvalidTimeEntryStatus
	}
	if input.Duration != nil && !validDuration(*input.Duration) {
		return nil, ErrInvalidDuration
	}

	current, err := s.entries.FindByID(entryID)
	if err != nil {
		return nil, mapTimeEntryErr(err)
	}
	if input.ProjectID != nil || input.TaskID != nil || input.ClearTask {
		projectID, taskID := retarget(current, input)
		if err := s.validateTargets(projectID, taskID); err != nil {
			return nil, err
		}
	}

	unlock := s.lockUser(current.UserID)
	defer unlock()

	var entry *models.TimeEntry
	err = s.entries.Transaction(func(tx repository.TimeEntryRepository) error {
		e, err := tx.FindByID(entryID)
		if err != nil {
			return mapTimeEntryErr(err)
		}
		if err := applyUpdate(e, input); err != nil {
			return err
		}
		if err := tx.Update(e); err != nil {
			return fmt.Errorf("failed to update time entry: %w", err)
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.reload(entry), nil
}

// retarget resolves the project and task an update points the entry at.
func retarget(e *models.TimeEntry, input UpdateTimeEntryInput) (uint64, *uint64) {
	projectID := e.ProjectID
	if input.ProjectID != nil {
		projectID = *input.ProjectID
	}
	taskID := e.TaskID
	if input.ClearTask {
		taskID = nil
	} else if input.TaskID != nil {
		taskID = input.TaskID
	}
	return projectID, taskID
}

func applyUpdate(e *models.TimeEntry, input UpdateTimeEntryInput) error {
	if e.IsRunning() {
		if input.EndTime != nil || input.Duration != nil {
			return ErrTimerRunning
		}
		if input.Status != nil && *input.Status != models.TimeEntryStatusRunning {
			return ErrTimerRunning
		}
	} else if input.Status != nil && *input.Status == models.TimeEntryStatusRunning {
		return ErrInvalidStatusTransition
	}

	e.ProjectID, e.TaskID = retarget(e, input)

	if input.Description != nil {
		e.Description = utils.SanitizeText(*input.Description)
	}
	if input.IsBillable != nil {
		e.IsBillable = *input.IsBillable
	}
	if input.ClearHourlyRate {
		e.HourlyRate = nil
	} else if input.HourlyRate != nil {
		e.HourlyRate = input.HourlyRate
	}
	if input.Status != nil {
		e.Status = *input.Status
	}

	timesChanged := false
	if input.StartTime != nil {
		e.StartTime = input.StartTime.UTC()
		timesChanged = true
	}
	if input.EndTime != nil {
		end := input.EndTime.UTC()
		e.EndTime = &end
		timesChanged = true
	}

	if timesChanged && e.EndTime != nil {
		if e.EndTime.Before(e.StartTime) {
			return ErrInvalidTimeRange
		}
		d := computeDuration(e.StartTime, *e.EndTime)
		e.Duration = &d
	} else if input.Duration != nil {
		d := *input.Duration
		e.Duration = &d
	}
	return nil
}

// CreateTimeEntryInput represents input for creating an entry directly.
// An empty Status means running when no end or duration is given, stopped
// otherwise.
type CreateTimeEntryInput struct {
	UserID      uint64
	ProjectID   uint64
	TaskID      *uint64
	Description string
	StartTime   *time.Time
	EndTime     *time.Time
	Duration    *int64
	Status      models.TimeEntryStatus
	IsBillable  *bool
	HourlyRate  *int64
}

// CreateTimeEntry records an entry with caller supplied times. Creating a
// running entry stops the user's current timer first, like StartTimer.
func (s *TimerService) CreateTimeEntry(input CreateTimeEntryInput) (*StartResult, error) {
	status := input.Status
	if status == "" {
		status = models.TimeEntryStatusStopped
		if input.EndTime == nil && input.Duration == nil {
			status = models.TimeEntryStatusRunning
		}
	}
	if !status.Valid() {
		return nil, ErrInvalidTimeEntryStatus
	}
	if input.Duration != nil && !validDuration(*input.Duration) {
		return nil, ErrInvalidDuration
	}

	start := s.now().UTC()
	if input.StartTime != nil {
		start = input.StartTime.UTC()
	}

	entry := &models.TimeEntry{
		Description: utils.SanitizeText(input.Description),
		StartTime:   start,
		Status:      status,
		IsBillable:  boolOr(input.IsBillable, true),
		HourlyRate:  input.HourlyRate,
		UserID:      input.UserID,
		ProjectID:   input.ProjectID,
		TaskID:      input.TaskID,
	}

	if status == models.TimeEntryStatusRunning {
		if input.EndTime != nil || input.Duration != nil {
			return nil, ErrRunningEntryHasEnd
		}
	} else {
		switch {
		case input.EndTime != nil:
			end := input.EndTime.UTC()
			if end.Before(start) {
				return nil, ErrInvalidTimeRange
			}
			d := computeDuration(start, end)
			entry.EndTime = &end
			entry.Duration = &d
		case input.Duration != nil:
			d := *input.Duration
			end := start.Add(time.Duration(d) * time.Second)
			entry.EndTime = &end
			entry.Duration = &d
		default:
			return nil, ErrMissingEndTime
		}
	}

	if err := s.validateTargets(input.ProjectID, input.TaskID); err != nil {
		return nil, err
	}

	unlock := s.lockUser(input.UserID)
	defer unlock()

	result := &StartResult{}
	err := s.entries.Transaction(func(tx repository.TimeEntryRepository) error {
		if err := tx.LockUser(input.UserID); err != nil {
			return mapUserErr(err)
		}
		if entry.IsRunning() {
			stopped, err := s.autoStopPrevious(tx, input.UserID, s.now().UTC())
			if err != nil {
				return err
			}
			result.AutoStopped = stopped
		}
		if err := tx.Create(entry); err != nil {
			return fmt.Errorf("failed to create time entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Entry = s.reload(entry)
	return result, nil
}

// GetTimeEntry returns an entry with its project and task loaded.
func (s *TimerService) GetTimeEntry(entryID uint64) (*models.TimeEntry, error) {
	entry, err := s.entries.FindByID(entryID, "Project", "Task")
	if err != nil {
		return nil, mapTimeEntryErr(err)
	}
	return entry, nil
}

// ListTimeEntries returns entries matching the filter.
func (s *TimerService) ListTimeEntries(filter repository.TimeEntryFilter) ([]models.TimeEntry, int64, error) {
	entries, total, err := s.entries.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list time entries: %w", err)
	}
	return entries, total, nil
}

// DeleteTimeEntry soft deletes an entry.
func (s *TimerService) DeleteTimeEntry(entryID uint64) error {
	owner, err := s.ownerOf(entryID)
	if err != nil {
		return err
	}

	unlock := s.lockUser(owner)
	defer unlock()

	if err := s.entries.Delete(entryID); err != nil {
		return fmt.Errorf("failed to delete time entry: %w", err)
	}
	return nil
}

func (s *TimerService) lockUser(userID uint64) func() {
	v, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *TimerService) ownerOf(entryID uint64) (uint64, error) {
	e, err := s.entries.FindByID(entryID)
	if err != nil {
		return 0, mapTimeEntryErr(err)
	}
	return e.UserID, nil
}

func (s *TimerService) validateTargets(projectID uint64, taskID *uint64) error {
	if _, err := s.projects.FindByID(projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to find project: %w", err)
	}
	if taskID == nil {
		return nil
	}
	task, err := s.tasks.FindByID(*taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to find task: %w", err)
	}
	if task.ProjectID != projectID {
		return ErrTaskProjectMismatch
	}
	return nil
}

// reload fetches relations for the response. A failed reload falls back to
// the entry as written.
func (s *TimerService) reload(entry *models.TimeEntry) *models.TimeEntry {
	full, err := s.entries.FindByID(entry.ID, "Project", "Task")
	if err != nil {
		s.log.Warn("failed to reload time entry", zap.Uint64("time_entry_id", entry.ID), zap.Error(err))
		return entry
	}
	return full
}

// stopEntry closes e at end. Duration is whole seconds and never negative.
func stopEntry(e *models.TimeEntry, end time.Time, description *string) {
	d := computeDuration(e.StartTime, end)
	e.EndTime = &end
	e.Duration = &d
	e.Status = models.TimeEntryStatusStopped
	if description != nil {
		e.Description = utils.SanitizeText(*description)
	}
}

// maxDurationSeconds is the longest span time.Duration can hold.
const maxDurationSeconds = int64(math.MaxInt64 / int64(time.Second))

func validDuration(secs int64) bool {
	return secs >= 0 && secs <= maxDurationSeconds
}

func computeDuration(start, end time.Time) int64 {
	secs := int64(end.Sub(start).Round(time.Second) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

func mapTimeEntryErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTimeEntryNotFound
	}
	return fmt.Errorf("failed to find time entry: %w", err)
}

func mapUserErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("failed to lock user: %w", err)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
