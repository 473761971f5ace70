package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/timetracker-api/internal/constants"
	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrInvalidProductivityScore = errors.New("productivity score must be between 0 and 1")
	ErrNegativeCounter          = errors.New("activity counters must not be negative")
	ErrEmptyBatch               = errors.New("at least one activity log is required")
	ErrBatchTooLarge            = errors.New("too many activity logs in one batch")
	ErrForeignTimeEntry         = errors.New("time entry belongs to another user")
	ErrFilenameRequired         = errors.New("filename and file path are required")
	ErrActivityLogNotFound      = errors.New("activity log not found")
	ErrScreenshotNotFound       = errors.New("screenshot not found")
	ErrInvalidScreenshotStatus  = errors.New("invalid screenshot status")
	ErrInvalidScreenshotMeta    = errors.New("screenshot sizes and blur level must not be negative")
)

// ActivityService records desktop activity samples and screenshot metadata.
type ActivityService struct {
	activityRepo repository.ActivityRepository
	entryRepo    repository.TimeEntryRepository
	threshold    float64
	now          func() time.Time
}

// NewActivityService creates a new ActivityService. Logs scoring below
// threshold are flagged for a productivity alert.
func NewActivityService(activityRepo repository.ActivityRepository, entryRepo repository.TimeEntryRepository, threshold float64) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
		entryRepo:    entryRepo,
		threshold:    threshold,
		now:          time.Now,
	}
}

// ActivityInput is one activity sample.
type ActivityInput struct {
	Timestamp         *time.Time
	KeyboardStrokes   int
	MouseClicks       int
	MouseMoves        int
	ScrollEvents      int
	ActiveWindowTitle string
	ActiveApplication string
	URLVisited        string
	ProductivityScore *float64
	IsProductive      *bool
	TimeEntryID       *uint64
}

// Threshold returns the productivity alert threshold.
func (s *ActivityService) Threshold() float64 {
	return s.threshold
}

// NeedsAlert reports whether log scored below the alert threshold.
func (s *ActivityService) NeedsAlert(log *models.ActivityLog) bool {
	return log.ProductivityScore != nil && *log.ProductivityScore < s.threshold
}

// LogActivity stores one activity sample for userID.
func (s *ActivityService) LogActivity(userID uint64, input ActivityInput) (*models.ActivityLog, error) {
	log, err := s.buildLog(userID, input)
	if err != nil {
		return nil, err
	}
	if err := s.activityRepo.CreateLog(log); err != nil {
		return nil, fmt.Errorf("failed to save activity log: %w", err)
	}
	return log, nil
}

// LogActivityBatch stores several samples at once. Either all are stored or
// none.
func (s *ActivityService) LogActivityBatch(userID uint64, inputs []ActivityInput) ([]models.ActivityLog, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(inputs) > constants.MaxActivityBatch {
		return nil, ErrBatchTooLarge
	}

	logs := make([]models.ActivityLog, 0, len(inputs))
	for _, in := range inputs {
		log, err := s.buildLog(userID, in)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *log)
	}

	if err := s.activityRepo.CreateLogs(logs); err != nil {
		return nil, fmt.Errorf("failed to save activity logs: %w", err)
	}
	return logs, nil
}

// ListActivity returns activity logs matching filter.
func (s *ActivityService) ListActivity(filter repository.ActivityFilter) ([]models.ActivityLog, int64, error) {
	logs, total, err := s.activityRepo.ListLogs(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activity logs: %w", err)
	}
	return logs, total, nil
}

// ScreenshotInput is the metadata of one uploaded capture.
type ScreenshotInput struct {
	Filename      string
	FilePath      string
	FileSize      *int64
	Width         *int
	Height        *int
	IsBlurred     bool
	BlurLevel     int
	ThumbnailPath string
	CapturedAt    *time.Time
	TimeEntryID   *uint64
}

// RecordScreenshot stores screenshot metadata. Image bytes are never handled
// here.
func (s *ActivityService) RecordScreenshot(userID uint64, input ScreenshotInput) (*models.Screenshot, error) {
	if strings.TrimSpace(input.Filename) == "" || strings.TrimSpace(input.FilePath) == "" {
		return nil, ErrFilenameRequired
	}
	entry, err := s.checkTimeEntry(userID, input.TimeEntryID)
	if err != nil {
		return nil, err
	}
	if input.BlurLevel < 0 || negative(input.FileSize) || negativeInt(input.Width) || negativeInt(input.Height) {
		return nil, ErrInvalidScreenshotMeta
	}

	captured := s.now().UTC()
	if input.CapturedAt != nil {
		captured = input.CapturedAt.UTC()
	}

	shot := &models.Screenshot{
		Filename:      strings.TrimSpace(input.Filename),
		FilePath:      strings.TrimSpace(input.FilePath),
		FileSize:      input.FileSize,
		Width:         input.Width,
		Height:        input.Height,
		IsBlurred:     input.IsBlurred,
		BlurLevel:     input.BlurLevel,
		Status:        models.ScreenshotStatusUploaded,
		ThumbnailPath: input.ThumbnailPath,
		CapturedAt:    captured,
		UserID:        userID,
		TimeEntryID:   input.TimeEntryID,
		TimeEntry:     entry,
	}

	if err := s.activityRepo.CreateScreenshot(shot); err != nil {
		return nil, fmt.Errorf("failed to save screenshot: %w", err)
	}
	return shot, nil
}

// ListScreenshots returns screenshot metadata matching filter.
func (s *ActivityService) ListScreenshots(filter repository.ActivityFilter) ([]models.Screenshot, int64, error) {
	shots, total, err := s.activityRepo.ListScreenshots(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list screenshots: %w", err)
	}
	return shots, total, nil
}

func (s *ActivityService) buildLog(userID uint64, in ActivityInput) (*models.ActivityLog, error) {
	if in.ProductivityScore != nil && (*in.ProductivityScore < 0 || *in.ProductivityScore > 1) {
		return nil, ErrInvalidProductivityScore
	}
	if in.KeyboardStrokes < 0 || in.MouseClicks < 0 || in.MouseMoves < 0 || in.ScrollEvents < 0 {
		return nil, ErrNegativeCounter
	}
	if _, err := s.checkTimeEntry(userID, in.TimeEntryID); err != nil {
		return nil, err
	}

	ts := s.now().UTC()
	if in.Timestamp != nil {
		ts = in.Timestamp.UTC()
	}

	productive := true
	if in.IsProductive != nil {
		productive = *in.IsProductive
	} else if in.ProductivityScore != nil {
		productive = *in.ProductivityScore >= s.threshold
	}

	return &models.ActivityLog{
		Timestamp:         ts,
		KeyboardStrokes:   in.KeyboardStrokes,
		MouseClicks:       in.MouseClicks,
		MouseMoves:        in.MouseMoves,
		ScrollEvents:      in.ScrollEvents,
		ActiveWindowTitle: in.ActiveWindowTitle,
		ActiveApplication: in.ActiveApplication,
		URLVisited:        in.URLVisited,
		ProductivityScore: in.ProductivityScore,
		IsProductive:      productive,
		UserID:            userID,
		TimeEntryID:       in.TimeEntryID,
	}, nil
}

// checkTimeEntry loads the referenced entry and makes sure userID owns it.
func (s *ActivityService) checkTimeEntry(userID uint64, entryID *uint64) (*models.TimeEntry, error) {
	if entryID == nil {
		return nil, nil
	}
	entry, err := s.entryRepo.FindByID(*entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimeEntryNotFound
		}
		return nil, fmt.Errorf("failed to find time entry: %w", err)
	}
	if entry.UserID != userID {
		return nil, ErrForeignTimeEntry
	}
	return entry, nil
}

// GetActivityLog returns one activity log.
func (s *ActivityService) GetActivityLog(id uint64) (*models.ActivityLog, error) {
	log, err := s.activityRepo.FindLog(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActivityLogNotFound
		}
		return nil, fmt.Errorf("failed to find activity log: %w", err)
	}
	return log, nil
}

// DeleteActivityLog removes an activity log.
func (s *ActivityService) DeleteActivityLog(id uint64) error {
	if _, err := s.GetActivityLog(id); err != nil {
		return err
	}
	if err := s.activityRepo.DeleteLog(id); err != nil {
		return fmt.Errorf("failed to delete activity log: %w", err)
	}
	return nil
}

// GetScreenshot returns the metadata of a capture that has not been deleted.
func (s *ActivityService) GetScreenshot(id uint64) (*models.Screenshot, error) {
	shot, err := s.activityRepo.FindScreenshot(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScreenshotNotFound
		}
		return nil, fmt.Errorf("failed to find screenshot: %w", err)
	}
	return shot, nil
}

// UpdateScreenshotInput is a partial screenshot metadata update. Processing
// pipelines use it to report blur and thumbnail results.
type UpdateScreenshotInput struct {
	Status        *models.ScreenshotStatus
	IsBlurred     *bool
	BlurLevel     *int
	ThumbnailPath *string
	FileSize      *int64
	Width         *int
	Height        *int
}

// UpdateScreenshot applies a partial metadata update. Setting the status to
// deleted is the same as DeleteScreenshot.
func (s *ActivityService) UpdateScreenshot(id uint64, input UpdateScreenshotInput) (*models.Screenshot, error) {
	if input.Status != nil && !input.Status.Valid() {
		return nil, ErrInvalidScreenshotStatus
	}
	if (input.BlurLevel != nil && *input.BlurLevel < 0) ||
		negative(input.FileSize) || negativeInt(input.Width) || negativeInt(input.Height) {
		return nil, ErrInvalidScreenshotMeta
	}

	shot, err := s.GetScreenshot(id)
	if err != nil {
		return nil, err
	}
	if input.Status != nil {
		shot.Status = *input.Status
	}
	if input.IsBlurred != nil {
		shot.IsBlurred = *input.IsBlurred
	}
	if input.BlurLevel != nil {
		shot.BlurLevel = *input.BlurLevel
	}
	if input.ThumbnailPath != nil {
		shot.ThumbnailPath = strings.TrimSpace(*input.ThumbnailPath)
	}
	if input.FileSize != nil {
		shot.FileSize = input.FileSize
	}
	if input.Width != nil {
		shot.Width = input.Width
	}
	if input.Height != nil {
		shot.Height = input.Height
	}

	if err := s.activityRepo.UpdateScreenshot(shot); err != nil {
		return nil, fmt.Errorf("failed to update screenshot: %w", err)
	}
	return shot, nil
}

// DeleteScreenshot marks a capture deleted. The row stays so storage cleanup
// can still find the file paths.
func (s *ActivityService) DeleteScreenshot(id uint64) error {
	deleted := models.ScreenshotStatusDeleted
	_, err := s.UpdateScreenshot(id, UpdateScreenshotInput{Status: &deleted})
	return err
}

func negative(v *int64) bool {
	return v != nil && *v < 0
}

func negativeInt(v *int) bool {
	return v != nil && *v < 0
}
