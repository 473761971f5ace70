package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/timetracker-api/internal/constants"
	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/repository"
	"gorm.io/gorm"
)

func setupActivity(t *testing.T) (*gorm.DB, *ActivityService, *models.User, *models.TimeEntry) {
	t.Helper()
	db := openTestDB(t)
	svc := NewActivityService(repository.NewActivityRepository(db), repository.NewTimeEntryRepository(db), 0.3)
	svc.now = func() time.Time { return t0 }

	user := &models.User{Email: "ana@example.com", Username: "ana", PasswordHash: "x", Role: models.UserRoleEmployee, IsActive: true}
	require.NoError(t, db.Create(user).Error)
	project := &models.Project{Name: "Apollo", Status: models.ProjectStatusActive, OwnerID: user.ID}
	require.NoError(t, db.Create(project).Error)
	entry := &models.TimeEntry{StartTime: t0, Status: models.TimeEntryStatusRunning, UserID: user.ID, ProjectID: project.ID}
	require.NoError(t, db.Create(entry).Error)
	return db, svc, user, entry
}

func float64Ptr(v float64) *float64 { return &v }

func TestActivityService_LogActivity(t *testing.T) {
	_, svc, user, entry := setupActivity(t)

	log, err := svc.LogActivity(user.ID, ActivityInput{
		KeyboardStrokes:   120,
		MouseClicks:       14,
		ActiveApplication: "editor",
		ProductivityScore: float64Ptr(0.2),
		TimeEntryID:       &entry.ID,
	})
	require.NoError(t, err)
	assert.NotZero(t, log.ID)
	assert.True(t, log.Timestamp.Equal(t0))
	assert.False(t, log.IsProductive)
	assert.True(t, svc.NeedsAlert(log))

	productive, err := svc.LogActivity(user.ID, ActivityInput{ProductivityScore: float64Ptr(0.9)})
	require.NoError(t, err)
	assert.True(t, productive.IsProductive)
	assert.False(t, svc.NeedsAlert(productive))

	unscored, err := svc.LogActivity(user.ID, ActivityInput{})
	require.NoError(t, err)
	assert.False(t, svc.NeedsAlert(unscored))

	logs, total, err := svc.ListActivity(repository.ActivityFilter{UserID: &user.ID, TimeEntryID: &entry.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, logs, 1)
}

func TestActivityService_Validation(t *testing.T) {
	db, svc, user, entry := setupActivity(t)

	other := &models.User{Email: "ben@example.com", Username: "ben", PasswordHash: "x", Role: models.UserRoleEmployee, IsActive: true}
	require.NoError(t, db.Create(other).Error)

	missing := uint64(9999)
	tests := []struct {
		name   string
		userID uint64
		input  ActivityInput
		want   error
	}{
		{"score above one", user.ID, ActivityInput{ProductivityScore: float64Ptr(1.2)}, ErrInvalidProductivityScore},
		{"negative counter", user.ID, ActivityInput{MouseMoves: -1}, ErrNegativeCounter},
		{"unknown entry", user.ID, ActivityInput{TimeEntryID: &missing}, ErrTimeEntryNotFound},
		{"someone else's entry", other.ID, ActivityInput{TimeEntryID: &entry.ID}, ErrForeignTimeEntry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.LogActivity(tt.userID, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestActivityService_LogActivityBatch(t *testing.T) {
	db, svc, user, _ := setupActivity(t)

	_, err := svc.LogActivityBatch(user.ID, nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = svc.LogActivityBatch(user.ID, make([]ActivityInput, constants.MaxActivityBatch+1))
	assert.ErrorIs(t, err, ErrBatchTooLarge)

	_, err = svc.LogActivityBatch(user.ID, []ActivityInput{{KeyboardStrokes: 1}, {KeyboardStrokes: -1}})
	assert.ErrorIs(t, err, ErrNegativeCounter)

	var count int64
	db.Model(&models.ActivityLog{}).Count(&count)
	assert.Zero(t, count)

	logs, err := svc.LogActivityBatch(user.ID, []ActivityInput{{KeyboardStrokes: 1}, {MouseClicks: 2}, {ScrollEvents: 3}})
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	db.Model(&models.ActivityLog{}).Where("user_id = ?", user.ID).Count(&count)
	assert.EqualValues(t, 3, count)
}

func TestActivityService_Screenshots(t *testing.T) {
	_, svc, user, entry := setupActivity(t)

	_, err := svc.RecordScreenshot(user.ID, ScreenshotInput{Filename: "a.png"})
	assert.ErrorIs(t, err, ErrFilenameRequired)

	size := int64(20480)
	shot, err := svc.RecordScreenshot(user.ID, ScreenshotInput{
		Filename:    "a.png",
		FilePath:    "captures/2024/04/01/a.png",
		FileSize:    &size,
		IsBlurred:   true,
		BlurLevel:   3,
		TimeEntryID: &entry.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ScreenshotStatusUploaded, shot.Status)
	assert.True(t, shot.CapturedAt.Equal(t0))
	require.NotNil(t, shot.TimeEntry)
	assert.Equal(t, entry.ProjectID, shot.TimeEntry.ProjectID)

	shots, total, err := svc.ListScreenshots(repository.ActivityFilter{UserID: &user.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "a.png", shots[0].Filename)
}

func TestActivityService_SingleLog(t *testing.T) {
	_, svc, user, _ := setupActivity(t)

	log, err := svc.LogActivity(user.ID, ActivityInput{KeyboardStrokes: 5})
	require.NoError(t, err)

	found, err := svc.GetActivityLog(log.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, found.KeyboardStrokes)

	require.NoError(t, svc.DeleteActivityLog(log.ID))
	_, err = svc.GetActivityLog(log.ID)
	assert.ErrorIs(t, err, ErrActivityLogNotFound)
	assert.ErrorIs(t, svc.DeleteActivityLog(log.ID), ErrActivityLogNotFound)
}

func TestActivityService_UpdateScreenshot(t *testing.T) {
	db, svc, user, entry := setupActivity(t)

	shot, err := svc.RecordScreenshot(user.ID, ScreenshotInput{
		Filename:    "b.png",
		FilePath:    "captures/b.png",
		TimeEntryID: &entry.ID,
	})
	require.NoError(t, err)

	bogus := models.ScreenshotStatus("archived")
	_, err = svc.UpdateScreenshot(shot.ID, UpdateScreenshotInput{Status: &bogus})
	assert.ErrorIs(t, err, ErrInvalidScreenshotStatus)

	negative := -1
	_, err = svc.UpdateScreenshot(shot.ID, UpdateScreenshotInput{BlurLevel: &negative})
	assert.ErrorIs(t, err, ErrInvalidScreenshotMeta)

	blurred := true
	level := 7
	thumb := " thumbs/b.png "
	updated, err := svc.UpdateScreenshot(shot.ID, UpdateScreenshotInput{IsBlurred: &blurred, BlurLevel: &level, ThumbnailPath: &thumb})
	require.NoError(t, err)
	assert.True(t, updated.IsBlurred)
	assert.Equal(t, 7, updated.BlurLevel)
	assert.Equal(t, "thumbs/b.png", updated.ThumbnailPath)
	assert.Equal(t, models.ScreenshotStatusUploaded, updated.Status)

	require.NoError(t, svc.DeleteScreenshot(shot.ID))
	_, err = svc.GetScreenshot(shot.ID)
	assert.ErrorIs(t, err, ErrScreenshotNotFound)

	var row models.Screenshot
	require.NoError(t, db.First(&row, shot.ID).Error)
	assert.Equal(t, models.ScreenshotStatusDeleted, row.Status)
	assert.Equal(t, 7, row.BlurLevel)

	_, total, err := svc.ListScreenshots(repository.ActivityFilter{UserID: &user.ID})
	require.NoError(t, err)
	assert.Zero(t, total)
}
