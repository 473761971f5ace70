package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yukikurage/timetracker-api/internal/models"
)

func TestToTimeEntryDTO_EffectiveHourlyRate(t *testing.T) {
	projectRate := int64(5000)
	override := int64(8000)
	start := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	entry := models.TimeEntry{
		ID:        7,
		StartTime: start,
		Status:    models.TimeEntryStatusRunning,
		ProjectID: 3,
		Project:   models.Project{ID: 3, Name: "Apollo", HourlyRate: &projectRate},
	}

	got := ToTimeEntryDTO(entry)
	assert.Equal(t, &projectRate, got.EffectiveHourlyRate)
	assert.Nil(t, got.HourlyRate)
	if assert.NotNil(t, got.Project) {
		assert.Equal(t, "Apollo", got.Project.Name)
	}
	assert.Nil(t, got.Task)

	entry.HourlyRate = &override
	assert.Equal(t, &override, ToTimeEntryDTO(entry).EffectiveHourlyRate)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, totalPages(0, 20))
	assert.Equal(t, 1, totalPages(20, 20))
	assert.Equal(t, 2, totalPages(21, 20))
	assert.Equal(t, 0, totalPages(5, 0))
}

func TestToTaskDTO_OptionalRelations(t *testing.T) {
	task := models.Task{ID: 1, Title: "Write report", Creator: models.User{ID: 2, Username: "ana"}}

	got := ToTaskDTO(task)
	if assert.NotNil(t, got.Creator) {
		assert.Equal(t, "ana", got.Creator.Username)
	}
	assert.Nil(t, got.Assignee)
}
