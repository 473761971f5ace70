package repository

import (
	"github.com/yukikurage/timetracker-api/internal/database"
	"github.com/yukikurage/timetracker-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTimeEntryRepository is a GORM implementation of TimeEntryRepository
type GormTimeEntryRepository struct {
	db *gorm.DB
}

// NewTimeEntryRepository creates a new TimeEntryRepository
func NewTimeEntryRepository(db *gorm.DB) TimeEntryRepository {
	return &GormTimeEntryRepository{db: db}
}

// Create inserts a new time entry
func (r *GormTimeEntryRepository) Create(entry *models.TimeEntry) error {
	return r.db.Create(entry).Error
}

// FindByID finds a time entry by ID with optional preloading
func (r *GormTimeEntryRepository) FindByID(id uint64, preload ...string) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	query := r.db

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&entry, id).Error; err != nil {
		return nil, err
	}

	return &entry, nil
}

// FindActiveByUser returns the user's running entry
func (r *GormTimeEntryRepository) FindActiveByUser(userID uint64) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	err := r.db.
		Where("user_id = ? AND status = ?", userID, models.TimeEntryStatusRunning).
		Order("start_time DESC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// CountActiveByUser counts the user's running entries
func (r *GormTimeEntryRepository) CountActiveByUser(userID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.TimeEntry{}).
		Where("user_id = ? AND status = ?", userID, models.TimeEntryStatusRunning).
		Count(&count).Error
	return count, err
}

// List retrieves time entries with filtering and pagination
func (r *GormTimeEntryRepository) List(filter TimeEntryFilter) ([]models.TimeEntry, int64, error) {
	var entries []models.TimeEntry

	query := r.db.Model(&models.TimeEntry{})

	if filter.UserID != nil {
		query = query.Where("time_entries.user_id = ?", *filter.UserID)
	}
	if filter.ProjectID != nil {
		query = query.Where("time_entries.project_id = ?", *filter.ProjectID)
	}
	if filter.TaskID != nil {
		query = query.Where("time_entries.task_id = ?", *filter.TaskID)
	}
	if filter.Status != nil {
		query = query.Where("time_entries.status = ?", *filter.Status)
	}
	if filter.StartFrom != nil {
		query = query.Where("time_entries.start_time >= ?", *filter.StartFrom)
	}
	if filter.EndBy != nil {
		query = query.Where(
			"(time_entries.end_time <= ? OR (time_entries.end_time IS NULL AND time_entries.start_time <= ?))",
			*filter.EndBy, *filter.EndBy,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("time_entries.start_time DESC").
		Scopes(database.Paginate(filter.Page, filter.PageSize))

	if err := listQuery.Preload("Project").Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// Update saves all fields of a time entry
func (r *GormTimeEntryRepository) Update(entry *models.TimeEntry) error {
	return r.db.Omit(clause.Associations).Save(entry).Error
}

// Delete soft deletes a time entry
func (r *GormTimeEntryRepository) Delete(id uint64) error {
	return r.db.Delete(&models.TimeEntry{}, id).Error
}

// LockUser takes a row lock on the user row
func (r *GormTimeEntryRepository) LockUser(userID uint64) error {
	var user models.User
	return r.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&user, userID).Error
}

// Transaction runs fn against a repository bound to a single transaction
func (r *GormTimeEntryRepository) Transaction(fn func(repo TimeEntryRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormTimeEntryRepository{db: tx})
	})
}
