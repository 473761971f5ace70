package repository

import (
	"github.com/yukikurage/timetracker-api/internal/database"
	"github.com/yukikurage/timetracker-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormActivityRepository is a GORM implementation of ActivityRepository
type GormActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &GormActivityRepository{db: db}
}

func (r *GormActivityRepository) CreateLog(log *models.ActivityLog) error {
	return r.db.Create(log).Error
}

func (r *GormActivityRepository) CreateLogs(logs []models.ActivityLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&logs, 100).Error
	})
}

func (r *GormActivityRepository) ListLogs(filter ActivityFilter) ([]models.ActivityLog, int64, error) {
	var logs []models.ActivityLog
	query := applyActivityFilter(r.db.Model(&models.ActivityLog{}), "activity_logs", "timestamp", filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("activity_logs.timestamp DESC").Scopes(database.Paginate(filter.Page, filter.PageSize))
	if err := listQuery.Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *GormActivityRepository) FindLog(id uint64) (*models.ActivityLog, error) {
	var log models.ActivityLog
	if err := r.db.First(&log, id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *GormActivityRepository) DeleteLog(id uint64) error {
	return r.db.Delete(&models.ActivityLog{}, id).Error
}

func (r *GormActivityRepository) CreateScreenshot(s *models.Screenshot) error {
	return r.db.Omit(clause.Associations).Create(s).Error
}

func (r *GormActivityRepository) FindScreenshot(id uint64) (*models.Screenshot, error) {
	var shot models.Screenshot
	if err := r.db.Preload("TimeEntry").
		Where("status <> ?", models.ScreenshotStatusDeleted).
		First(&shot, id).Error; err != nil {
		return nil, err
	}
	return &shot, nil
}

func (r *GormActivityRepository) UpdateScreenshot(s *models.Screenshot) error {
	return r.db.Omit(clause.Associations).Save(s).Error
}

func (r *GormActivityRepository) ListScreenshots(filter ActivityFilter) ([]models.Screenshot, int64, error) {
	var shots []models.Screenshot
	query := applyActivityFilter(r.db.Model(&models.Screenshot{}), "screenshots", "captured_at", filter).
		Where("screenshots.status <> ?", models.ScreenshotStatusDeleted)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("screenshots.captured_at DESC").Scopes(database.Paginate(filter.Page, filter.PageSize))
	if err := listQuery.Find(&shots).Error; err != nil {
		return nil, 0, err
	}
	return shots, total, nil
}

func applyActivityFilter(query *gorm.DB, table, timeColumn string, filter ActivityFilter) *gorm.DB {
	if filter.UserID != nil {
		query = query.Where(table+".user_id = ?", *filter.UserID)
	}
	if filter.TimeEntryID != nil {
		query = query.Where(table+".time_entry_id = ?", *filter.TimeEntryID)
	}
	if filter.From != nil {
		query = query.Where(table+"."+timeColumn+" >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where(table+"."+timeColumn+" < ?", *filter.To)
	}
	return query
}
