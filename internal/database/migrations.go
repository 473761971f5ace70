package database

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type index struct {
	table   string
	name    string
	columns []string
}

// lookupIndexes are the composite indexes behind the hot queries
var lookupIndexes = []index{
	// Active timer lookup and per-user listing
	{"time_entries", "idx_time_entries_user_status", []string{"user_id", "status"}},
	{"time_entries", "idx_time_entries_user_start", []string{"user_id", "start_time"}},
	{"time_entries", "idx_time_entries_project_id", []string{"project_id"}},
	{"time_entries", "idx_time_entries_task_id", []string{"task_id"}},

	// Project membership checks
	{"project_members", "idx_project_members_user_id", []string{"user_id", "is_active"}},

	// Task filtering and sorting
	{"tasks", "idx_tasks_project_status", []string{"project_id", "status"}},
	{"tasks", "idx_tasks_due_date", []string{"due_date"}},

	// Activity timelines
	{"activity_logs", "idx_activity_logs_user_timestamp", []string{"user_id", "timestamp"}},
	{"screenshots", "idx_screenshots_user_captured", []string{"user_id", "captured_at"}},
}

// AddIndexes adds performance-critical indexes to the database. Existing
// indexes are skipped, so it is safe to run on every start.
func AddIndexes(db *gorm.DB, log *zap.Logger) error {
	migrator := db.Migrator()

	for _, idx := range lookupIndexes {
		if migrator.HasIndex(idx.table, idx.name) {
			log.Debug("index already exists, skipping", zap.String("index", idx.name))
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, strings.Join(idx.columns, ", "))
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		log.Info("created index", zap.String("index", idx.name), zap.String("table", idx.table))
	}

	return nil
}

// MigrateDatabase runs all database migrations
func MigrateDatabase(db *gorm.DB, log *zap.Logger) error {
	if err := Migrate(db); err != nil {
		return err
	}

	// Add indexes
	if err := AddIndexes(db, log); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}

	return nil
}
