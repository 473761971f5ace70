package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/timetracker-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TimeEntryRepositoryTestSuite runs the repository against in-memory SQLite
type TimeEntryRepositoryTestSuite struct {
	suite.Suite
	db      *gorm.DB
	repo    TimeEntryRepository
	user    *models.User
	project *models.Project
}

func (suite *TimeEntryRepositoryTestSuite) SetupTest() {
	var err error
	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	suite.Require().NoError(err)

	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	suite.Require().NoError(suite.db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Task{},
		&models.TimeEntry{},
	))

	suite.repo = NewTimeEntryRepository(suite.db)

	suite.user = &models.User{Email: "ana@example.com", Username: "ana", PasswordHash: "x", Role: models.UserRoleEmployee, IsActive: true}
	suite.Require().NoError(suite.db.Create(suite.user).Error)

	rate := int64(5000)
	suite.project = &models.Project{Name: "Apollo", Status: models.ProjectStatusActive, OwnerID: suite.user.ID, HourlyRate: &rate}
	suite.Require().NoError(suite.db.Create(suite.project).Error)
}

func (suite *TimeEntryRepositoryTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *TimeEntryRepositoryTestSuite) entry(status models.TimeEntryStatus, start time.Time) *models.TimeEntry {
	e := &models.TimeEntry{
		UserID:     suite.user.ID,
		ProjectID:  suite.project.ID,
		StartTime:  start,
		Status:     status,
		IsBillable: true,
	}
	if status != models.TimeEntryStatusRunning {
		end := start.Add(time.Hour)
		dur := int64(3600)
		e.EndTime = &end
		e.Duration = &dur
	}
	suite.Require().NoError(suite.repo.Create(e))
	return e
}

func (suite *TimeEntryRepositoryTestSuite) TestFindActiveByUser() {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	suite.entry(models.TimeEntryStatusStopped, base)

	_, err := suite.repo.FindActiveByUser(suite.user.ID)
	suite.ErrorIs(err, gorm.ErrRecordNotFound)

	running := suite.entry(models.TimeEntryStatusRunning, base.Add(2*time.Hour))

	found, err := suite.repo.FindActiveByUser(suite.user.ID)
	suite.Require().NoError(err)
	suite.Equal(running.ID, found.ID)

	count, err := suite.repo.CountActiveByUser(suite.user.ID)
	suite.Require().NoError(err)
	suite.EqualValues(1, count)
}

func (suite *TimeEntryRepositoryTestSuite) TestListFiltersAndPaginates() {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		suite.entry(models.TimeEntryStatusStopped, base.Add(time.Duration(i)*24*time.Hour))
	}
	suite.entry(models.TimeEntryStatusRunning, base.Add(10*24*time.Hour))

	stopped := models.TimeEntryStatusStopped
	entries, total, err := suite.repo.List(TimeEntryFilter{
		UserID:   &suite.user.ID,
		Status:   &stopped,
		Page:     1,
		PageSize: 2,
	})
	suite.Require().NoError(err)
	suite.EqualValues(5, total)
	suite.Len(entries, 2)
	suite.True(entries[0].StartTime.After(entries[1].StartTime), "newest first")
	suite.Equal("Apollo", entries[0].Project.Name)

	from := base.Add(24 * time.Hour)
	to := base.Add(3 * 24 * time.Hour)
	_, total, err = suite.repo.List(TimeEntryFilter{StartFrom: &from, EndBy: &to})
	suite.Require().NoError(err)
	suite.EqualValues(2, total, "the entry starting at the bound ends after it")

	endOfFourth := to.Add(time.Hour)
	_, total, err = suite.repo.List(TimeEntryFilter{StartFrom: &from, EndBy: &endOfFourth})
	suite.Require().NoError(err)
	suite.EqualValues(3, total, "an end exactly at the bound is included")
}

func (suite *TimeEntryRepositoryTestSuite) TestListEndByKeepsRunningEntriesStartedBefore() {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	suite.entry(models.TimeEntryStatusStopped, base)
	suite.entry(models.TimeEntryStatusRunning, base.Add(2*time.Hour))

	before := base.Add(2*time.Hour - time.Minute)
	_, total, err := suite.repo.List(TimeEntryFilter{EndBy: &before})
	suite.Require().NoError(err)
	suite.EqualValues(1, total)

	atStart := base.Add(2 * time.Hour)
	entries, total, err := suite.repo.List(TimeEntryFilter{EndBy: &atStart})
	suite.Require().NoError(err)
	suite.EqualValues(2, total)
	suite.Equal(models.TimeEntryStatusRunning, entries[0].Status)
}

func (suite *TimeEntryRepositoryTestSuite) TestTransactionRollsBack() {
	boom := errors.New("boom")
	err := suite.repo.Transaction(func(tx TimeEntryRepository) error {
		e := &models.TimeEntry{UserID: suite.user.ID, ProjectID: suite.project.ID, StartTime: time.Now(), Status: models.TimeEntryStatusRunning}
		if err := tx.Create(e); err != nil {
			return err
		}
		return boom
	})
	suite.ErrorIs(err, boom)

	count, err := suite.repo.CountActiveByUser(suite.user.ID)
	suite.Require().NoError(err)
	suite.Zero(count)
}

func (suite *TimeEntryRepositoryTestSuite) TestLockUser() {
	suite.NoError(suite.repo.Transaction(func(tx TimeEntryRepository) error {
		return tx.LockUser(suite.user.ID)
	}))
	suite.ErrorIs(suite.repo.LockUser(9999), gorm.ErrRecordNotFound)
}

func (suite *TimeEntryRepositoryTestSuite) TestDeleteIsSoft() {
	e := suite.entry(models.TimeEntryStatusStopped, time.Now())
	suite.Require().NoError(suite.repo.Delete(e.ID))

	_, err := suite.repo.FindByID(e.ID)
	suite.ErrorIs(err, gorm.ErrRecordNotFound)

	var raw int64
	suite.db.Unscoped().Model(&models.TimeEntry{}).Where("id = ?", e.ID).Count(&raw)
	suite.EqualValues(1, raw)
}

func TestTimeEntryRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(TimeEntryRepositoryTestSuite))
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestTimeEntryRepository_FindActiveByUserQuery(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTimeEntryRepository(db)

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "project_id", "status", "start_time"}).
		AddRow(3, 7, 1, "running", start)
	mock.ExpectQuery(`SELECT \* FROM "time_entries" WHERE .*user_id = \$1 AND status = \$2.*"deleted_at" IS NULL ORDER BY start_time DESC`).
		WillReturnRows(rows)

	entry, err := repo.FindActiveByUser(7)
	require.NoError(t, err)
	assert.EqualValues(t, 3, entry.ID)
	assert.True(t, entry.IsRunning())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeEntryRepository_CreatePropagatesErrors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTimeEntryRepository(db)

	mock.ExpectQuery(`INSERT INTO "time_entries"`).WillReturnError(errors.New("connection reset"))

	err := repo.Create(&models.TimeEntry{UserID: 7, ProjectID: 1, StartTime: time.Now(), Status: models.TimeEntryStatusRunning})
	assert.EqualError(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeEntryRepository_TransactionRollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTimeEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "users" WHERE .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(`INSERT INTO "time_entries"`).WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := repo.Transaction(func(tx TimeEntryRepository) error {
		if err := tx.LockUser(7); err != nil {
			return err
		}
		return tx.Create(&models.TimeEntry{UserID: 7, ProjectID: 1, StartTime: time.Now(), Status: models.TimeEntryStatusRunning})
	})
	assert.EqualError(t, err, "duplicate key")
	assert.NoError(t, mock.ExpectationsWereMet())
}
