package repository

import (
	"time"

	"github.com/yukikurage/timetracker-api/internal/models"
)

// TimeEntryRepository defines the interface for time entry data access
type TimeEntryRepository interface {
	// Create inserts a new time entry
	Create(entry *models.TimeEntry) error

	// FindByID finds a time entry by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.TimeEntry, error)

	// FindActiveByUser returns the user's running entry, or gorm.ErrRecordNotFound
	FindActiveByUser(userID uint64) (*models.TimeEntry, error)

	// CountActiveByUser counts the user's running entries
	CountActiveByUser(userID uint64) (int64, error)

	// List retrieves time entries with filtering and pagination
	List(filter TimeEntryFilter) ([]models.TimeEntry, int64, error)

	// Update saves all fields of a time entry
	Update(entry *models.TimeEntry) error

	// Delete soft deletes a time entry
	Delete(id uint64) error

	// LockUser takes a row lock on the user for the rest of the transaction.
	// Dialects without row locks treat it as a plain read.
	LockUser(userID uint64) error

	// Transaction runs fn against a repository bound to a single transaction
	Transaction(fn func(repo TimeEntryRepository) error) error
}

// TimeEntryFilter holds filtering options for listing time entries
type TimeEntryFilter struct {
	UserID    *uint64
	ProjectID *uint64
	TaskID    *uint64
	Status    *models.TimeEntryStatus
	StartFrom *time.Time
	// EndBy keeps entries that finished by then, or are still running and
	// started by then. Inclusive.
	EndBy     *time.Time
	Page      int
	PageSize  int
}

// ProjectRepository defines the interface for project data access
type ProjectRepository interface {
	// CreateWithOwner creates a project and the owner's membership atomically
	CreateWithOwner(project *models.Project, owner *models.ProjectMember) error

	// FindByID finds a project by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Project, error)

	// List retrieves projects, optionally restricted to a member
	List(filter ProjectFilter) ([]models.Project, int64, error)

	// Update updates a project
	Update(project *models.Project) error

	// AddMember adds or reactivates a project member
	AddMember(member *models.ProjectMember) error

	// RemoveMember removes a member from a project
	RemoveMember(projectID, userID uint64) error

	// FindMember finds an active project member
	FindMember(projectID, userID uint64) (*models.ProjectMember, error)

	// ListMembers lists all members of a project
	ListMembers(projectID uint64) ([]models.ProjectMember, error)

	// UpdateMember saves role, rate and active flag of a membership
	UpdateMember(member *models.ProjectMember) error

	// CountRunningEntries counts timers currently running on the project
	CountRunningEntries(projectID uint64) (int64, error)

	// Delete soft-deletes a project
	Delete(id uint64) error
}

// ProjectFilter holds filtering options for listing projects
type ProjectFilter struct {
	MemberID *uint64
	Status   *models.ProjectStatus
	Page     int
	PageSize int
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(task *models.Task) error

	// CreateBatch creates several tasks in one transaction
	CreateBatch(tasks []models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(filter TaskFilter) ([]models.Task, int64, error)

	// Update updates a task
	Update(task *models.Task) error

	// Delete soft deletes a task
	Delete(id uint64) error
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	ProjectID     uint64
	Status        *models.TaskStatus
	AssigneeID    *uint64
	DueDateFrom   *time.Time
	DueDateTo     *time.Time
	SortByDueDate bool
	Page          int
	PageSize      int
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByLogin finds a user whose email or username equals login
	FindByLogin(login string) (*models.User, error)

	// ExistsByEmailOrUsername reports whether either identifier is taken
	ExistsByEmailOrUsername(email, username string) (bool, error)

	// ExistsByEmailOrUsernameExcept is ExistsByEmailOrUsername ignoring user id
	ExistsByEmailOrUsernameExcept(email, username string, id uint64) (bool, error)

	// List retrieves users with filtering and pagination
	List(filter UserFilter) ([]models.User, int64, error)

	// Update saves all fields of a user
	Update(user *models.User) error

	// Delete soft-deletes a user
	Delete(id uint64) error

	// CountOwnedProjects counts live projects owned by the user
	CountOwnedProjects(id uint64) (int64, error)
}

// UserFilter holds filtering options for listing users
type UserFilter struct {
	Role     *models.UserRole
	IsActive *bool
	Search   string
	Page     int
	PageSize int
}

// ActivityRepository defines the interface for activity log and screenshot data access
type ActivityRepository interface {
	// CreateLog inserts one activity log
	CreateLog(log *models.ActivityLog) error

	// CreateLogs inserts a batch of activity logs in one transaction
	CreateLogs(logs []models.ActivityLog) error

	// ListLogs retrieves activity logs with filtering and pagination
	ListLogs(filter ActivityFilter) ([]models.ActivityLog, int64, error)

	// CreateScreenshot inserts screenshot metadata
	CreateScreenshot(s *models.Screenshot) error

	// ListScreenshots retrieves screenshot metadata with filtering and pagination
	ListScreenshots(filter ActivityFilter) ([]models.Screenshot, int64, error)

	// FindLog finds an activity log by ID
	FindLog(id uint64) (*models.ActivityLog, error)

	// DeleteLog deletes an activity log
	DeleteLog(id uint64) error

	// FindScreenshot finds screenshot metadata by ID, skipping deleted captures
	FindScreenshot(id uint64) (*models.Screenshot, error)

	// UpdateScreenshot saves all fields of a screenshot
	UpdateScreenshot(s *models.Screenshot) error
}

// ActivityFilter holds filtering options shared by activity logs and screenshots
type ActivityFilter struct {
	UserID      *uint64
	TimeEntryID *uint64
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}
