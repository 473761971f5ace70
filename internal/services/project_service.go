package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/repository"
	"github.com/yukikurage/timetracker-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound         = errors.New("project not found")
	ErrInvalidProjectName      = errors.New("project name cannot be empty")
	ErrInvalidProjectStatus    = errors.New("invalid project status")
	ErrInvalidProjectRole      = errors.New("invalid project role")
	ErrNegativeRate            = errors.New("hourly rate must not be negative")
	ErrNotProjectMember        = errors.New("user is not a member of the project")
	ErrProjectPermissionDenied = errors.New("user cannot manage this project")
	ErrCannotRemoveOwner       = errors.New("the project owner cannot be removed")
	ErrProjectMemberNotFound   = errors.New("project member not found")
	ErrCannotDemoteOwner       = errors.New("the project owner must stay an active admin")
	ErrProjectHasRunningTimers = errors.New("project has running timers")
)

// ProjectService provides business logic for project operations.
type ProjectService struct {
	projectRepo repository.ProjectRepository
	userRepo    repository.UserRepository
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projectRepo repository.ProjectRepository, userRepo repository.UserRepository) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		userRepo:    userRepo,
	}
}

// CreateProjectInput represents parameters to create a new project.
type CreateProjectInput struct {
	Name        string
	Description string
	ClientName  string
	HourlyRate  *int64
	Budget      *int64
	Deadline    *time.Time
	OwnerID     uint64
}

// CreateProject creates a project and makes the owner its admin member.
func (s *ProjectService) CreateProject(input CreateProjectInput) (*models.Project, error) {
	name := utils.SanitizeText(input.Name)
	if name == "" {
		return nil, ErrInvalidProjectName
	}
	if input.HourlyRate != nil && *input.HourlyRate < 0 {
		return nil, ErrNegativeRate
	}

	project := &models.Project{
		Name:        name,
		Description: utils.SanitizeText(input.Description),
		ClientName:  utils.SanitizeText(input.ClientName),
		Status:      models.ProjectStatusActive,
		HourlyRate:  input.HourlyRate,
		Budget:      input.Budget,
		Deadline:    input.Deadline,
		OwnerID:     input.OwnerID,
	}

	owner := &models.ProjectMember{
		Role:      models.ProjectRoleAdmin,
		IsActive:  true,
		AddedByID: input.OwnerID,
		JoinedAt:  time.Now(),
	}

	if err := s.projectRepo.CreateWithOwner(project, owner); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return project, nil
}

// ListProjects returns every project for privileged users and the member's
// projects for everyone else.
func (s *ProjectService) ListProjects(actor *models.User, status *models.ProjectStatus, page, pageSize int) ([]models.Project, int64, error) {
	filter := repository.ProjectFilter{
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	}
	if !actor.IsPrivileged() {
		filter.MemberID = &actor.ID
	}

	projects, total, err := s.projectRepo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, total, nil
}

// GetProject returns a project.
func (s *ProjectService) GetProject(projectID uint64) (*models.Project, error) {
	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return project, nil
}

// GetProjectWithMembers returns a project and all of its members.
func (s *ProjectService) GetProjectWithMembers(projectID uint64) (*models.Project, []models.ProjectMember, error) {
	project, err := s.GetProject(projectID)
	if err != nil {
		return nil, nil, err
	}

	members, err := s.projectRepo.ListMembers(projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list project members: %w", err)
	}

	return project, members, nil
}

// CanAccess reports whether actor may read the project and subscribe to its
// updates.
func (s *ProjectService) CanAccess(actor *models.User, projectID uint64) (bool, error) {
	project, err := s.GetProject(projectID)
	if err != nil {
		return false, err
	}
	if actor.IsPrivileged() || project.OwnerID == actor.ID {
		return true, nil
	}

	if _, err := s.projectRepo.FindMember(projectID, actor.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to verify project membership: %w", err)
	}
	return true, nil
}

// CanManage reports whether actor may change the project and its members.
func (s *ProjectService) CanManage(actor *models.User, project *models.Project) (bool, error) {
	if actor.IsPrivileged() || project.OwnerID == actor.ID {
		return true, nil
	}

	member, err := s.projectRepo.FindMember(project.ID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to verify project membership: %w", err)
	}
	return member.Role == models.ProjectRoleManager || member.Role == models.ProjectRoleAdmin, nil
}

// UpdateProjectInput represents a partial project update.
type UpdateProjectInput struct {
	Name          *string
	Description   *string
	ClientName    *string
	Status        *models.ProjectStatus
	HourlyRate    *int64
	ClearRate     bool
	Budget        *int64
	Deadline      *time.Time
	ClearDeadline bool
}

// UpdateProject applies a partial update.
func (s *ProjectService) UpdateProject(projectID uint64, input UpdateProjectInput) (*models.Project, error) {
	project, err := s.GetProject(projectID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := utils.SanitizeText(*input.Name)
		if name == "" {
			return nil, ErrInvalidProjectName
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = utils.SanitizeText(*input.Description)
	}
	if input.ClientName != nil {
		project.ClientName = utils.SanitizeText(*input.ClientName)
	}
	if input.Status != nil {
		switch *input.Status {
		case models.ProjectStatusActive, models.ProjectStatusInactive, models.ProjectStatusCompleted, models.ProjectStatusArchived:
			project.Status = *input.Status
		default:
			return nil, ErrInvalidProjectStatus
		}
	}
	if input.ClearRate {
		project.HourlyRate = nil
	} else if input.HourlyRate != nil {
		if *input.HourlyRate < 0 {
			return nil, ErrNegativeRate
		}
		project.HourlyRate = input.HourlyRate
	}
	if input.Budget != nil {
		project.Budget = input.Budget
	}
	if input.ClearDeadline {
		project.Deadline = nil
	} else if input.Deadline != nil {
		project.Deadline = input.Deadline
	}

	if err := s.projectRepo.Update(project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	return project, nil
}

// AddMemberInput represents parameters to add a project member.
type AddMemberInput struct {
	ProjectID  uint64
	ActorID    uint64
	UserID     uint64
	Role       models.ProjectRole
	HourlyRate *int64
}

// AddMember adds a user to a project, or reactivates an earlier membership.
func (s *ProjectService) AddMember(input AddMemberInput) (*models.ProjectMember, error) {
	if input.Role == "" {
		input.Role = models.ProjectRoleMember
	}
	switch input.Role {
	case models.ProjectRoleMember, models.ProjectRoleManager, models.ProjectRoleAdmin:
	default:
		return nil, ErrInvalidProjectRole
	}

	if _, err := s.GetProject(input.ProjectID); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.FindByID(input.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	member := &models.ProjectMember{
		ProjectID:  input.ProjectID,
		UserID:     input.UserID,
		Role:       input.Role,
		HourlyRate: input.HourlyRate,
		IsActive:   true,
		AddedByID:  input.ActorID,
		JoinedAt:   time.Now(),
	}

	if err := s.projectRepo.AddMember(member); err != nil {
		return nil, fmt.Errorf("failed to add member to project: %w", err)
	}

	return member, nil
}

// RemoveMember removes a member from the project. The owner always stays.
func (s *ProjectService) RemoveMember(projectID, targetID uint64) error {
	project, err := s.GetProject(projectID)
	if err != nil {
		return err
	}
	if project.OwnerID == targetID {
		return ErrCannotRemoveOwner
	}

	if _, err := s.projectRepo.FindMember(projectID, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectMemberNotFound
		}
		return fmt.Errorf("failed to find project member: %w", err)
	}

	if err := s.projectRepo.RemoveMember(projectID, targetID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}

// ListMembers returns every membership of the project, inactive ones included.
func (s *ProjectService) ListMembers(projectID uint64) ([]models.ProjectMember, error) {
	_, members, err := s.GetProjectWithMembers(projectID)
	return members, err
}

// UpdateMemberInput is a partial membership update.
type UpdateMemberInput struct {
	Role       *models.ProjectRole
	HourlyRate *int64
	ClearRate  bool
	IsActive   *bool
}

// UpdateMember changes the role, rate or active flag of an active member.
func (s *ProjectService) UpdateMember(projectID, targetID uint64, input UpdateMemberInput) (*models.ProjectMember, error) {
	if input.Role != nil {
		switch *input.Role {
		case models.ProjectRoleMember, models.ProjectRoleManager, models.ProjectRoleAdmin:
		default:
			return nil, ErrInvalidProjectRole
		}
	}
	if input.HourlyRate != nil && *input.HourlyRate < 0 {
		return nil, ErrNegativeRate
	}

	project, err := s.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	member, err := s.projectRepo.FindMember(projectID, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectMemberNotFound
		}
		return nil, fmt.Errorf("failed to find project member: %w", err)
	}

	if input.Role != nil {
		member.Role = *input.Role
	}
	if input.ClearRate {
		member.HourlyRate = nil
	} else if input.HourlyRate != nil {
		member.HourlyRate = input.HourlyRate
	}
	if input.IsActive != nil {
		member.IsActive = *input.IsActive
	}
	if project.OwnerID == targetID && (member.Role != models.ProjectRoleAdmin || !member.IsActive) {
		return nil, ErrCannotDemoteOwner
	}

	if err := s.projectRepo.UpdateMember(member); err != nil {
		return nil, fmt.Errorf("failed to update project member: %w", err)
	}

	user, err := s.userRepo.FindByID(targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	member.User = *user
	return member, nil
}

// DeleteProject soft-deletes a project. Projects with running timers are kept
// until those timers stop.
func (s *ProjectService) DeleteProject(projectID uint64) (*models.Project, error) {
	project, err := s.GetProject(projectID)
	if err != nil {
		return nil, err
	}

	running, err := s.projectRepo.CountRunningEntries(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to count running timers: %w", err)
	}
	if running > 0 {
		return nil, ErrProjectHasRunningTimers
	}

	if err := s.projectRepo.Delete(projectID); err != nil {
		return nil, fmt.Errorf("failed to delete project: %w", err)
	}
	return project, nil
}
