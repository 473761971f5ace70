package services

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/yukikurage/timetracker-api/internal/constants"
	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserAccessDenied     = errors.New("not allowed to act on this user")
	ErrCannotChangeOwnAdmin = errors.New("admins cannot change their own role, status or account")
	ErrUserOwnsProjects     = errors.New("user still owns projects")
)

// UserService manages accounts on behalf of admins and the users themselves.
type UserService struct {
	userRepo repository.UserRepository
	auth     *AuthService
}

// NewUserService creates a new UserService. Account creation goes through
// auth so signup and admin-created users follow the same rules.
func NewUserService(userRepo repository.UserRepository, auth *AuthService) *UserService {
	return &UserService{
		userRepo: userRepo,
		auth:     auth,
	}
}

// ListUsers returns users matching filter.
func (s *UserService) ListUsers(filter repository.UserFilter) ([]models.User, int64, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	users, total, err := s.userRepo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// GetUser returns the user with id. Users may read themselves; reading
// anyone else needs manager rights.
func (s *UserService) GetUser(actor *models.User, id uint64) (*models.User, error) {
	if actor.ID != id && !actor.IsPrivileged() {
		return nil, ErrUserAccessDenied
	}
	return s.auth.GetUser(id)
}

// CreateUser creates an account with any role.
func (s *UserService) CreateUser(input SignupInput) (*models.User, error) {
	return s.auth.Signup(input)
}

// UpdateUserInput is a partial account update. Role and IsActive are admin
// only.
type UpdateUserInput struct {
	Email    *string
	Username *string
	FullName *string
	Password *string
	Role     *models.UserRole
	IsActive *bool
}

// UpdateUser applies input to the user with id on behalf of actor.
func (s *UserService) UpdateUser(actor *models.User, id uint64, input UpdateUserInput) (*models.User, error) {
	self := actor.ID == id
	if !self && !actor.IsAdmin() {
		return nil, ErrUserAccessDenied
	}
	if input.Role != nil || input.IsActive != nil {
		if !actor.IsAdmin() {
			return nil, ErrUserAccessDenied
		}
		if self {
			return nil, ErrCannotChangeOwnAdmin
		}
	}

	user, err := s.auth.GetUser(id)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, ErrUsernameRequired
		}
		user.Username = username
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, ErrInvalidEmail
		}
		user.Email = email
	}
	if input.FullName != nil {
		user.FullName = strings.TrimSpace(*input.FullName)
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, ErrInvalidRole
		}
		user.Role = *input.Role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if input.Password != nil {
		if len(*input.Password) < constants.MinPasswordLength {
			return nil, ErrPasswordTooShort
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, ErrFailedToHashPassword
		}
		user.PasswordHash = string(hashed)
	}

	if input.Username != nil || input.Email != nil {
		taken, err := s.userRepo.ExistsByEmailOrUsernameExcept(user.Email, user.Username, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		if taken {
			return nil, ErrUsernameTaken
		}
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// DeleteUser soft-deletes the user with id. Owners must hand their projects
// over first.
func (s *UserService) DeleteUser(actor *models.User, id uint64) error {
	if actor.ID == id {
		return ErrCannotChangeOwnAdmin
	}
	if _, err := s.userRepo.FindByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	owned, err := s.userRepo.CountOwnedProjects(id)
	if err != nil {
		return fmt.Errorf("failed to count owned projects: %w", err)
	}
	if owned > 0 {
		return ErrUserOwnsProjects
	}

	if err := s.userRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
