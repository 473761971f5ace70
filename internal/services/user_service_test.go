package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *UserService
	admin   *models.User
	manager *models.User
	ana     *models.User
	bob     *models.User
}

func (suite *UserServiceTestSuite) SetupTest() {
	suite.db = openTestDB(suite.T())
	userRepo := repository.NewUserRepository(suite.db)
	suite.service = NewUserService(userRepo, NewAuthService(userRepo))

	suite.admin = suite.create("root", models.UserRoleAdmin)
	suite.manager = suite.create("max", models.UserRoleManager)
	suite.ana = suite.create("ana", models.UserRoleEmployee)
	suite.bob = suite.create("bob", models.UserRoleEmployee)
}

func (suite *UserServiceTestSuite) create(name string, role models.UserRole) *models.User {
	u, err := suite.service.CreateUser(SignupInput{
		Email:    name + "@example.com",
		Username: name,
		Password: "supersecret",
		Role:     role,
	})
	suite.Require().NoError(err)
	return u
}

func (suite *UserServiceTestSuite) TestListUsersFilters() {
	users, total, err := suite.service.ListUsers(repository.UserFilter{Page: 1, PageSize: 2})
	suite.Require().NoError(err)
	suite.EqualValues(4, total)
	suite.Require().Len(users, 2)
	suite.Equal("ana", users[0].Username)

	employee := models.UserRoleEmployee
	_, total, err = suite.service.ListUsers(repository.UserFilter{Role: &employee})
	suite.Require().NoError(err)
	suite.EqualValues(2, total)

	users, _, err = suite.service.ListUsers(repository.UserFilter{Search: " bo "})
	suite.Require().NoError(err)
	suite.Require().Len(users, 1)
	suite.Equal(suite.bob.ID, users[0].ID)
}

func (suite *UserServiceTestSuite) TestGetUserVisibility() {
	self, err := suite.service.GetUser(suite.ana, suite.ana.ID)
	suite.Require().NoError(err)
	suite.Equal("ana", self.Username)

	_, err = suite.service.GetUser(suite.ana, suite.bob.ID)
	suite.ErrorIs(err, ErrUserAccessDenied)

	other, err := suite.service.GetUser(suite.manager, suite.bob.ID)
	suite.Require().NoError(err)
	suite.Equal("bob", other.Username)

	_, err = suite.service.GetUser(suite.manager, 9999)
	suite.ErrorIs(err, ErrUserNotFound)
}

func (suite *UserServiceTestSuite) TestUpdateUserSelf() {
	name := "  Ana Lima "
	email := "ANA.LIMA@example.com"
	password := "an-even-better-secret"
	updated, err := suite.service.UpdateUser(suite.ana, suite.ana.ID, UpdateUserInput{FullName: &name, Email: &email, Password: &password})
	suite.Require().NoError(err)
	suite.Equal("Ana Lima", updated.FullName)
	suite.Equal("ana.lima@example.com", updated.Email)
	suite.NoError(bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte(password)))

	taken := "bob"
	_, err = suite.service.UpdateUser(suite.ana, suite.ana.ID, UpdateUserInput{Username: &taken})
	suite.ErrorIs(err, ErrUsernameTaken)

	same := "ana"
	_, err = suite.service.UpdateUser(suite.ana, suite.ana.ID, UpdateUserInput{Username: &same})
	suite.NoError(err)

	short := "short"
	_, err = suite.service.UpdateUser(suite.ana, suite.ana.ID, UpdateUserInput{Password: &short})
	suite.ErrorIs(err, ErrPasswordTooShort)

	admin := models.UserRoleAdmin
	_, err = suite.service.UpdateUser(suite.ana, suite.ana.ID, UpdateUserInput{Role: &admin})
	suite.ErrorIs(err, ErrUserAccessDenied)

	_, err = suite.service.UpdateUser(suite.ana, suite.bob.ID, UpdateUserInput{FullName: &name})
	suite.ErrorIs(err, ErrUserAccessDenied)
}

func (suite *UserServiceTestSuite) TestUpdateUserByAdmin() {
	manager := models.UserRoleManager
	inactive := false
	updated, err := suite.service.UpdateUser(suite.admin, suite.bob.ID, UpdateUserInput{Role: &manager, IsActive: &inactive})
	suite.Require().NoError(err)
	suite.Equal(models.UserRoleManager, updated.Role)
	suite.False(updated.IsActive)

	bogus := models.UserRole("intern")
	_, err = suite.service.UpdateUser(suite.admin, suite.bob.ID, UpdateUserInput{Role: &bogus})
	suite.ErrorIs(err, ErrInvalidRole)

	_, err = suite.service.UpdateUser(suite.admin, suite.admin.ID, UpdateUserInput{IsActive: &inactive})
	suite.ErrorIs(err, ErrCannotChangeOwnAdmin)

	// Managers can read everyone but not change role or status
	_, err = suite.service.UpdateUser(suite.manager, suite.ana.ID, UpdateUserInput{Role: &manager})
	suite.ErrorIs(err, ErrUserAccessDenied)
}

func (suite *UserServiceTestSuite) TestDeleteUser() {
	suite.ErrorIs(suite.service.DeleteUser(suite.admin, suite.admin.ID), ErrCannotChangeOwnAdmin)
	suite.ErrorIs(suite.service.DeleteUser(suite.admin, 9999), ErrUserNotFound)

	project := &models.Project{Name: "Apollo", Status: models.ProjectStatusActive, OwnerID: suite.ana.ID}
	suite.Require().NoError(suite.db.Create(project).Error)
	suite.ErrorIs(suite.service.DeleteUser(suite.admin, suite.ana.ID), ErrUserOwnsProjects)

	suite.Require().NoError(suite.service.DeleteUser(suite.admin, suite.bob.ID))
	_, err := suite.service.GetUser(suite.admin, suite.bob.ID)
	suite.ErrorIs(err, ErrUserNotFound)

	// A deleted account keeps its username
	_, err = suite.service.CreateUser(SignupInput{Email: "new-bob@example.com", Username: "bob", Password: "supersecret"})
	suite.ErrorIs(err, ErrUsernameTaken)
}

func TestUserServiceTestSuite(t *testing.T) {
	suite.Run(t, new(UserServiceTestSuite))
}
