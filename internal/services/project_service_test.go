package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/repository"
	"gorm.io/gorm"
)

type ProjectServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *ProjectService
	owner   *models.User
	member  *models.User
	manager *models.User
}

func (suite *ProjectServiceTestSuite) SetupTest() {
	suite.db = openTestDB(suite.T())
	suite.service = NewProjectService(repository.NewProjectRepository(suite.db), repository.NewUserRepository(suite.db))

	suite.owner = suite.newUser("owner", models.UserRoleEmployee)
	suite.member = suite.newUser("member", models.UserRoleEmployee)
	suite.manager = suite.newUser("boss", models.UserRoleManager)
}

func (suite *ProjectServiceTestSuite) newUser(name string, role models.UserRole) *models.User {
	u := &models.User{Email: name + "@example.com", Username: name, PasswordHash: "x", Role: role, IsActive: true}
	suite.Require().NoError(suite.db.Create(u).Error)
	return u
}

func (suite *ProjectServiceTestSuite) TestCreateProject_OwnerBecomesAdmin() {
	rate := int64(12000)
	project, err := suite.service.CreateProject(CreateProjectInput{Name: "  <i>Apollo</i> ", HourlyRate: &rate, OwnerID: suite.owner.ID})
	suite.Require().NoError(err)
	suite.Equal("Apollo", project.Name)
	suite.Equal(models.ProjectStatusActive, project.Status)

	_, members, err := suite.service.GetProjectWithMembers(project.ID)
	suite.Require().NoError(err)
	suite.Require().Len(members, 1)
	suite.Equal(suite.owner.ID, members[0].UserID)
	suite.Equal(models.ProjectRoleAdmin, members[0].Role)
}

func (suite *ProjectServiceTestSuite) TestCreateProject_Validation() {
	_, err := suite.service.CreateProject(CreateProjectInput{Name: "   ", OwnerID: suite.owner.ID})
	suite.ErrorIs(err, ErrInvalidProjectName)

	neg := int64(-1)
	_, err = suite.service.CreateProject(CreateProjectInput{Name: "Gemini", HourlyRate: &neg, OwnerID: suite.owner.ID})
	suite.ErrorIs(err, ErrNegativeRate)
}

func (suite *ProjectServiceTestSuite) TestAccessAndManagement() {
	project, err := suite.service.CreateProject(CreateProjectInput{Name: "Apollo", OwnerID: suite.owner.ID})
	suite.Require().NoError(err)

	ok, err := suite.service.CanAccess(suite.member, project.ID)
	suite.Require().NoError(err)
	suite.False(ok)

	ok, err = suite.service.CanAccess(suite.manager, project.ID)
	suite.Require().NoError(err)
	suite.True(ok)

	_, err = suite.service.AddMember(AddMemberInput{ProjectID: project.ID, ActorID: suite.owner.ID, UserID: suite.member.ID})
	suite.Require().NoError(err)

	ok, err = suite.service.CanAccess(suite.member, project.ID)
	suite.Require().NoError(err)
	suite.True(ok)

	ok, err = suite.service.CanManage(suite.member, project)
	suite.Require().NoError(err)
	suite.False(ok)

	_, err = suite.service.AddMember(AddMemberInput{ProjectID: project.ID, ActorID: suite.owner.ID, UserID: suite.member.ID, Role: models.ProjectRoleManager})
	suite.Require().NoError(err)

	ok, err = suite.service.CanManage(suite.member, project)
	suite.Require().NoError(err)
	suite.True(ok)

	_, err = suite.service.CanAccess(suite.member, 9999)
	suite.ErrorIs(err, ErrProjectNotFound)
}

func (suite *ProjectServiceTestSuite) TestListProjects_ScopedToMembership() {
	_, err := suite.service.CreateProject(CreateProjectInput{Name: "Apollo", OwnerID: suite.owner.ID})
	suite.Require().NoError(err)
	_, err = suite.service.CreateProject(CreateProjectInput{Name: "Gemini", OwnerID: suite.member.ID})
	suite.Require().NoError(err)

	projects, total, err := suite.service.ListProjects(suite.owner, nil, 1, 20)
	suite.Require().NoError(err)
	suite.EqualValues(1, total)
	suite.Equal("Apollo", projects[0].Name)

	_, total, err = suite.service.ListProjects(suite.manager, nil, 1, 20)
	suite.Require().NoError(err)
	suite.EqualValues(2, total)
}

func (suite *ProjectServiceTestSuite) TestUpdateProject() {
	rate := int64(5000)
	project, err := suite.service.CreateProject(CreateProjectInput{Name: "Apollo", HourlyRate: &rate, OwnerID: suite.owner.ID})
	suite.Require().NoError(err)

	archived := models.ProjectStatusArchived
	name := "Apollo 11"
	updated, err := suite.service.UpdateProject(project.ID, UpdateProjectInput{Name: &name, Status: &archived, ClearRate: true})
	suite.Require().NoError(err)
	suite.Equal("Apollo 11", updated.Name)
	suite.Equal(models.ProjectStatusArchived, updated.Status)
	suite.Nil(updated.HourlyRate)

	bogus := models.ProjectStatus("paused")
	_, err = suite.service.UpdateProject(project.ID, UpdateProjectInput{Status: &bogus})
	suite.ErrorIs(err, ErrInvalidProjectStatus)

	_, err = suite.service.UpdateProject(9999, UpdateProjectInput{Name: &name})
	suite.ErrorIs(err, ErrProjectNotFound)
}

func (suite *ProjectServiceTestSuite) TestMembers() {
	project, err := suite.service.CreateProject(CreateProjectInput{Name: "Apollo", OwnerID: suite.owner.ID})
	suite.Require().NoError(err)

	_, err = suite.service.AddMember(AddMemberInput{ProjectID: project.ID, ActorID: suite.owner.ID, UserID: 4242})
	suite.ErrorIs(err, ErrUserNotFound)

	_, err = suite.service.AddMember(AddMemberInput{ProjectID: project.ID, ActorID: suite.owner.ID, UserID: suite.member.ID, Role: "guest"})
	suite.ErrorIs(err, ErrInvalidProjectRole)

	suite.ErrorIs(suite.service.RemoveMember(project.ID, suite.owner.ID), ErrCannotRemoveOwner)
	suite.ErrorIs(suite.service.RemoveMember(project.ID, suite.member.ID), ErrProjectMemberNotFound)

	_, err = suite.service.AddMember(AddMemberInput{ProjectID: project.ID, ActorID: suite.owner.ID, UserID: suite.member.ID})
	suite.Require().NoError(err)
	suite.NoError(suite.service.RemoveMember(project.ID, suite.member.ID))

	ok, err := suite.service.CanAccess(suite.member, project.ID)
	suite.Require().NoError(err)
	suite.False(ok)
}

func (suite *ProjectServiceTestSuite) TestUpdateMember() {
	project, err := suite.service.CreateProject(CreateProjectInput{Name: "Apollo", OwnerID: suite.owner.ID})
	suite.Require().NoError(err)
	_, err = suite.service.AddMember(AddMemberInput{ProjectID: project.ID, ActorID: suite.owner.ID, UserID: suite.member.ID})
	suite.Require().NoError(err)

	manager := models.ProjectRoleManager
	rate := int64(6500)
	updated, err := suite.service.UpdateMember(project.ID, suite.member.ID, UpdateMemberInput{Role: &manager, HourlyRate: &rate})
	suite.Require().NoError(err)
	suite.Equal(models.ProjectRoleManager, updated.Role)
	suite.Equal("member", updated.User.Username)

	ok, err := suite.service.CanManage(suite.member, project)
	suite.Require().NoError(err)
	suite.True(ok)

	cleared, err := suite.service.UpdateMember(project.ID, suite.member.ID, UpdateMemberInput{ClearRate: true})
	suite.Require().NoError(err)
	suite.Nil(cleared.HourlyRate)

	bogus := models.ProjectRole("owner")
	_, err = suite.service.UpdateMember(project.ID, suite.member.ID, UpdateMemberInput{Role: &bogus})
	suite.ErrorIs(err, ErrInvalidProjectRole)

	member := models.ProjectRoleMember
	_, err = suite.service.UpdateMember(project.ID, suite.owner.ID, UpdateMemberInput{Role: &member})
	suite.ErrorIs(err, ErrCannotDemoteOwner)

	inactive := false
	_, err = suite.service.UpdateMember(project.ID, suite.member.ID, UpdateMemberInput{IsActive: &inactive})
	suite.Require().NoError(err)
	ok, err = suite.service.CanAccess(suite.member, project.ID)
	suite.Require().NoError(err)
	suite.False(ok)

	_, err = suite.service.UpdateMember(project.ID, suite.member.ID, UpdateMemberInput{Role: &manager})
	suite.ErrorIs(err, ErrProjectMemberNotFound)

	members, err := suite.service.ListMembers(project.ID)
	suite.Require().NoError(err)
	suite.Len(members, 2)
}

func (suite *ProjectServiceTestSuite) TestDeleteProject() {
	project, err := suite.service.CreateProject(CreateProjectInput{Name: "Apollo", OwnerID: suite.owner.ID})
	suite.Require().NoError(err)

	running := &models.TimeEntry{UserID: suite.owner.ID, ProjectID: project.ID, StartTime: t0, Status: models.TimeEntryStatusRunning}
	suite.Require().NoError(suite.db.Create(running).Error)

	_, err = suite.service.DeleteProject(project.ID)
	suite.ErrorIs(err, ErrProjectHasRunningTimers)

	suite.Require().NoError(suite.db.Model(running).Update("status", models.TimeEntryStatusStopped).Error)
	deleted, err := suite.service.DeleteProject(project.ID)
	suite.Require().NoError(err)
	suite.Equal("Apollo", deleted.Name)

	_, err = suite.service.GetProject(project.ID)
	suite.ErrorIs(err, ErrProjectNotFound)
	_, err = suite.service.DeleteProject(project.ID)
	suite.ErrorIs(err, ErrProjectNotFound)
}

func TestProjectServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ProjectServiceTestSuite))
}
