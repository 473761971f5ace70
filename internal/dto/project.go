package dto

import (
	"time"

	"github.com/yukikurage/timetracker-api/internal/models"
)

// ProjectDTO represents a project in API responses
type ProjectDTO struct {
	ID          uint64               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	ClientName  string               `json:"client_name"`
	Status      models.ProjectStatus `json:"status"`
	HourlyRate  *int64               `json:"hourly_rate"`
	Budget      *int64               `json:"budget"`
	Deadline    *time.Time           `json:"deadline"`
	OwnerID     uint64               `json:"owner_id"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// ProjectSummaryDTO is the short form embedded in time entries and tasks
type ProjectSummaryDTO struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	ClientName string `json:"client_name,omitempty"`
}

// ProjectMemberDTO represents a member in a project
type ProjectMemberDTO struct {
	User       UserSummaryDTO     `json:"user"`
	Role       models.ProjectRole `json:"role"`
	HourlyRate *int64             `json:"hourly_rate"`
	IsActive   bool               `json:"is_active"`
	JoinedAt   time.Time          `json:"joined_at"`
}

// ProjectDetailDTO represents detailed project information
type ProjectDetailDTO struct {
	ProjectDTO
	Members   []ProjectMemberDTO `json:"members"`
	CanManage bool               `json:"can_manage"`
}

// ProjectListResponse represents a paginated list of projects
type ProjectListResponse struct {
	Projects   []ProjectDTO `json:"projects"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalCount int64        `json:"total_count"`
	TotalPages int          `json:"total_pages"`
}

// ToProjectDTO converts a Project model to ProjectDTO
func ToProjectDTO(p models.Project) ProjectDTO {
	return ProjectDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		ClientName:  p.ClientName,
		Status:      p.Status,
		HourlyRate:  p.HourlyRate,
		Budget:      p.Budget,
		Deadline:    p.Deadline,
		OwnerID:     p.OwnerID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ToProjectSummaryDTO converts a Project model to ProjectSummaryDTO
func ToProjectSummaryDTO(p models.Project) ProjectSummaryDTO {
	return ProjectSummaryDTO{ID: p.ID, Name: p.Name, ClientName: p.ClientName}
}

// ToProjectMemberDTO converts a member to DTO
func ToProjectMemberDTO(member models.ProjectMember) ProjectMemberDTO {
	return ProjectMemberDTO{
		User:       ToUserSummaryDTO(member.User),
		Role:       member.Role,
		HourlyRate: member.HourlyRate,
		IsActive:   member.IsActive,
		JoinedAt:   member.JoinedAt,
	}
}

// ToProjectMemberDTOs converts a slice of members
func ToProjectMemberDTOs(members []models.ProjectMember) []ProjectMemberDTO {
	memberDTOs := make([]ProjectMemberDTO, len(members))
	for i, member := range members {
		memberDTOs[i] = ToProjectMemberDTO(member)
	}
	return memberDTOs
}

// ToProjectDetailDTO converts a project with members to detailed DTO
func ToProjectDetailDTO(p models.Project, members []models.ProjectMember, canManage bool) ProjectDetailDTO {
	return ProjectDetailDTO{
		ProjectDTO: ToProjectDTO(p),
		Members:    ToProjectMemberDTOs(members),
		CanManage:  canManage,
	}
}

// ToProjectListResponse converts a slice of projects to ProjectListResponse
func ToProjectListResponse(projects []models.Project, page, pageSize int, totalCount int64) ProjectListResponse {
	items := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		items[i] = ToProjectDTO(p)
	}

	return ProjectListResponse{
		Projects:   items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages(totalCount, pageSize),
	}
}
