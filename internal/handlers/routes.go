package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/timetracker-api/internal/middleware"
	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/services"
)

// Handlers groups every HTTP handler the API exposes
type Handlers struct {
	Health        *HealthHandler
	Auth          *AuthHandler
	Users         *UserHandler
	TimeEntries   *TimeEntryHandler
	Projects      *ProjectHandler
	Tasks         *TaskHandler
	Activity      *ActivityHandler
	Notifications *NotificationHandler
	WebSocket     *WebSocketHandler
}

// Access holds the lookups the permission middleware runs against
type Access struct {
	Users       *services.AuthService
	Projects    *services.ProjectService
	Tasks       *services.TaskService
	TimeEntries *services.TimerService
}

// RegisterRoutes mounts the API on r. Session middleware must already be
// installed.
func RegisterRoutes(r *gin.Engine, h Handlers, access Access) {
	r.GET("/health", h.Health.Health)

	authenticated := []gin.HandlerFunc{
		middleware.RequireAuth(),
		middleware.LoadCurrentUser(access.Users),
	}
	privileged := middleware.RequirePrivileged()

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", h.Auth.Signup)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/logout", h.Auth.Logout)
			auth.GET("/me", middleware.RequireAuth(), h.Auth.GetCurrentUser)
		}

		admin := middleware.RequireRoles(models.UserRoleAdmin)
		users := api.Group("/users")
		users.Use(authenticated...)
		{
			users.GET("", privileged, h.Users.ListUsers)
			users.POST("", admin, h.Users.CreateUser)
			users.GET("/:id", h.Users.GetUser)
			users.PUT("/:id", h.Users.UpdateUser)
			users.DELETE("/:id", admin, h.Users.DeleteUser)
		}

		entryAccess := middleware.RequireTimeEntryAccess(access.TimeEntries)
		entries := api.Group("/time-entries")
		entries.Use(authenticated...)
		{
			entries.GET("", h.TimeEntries.ListTimeEntries)
			entries.POST("", h.TimeEntries.CreateTimeEntry)
			entries.GET("/my", h.TimeEntries.ListMyTimeEntries)
			entries.GET("/active", h.TimeEntries.GetActiveTimeEntry)
			entries.POST("/start", h.TimeEntries.StartTimer)
			entries.POST("/stop", h.TimeEntries.StopActiveTimer)
			entries.GET("/:id", entryAccess, h.TimeEntries.GetTimeEntry)
			entries.PUT("/:id", entryAccess, h.TimeEntries.UpdateTimeEntry)
			entries.DELETE("/:id", entryAccess, h.TimeEntries.DeleteTimeEntry)
			entries.POST("/:id/stop", entryAccess, h.TimeEntries.StopTimeEntry)
		}

		projectAccess := middleware.RequireProjectAccess(access.Projects)
		projectManager := middleware.RequireProjectManager(access.Projects)
		projects := api.Group("/projects")
		projects.Use(authenticated...)
		{
			projects.POST("", privileged, h.Projects.CreateProject)
			projects.GET("", h.Projects.ListProjects)
			projects.GET("/:id", projectAccess, h.Projects.GetProject)
			projects.PATCH("/:id", projectAccess, projectManager, h.Projects.UpdateProject)
			projects.DELETE("/:id", projectAccess, h.Projects.DeleteProject)
			projects.GET("/:id/members", projectAccess, h.Projects.ListMembers)
			projects.POST("/:id/members", projectAccess, projectManager, h.Projects.AddMember)
			projects.PUT("/:id/members/:user_id", projectAccess, projectManager, h.Projects.UpdateMember)
			projects.DELETE("/:id/members/:user_id", projectAccess, projectManager, h.Projects.RemoveMember)
			projects.GET("/:id/tasks", projectAccess, h.Tasks.ListTasks)
			projects.POST("/:id/tasks", projectAccess, h.Tasks.CreateTask)
			projects.POST("/:id/tasks/generate", projectAccess, h.Tasks.GenerateTasks)
		}

		taskAccess := middleware.RequireTaskAccess(access.Tasks, access.Projects)
		tasks := api.Group("/tasks")
		tasks.Use(authenticated...)
		{
			tasks.GET("/:id", taskAccess, h.Tasks.GetTask)
			tasks.PATCH("/:id", taskAccess, h.Tasks.UpdateTask)
			tasks.DELETE("/:id", taskAccess, h.Tasks.DeleteTask)
		}

		activity := api.Group("/activity-logs")
		activity.Use(authenticated...)
		{
			activity.POST("", h.Activity.LogActivity)
			activity.POST("/batch", h.Activity.LogActivityBatch)
			activity.GET("", h.Activity.ListActivity)
			activity.GET("/:id", h.Activity.GetActivityLog)
			activity.DELETE("/:id", h.Activity.DeleteActivityLog)
		}

		screenshots := api.Group("/screenshots")
		screenshots.Use(authenticated...)
		{
			screenshots.POST("", h.Activity.RecordScreenshot)
			screenshots.GET("", h.Activity.ListScreenshots)
			screenshots.GET("/:id", h.Activity.GetScreenshot)
			screenshots.PUT("/:id", h.Activity.UpdateScreenshot)
			screenshots.DELETE("/:id", h.Activity.DeleteScreenshot)
		}

		notifications := api.Group("/notifications")
		notifications.Use(authenticated...)
		{
			notifications.POST("", admin, h.Notifications.SendNotification)
		}

		ws := api.Group("/ws")
		ws.Use(authenticated...)
		{
			ws.GET("", h.WebSocket.Connect)
			ws.GET("/stats", privileged, h.WebSocket.Stats)
		}
	}
}
