package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/timetracker-api/internal/constants"
	"github.com/yukikurage/timetracker-api/internal/database"
	"github.com/yukikurage/timetracker-api/internal/models"
	"github.com/yukikurage/timetracker-api/internal/realtime"
	"github.com/yukikurage/timetracker-api/internal/repository"
	"github.com/yukikurage/timetracker-api/internal/services"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "supersecret"

// apiEnv is the full router over an in-memory database
type apiEnv struct {
	db       *gorm.DB
	router   *gin.Engine
	hub      *realtime.Hub
	auth     *services.AuthService
	users    *services.UserService
	projects *services.ProjectService
	tasks    *services.TaskService
	timer    *services.TimerService
	activity *services.ActivityService
}

func newAPIEnv(t *testing.T, generator services.TaskGenerator) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every query on the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { sqlDB.Close() })

	log := zap.NewNop()
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	entryRepo := repository.NewTimeEntryRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	env := &apiEnv{
		db:       db,
		hub:      realtime.NewHub(log),
		auth:     services.NewAuthService(userRepo),
		projects: services.NewProjectService(projectRepo, userRepo),
		tasks:    services.NewTaskService(taskRepo, projectRepo, generator),
		timer:    services.NewTimerService(entryRepo, projectRepo, taskRepo, log),
		activity: services.NewActivityService(activityRepo, entryRepo, 0.3),
	}
	env.users = services.NewUserService(userRepo, env.auth)
	notifier := realtime.NewNotifier(env.hub)

	r := gin.New()
	r.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("secret"))))
	RegisterRoutes(r, Handlers{
		Health:        NewHealthHandler(db),
		Auth:          NewAuthHandler(env.auth),
		Users:         NewUserHandler(env.users, log),
		TimeEntries:   NewTimeEntryHandler(env.timer, notifier, log),
		Projects:      NewProjectHandler(env.projects, notifier, log),
		Tasks:         NewTaskHandler(env.tasks, notifier, log),
		Activity:      NewActivityHandler(env.activity, notifier, log),
		Notifications: NewNotificationHandler(notifier),
		WebSocket:     NewWebSocketHandler(env.hub, env.projects, realtime.NewUpgrader(nil), realtime.WSOptions{}, log),
	}, Access{
		Users:       env.auth,
		Projects:    env.projects,
		Tasks:       env.tasks,
		TimeEntries: env.timer,
	})
	env.router = r
	return env
}

func (e *apiEnv) createUser(t *testing.T, username string, role models.UserRole) *models.User {
	t.Helper()
	user, err := e.auth.Signup(services.SignupInput{
		Email:    username + "@example.com",
		Username: username,
		Password: testPassword,
		Role:     role,
	})
	require.NoError(t, err)
	return user
}

// login signs the user in and returns the session cookies
func (e *apiEnv) login(t *testing.T, username string) []*http.Cookie {
	t.Helper()
	w := e.do(http.MethodPost, "/api/auth/login", map[string]string{
		"login":    username,
		"password": testPassword,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func (e *apiEnv) createProject(t *testing.T, name string, owner *models.User, members ...*models.User) *models.Project {
	t.Helper()
	rate := int64(5000)
	project, err := e.projects.CreateProject(services.CreateProjectInput{
		Name:       name,
		HourlyRate: &rate,
		OwnerID:    owner.ID,
	})
	require.NoError(t, err)
	for _, m := range members {
		_, err := e.projects.AddMember(services.AddMemberInput{
			ProjectID: project.ID,
			ActorID:   owner.ID,
			UserID:    m.ID,
		})
		require.NoError(t, err)
	}
	return project
}

func (e *apiEnv) do(method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// listen registers a recording connection for userID on the hub
func (e *apiEnv) listen(t *testing.T, userID uint64) *recordingConn {
	t.Helper()
	conn := newRecordingConn()
	require.NoError(t, e.hub.Connect(conn, userID))
	return conn
}

var connSeq atomic.Int64

// recordingConn keeps every frame the hub sends it
type recordingConn struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newRecordingConn() *recordingConn {
	return &recordingConn{id: fmt.Sprintf("rec-%d", connSeq.Add(1))}
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), msg...))
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *recordingConn) events() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var ev map[string]any
		if err := json.Unmarshal(f, &ev); err == nil {
			out = append(out, ev)
		}
	}
	return out
}

// types lists event types in arrival order, leaving out the connection
// acknowledgement
func (c *recordingConn) types() []string {
	var out []string
	for _, ev := range c.events() {
		if typ, _ := ev["type"].(string); typ != "connection" {
			out = append(out, typ)
		}
	}
	return out
}

func (c *recordingConn) last(typ string) map[string]any {
	evs := c.events()
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i]["type"] == typ {
			return evs[i]
		}
	}
	return nil
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
