package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/timetracker-api/internal/config"
	"github.com/yukikurage/timetracker-api/internal/constants"
	"github.com/yukikurage/timetracker-api/internal/database"
	"github.com/yukikurage/timetracker-api/internal/handlers"
	"github.com/yukikurage/timetracker-api/internal/logger"
	"github.com/yukikurage/timetracker-api/internal/middleware"
	"github.com/yukikurage/timetracker-api/internal/realtime"
	"github.com/yukikurage/timetracker-api/internal/repository"
	"github.com/yukikurage/timetracker-api/internal/services"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.GinMode)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	db, err := database.Connect(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run migrations
	if err := database.MigrateDatabase(db, zlog); err != nil {
		zlog.Fatal("failed to run migrations", zap.Error(err))
	}

	store, err := newSessionStore(cfg)
	if err != nil {
		zlog.Fatal("failed to create session store", zap.Error(err))
	}
	// Configure session options based on environment
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(zlog))
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	entryRepo := repository.NewTimeEntryRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// AI task generation is optional
	var generator services.TaskGenerator
	if cfg.OpenAIAPIKey != "" {
		generator = services.NewAIService(cfg.OpenAIAPIKey)
	}

	authService := services.NewAuthService(userRepo)
	userService := services.NewUserService(userRepo, authService)
	projectService := services.NewProjectService(projectRepo, userRepo)
	taskService := services.NewTaskService(taskRepo, projectRepo, generator)
	timerService := services.NewTimerService(entryRepo, projectRepo, taskRepo, zlog.Named("timer"))
	activityService := services.NewActivityService(activityRepo, entryRepo, cfg.ProductivityAlertThreshold)

	hub := realtime.NewHub(zlog.Named("hub"))
	notifier := realtime.NewNotifier(hub)
	hub.SetPresence(notifier.UserStatusChanged)

	wsOpts := realtime.WSOptions{
		WriteTimeout:    cfg.WSWriteTimeout,
		PongTimeout:     cfg.WSPongTimeout,
		MaxMessageBytes: cfg.WSMaxMessageBytes,
	}

	handlers.RegisterRoutes(r, handlers.Handlers{
		Health:        handlers.NewHealthHandler(db),
		Auth:          handlers.NewAuthHandler(authService),
		Users:         handlers.NewUserHandler(userService, zlog),
		TimeEntries:   handlers.NewTimeEntryHandler(timerService, notifier, zlog),
		Projects:      handlers.NewProjectHandler(projectService, notifier, zlog),
		Tasks:         handlers.NewTaskHandler(taskService, notifier, zlog),
		Activity:      handlers.NewActivityHandler(activityService, notifier, zlog),
		Notifications: handlers.NewNotificationHandler(notifier),
		WebSocket: handlers.NewWebSocketHandler(hub, projectService,
			realtime.NewUpgrader(cfg.WSAllowedOrigins), wsOpts, zlog.Named("ws")),
	}, handlers.Access{
		Users:       authService,
		Projects:    projectService,
		Tasks:       taskService,
		TimeEntries: timerService,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		zlog.Info("server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	// Websocket handlers block until their socket closes, so close them first
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSessionStore(cfg *config.Config) (sessions.Store, error) {
	if cfg.SessionStore == "redis" {
		return redisStore.NewStore(
			constants.RedisSessionPoolSize,
			"tcp",
			cfg.RedisAddr(),
			"", // password (empty = no password)
			[]byte(cfg.SessionSecret),
		)
	}
	return cookie.NewStore([]byte(cfg.SessionSecret)), nil
}
