package main

import (
	"github.com/econify/econify/internal/config"
	"github.com/econify/econify/internal/handlers"
	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/internal/services"
	"github.com/econify/econify/internal/utils"
	"github.com/econify/econify/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds the database, services and handlers shared by the routes.
type appServices struct {
	server    config.ServerConfig
	db        *gorm.DB
	taskQueue services.TaskQueue
	worker    *services.Worker
	hub       *services.SSEHub
	systemLog *services.SystemLogService
	reminders *services.ReminderService

	authHandler         *handlers.AuthHandler
	userHandler         *handlers.UserHandler
	projectHandler      *handlers.ProjectHandler
	teamHandler         *handlers.TeamHandler
	deliverableHandler  *handlers.DeliverableHandler
	notificationHandler *handlers.NotificationHandler
	systemLogHandler    *handlers.SystemLogHandler
	sseHandler          *handlers.SSEHandler
	healthHandler       *handlers.HealthHandler
	metricsHandler      *handlers.MetricsHandler
}

// bootstrap opens the database and wires every service, queue and scheduler.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	db, err := models.InitDB(&cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	if err := handlers.RegisterValidators(); err != nil {
		logger.Fatalf("Failed to register validators: %v", err)
	}

	loc := cfg.Grading.Location()

	// Notifications run through Redis when enabled, otherwise in-process
	hub := services.NewSSEHub()
	taskQueue := services.NewTaskQueue(&cfg.Redis)
	notificationService := services.NewNotificationService(db, hub, taskQueue)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(notificationService.Deliver)
	}

	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(notificationService.Deliver)
			if err := worker.Start(); err != nil {
				logger.Fatalf("Failed to start worker: %v", err)
			}
		}
	}

	systemLogService := services.NewSystemLogService(db)
	systemLogService.StartCleanupScheduler(cfg.Log.RetentionDays)

	reminders := services.NewReminderService(db, notificationService, loc)
	if err := reminders.StartScheduler(cfg.Grading.ReminderCron); err != nil {
		logger.Fatalf("Failed to start grading reminders: %v", err)
	}

	authService := services.NewAuthService(db, &cfg.JWT, services.NewLDAPService(&cfg.LDAP))
	if err := authService.EnsureBootstrapProfessor(&cfg.Bootstrap); err != nil {
		logger.Warn().Err(err).Msg("Failed to create bootstrap professor")
	}

	statsService := services.NewStatsService(db)
	gradeService := services.NewGradeService(db, &cfg.Grading, notificationService)
	juryService := services.NewJuryService(db, notificationService, cfg.Grading.DefaultJurySize)

	return &appServices{
		server:    cfg.Server,
		db:        db,
		taskQueue: taskQueue,
		worker:    worker,
		hub:       hub,
		systemLog: systemLogService,
		reminders: reminders,

		authHandler: handlers.NewAuthHandler(authService, cfg.LDAP.Enabled),
		userHandler: handlers.NewUserHandler(services.NewUserService(db)),
		projectHandler: handlers.NewProjectHandler(
			services.NewProjectService(db),
			statsService,
			services.NewExportService(statsService, loc),
		),
		teamHandler: handlers.NewTeamHandler(services.NewTeamService(db, cfg.Grading.MaxTeamSize)),
		deliverableHandler: handlers.NewDeliverableHandler(
			services.NewDeliverableService(db, loc),
			juryService,
			gradeService,
		),
		notificationHandler: handlers.NewNotificationHandler(notificationService),
		systemLogHandler:    handlers.NewSystemLogHandler(systemLogService),
		sseHandler:          handlers.NewSSEHandler(hub),
		healthHandler:       handlers.NewHealthHandler(db, taskQueue, hub),
		metricsHandler:      handlers.NewMetricsHandler(db, taskQueue, hub),
	}
}

// shutdown stops schedulers and the worker, then closes the queue and database.
func (s *appServices) shutdown() {
	s.reminders.StopScheduler()
	s.systemLog.StopCleanupScheduler()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if err := s.taskQueue.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close task queue")
	}
	if err := models.Close(s.db); err != nil {
		logger.Warn().Err(err).Msg("Failed to close database")
	}
}
