package main

import (
	"github.com/econify/econify/internal/middleware"
	"github.com/econify/econify/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes and returns the auth rate limiter so
// the caller can stop it on shutdown.
func registerRoutes(r *gin.Engine, svc *appServices) *middleware.RateLimiter {
	r.Use(logger.RequestID(), logger.GinLogger("/health", "/metrics"), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.server.AllowedOrigins))

	// Login and registration are the brute-force targets
	authLimiter := middleware.NewRateLimiter(svc.server.AuthRateLimit, svc.server.AuthRateBurst)

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", svc.metricsHandler.Metrics)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authLimiter.Middleware(), svc.authHandler.Register)
			auth.POST("/login", authLimiter.Middleware(), svc.authHandler.Login)
			auth.POST("/refresh", authLimiter.Middleware(), svc.authHandler.Refresh)
			auth.POST("/logout", svc.authHandler.Logout)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// SSE validates its own token since EventSource cannot send headers
		api.GET("/events/notifications", svc.sseHandler.StreamNotifications)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired(svc.db), middleware.AuditLog(svc.systemLog))
		{
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			protected.GET("/notifications", svc.notificationHandler.List)
			protected.PUT("/notifications/:id/read", svc.notificationHandler.MarkRead)

			// Shared read access
			protected.GET("/projects", svc.projectHandler.List)
			protected.GET("/projects/:id", svc.projectHandler.GetByID)
			protected.GET("/teams/project/:projectId", svc.teamHandler.ListByProject)
			protected.GET("/teams/:id/members", svc.teamHandler.Members)
			protected.GET("/deliverables/team/:teamId", svc.deliverableHandler.ListByTeam)
			protected.GET("/deliverables/:id/members", svc.deliverableHandler.Members)
			protected.GET("/deliverables/:id/jury-assigned", svc.deliverableHandler.JuryAssigned)
			protected.GET("/deliverables/:id/grades", svc.deliverableHandler.Aggregate)

			professor := protected.Group("", middleware.ProfessorRequired())
			{
				professor.GET("/projects/mine", svc.projectHandler.Mine)
				professor.POST("/projects", svc.projectHandler.Create)
				professor.PUT("/projects/:id", svc.projectHandler.Update)
				professor.DELETE("/projects/:id", svc.projectHandler.Delete)
				professor.GET("/projects/:id/stats", svc.projectHandler.Stats)
				professor.GET("/projects/:id/gradebook.xlsx", svc.projectHandler.Gradebook)

				professor.POST("/teams/remove-user", svc.teamHandler.RemoveUser)
				professor.DELETE("/teams/:id", svc.teamHandler.Delete)

				professor.GET("/deliverables/professor", svc.deliverableHandler.ListForProfessor)
				professor.POST("/deliverables/assign-jury", svc.deliverableHandler.AssignJury)
				professor.GET("/deliverables/:id/jury", svc.deliverableHandler.Jurors)
				professor.PUT("/deliverables/:id/release", svc.deliverableHandler.ToggleRelease)
				professor.GET("/deliverables/:id/grades/professor", svc.deliverableHandler.ProfessorGrades)

				professor.GET("/users", svc.userHandler.List)
				professor.PUT("/users/:id/active", svc.userHandler.SetActive)
				professor.GET("/system-logs", svc.systemLogHandler.List)
			}

			student := protected.Group("", middleware.StudentRequired())
			{
				student.POST("/teams", svc.teamHandler.Create)
				student.POST("/teams/join", svc.teamHandler.Join)
				student.POST("/teams/leave", svc.teamHandler.Leave)

				student.POST("/deliverables", svc.deliverableHandler.Create)
				student.PUT("/deliverables/:id", svc.deliverableHandler.Update)
				student.DELETE("/deliverables/:id", svc.deliverableHandler.Delete)
				student.GET("/deliverables/assigned", svc.deliverableHandler.Assigned)
				student.POST("/deliverables/grade", svc.deliverableHandler.SubmitGrade)
				student.GET("/deliverables/:id/grades/student", svc.deliverableHandler.StudentGrades)
			}
		}
	}

	return authLimiter
}
