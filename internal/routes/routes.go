package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clinic-app-server/internal/config"
	"clinic-app-server/internal/handlers"
	"clinic-app-server/internal/logger"
	"clinic-app-server/internal/metrics"
	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/models"
)

// Dependencies are the services and infrastructure the routes are built from.
type Dependencies struct {
	Config       *config.Config
	Log          *logger.Logger
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Accounts     handlers.AccountService
	Appointments handlers.AppointmentService
	EMR          handlers.EMRService
	Health       *handlers.HealthHandler
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	cfg := deps.Config

	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(deps.Log),
		deps.Metrics.Middleware(),
	)

	authHandler := handlers.NewAuthHandler(deps.Accounts, cfg)
	userHandler := handlers.NewUserHandler(deps.Accounts)
	appointmentHandler := handlers.NewAppointmentHandler(deps.Appointments)
	emrHandler := handlers.NewEMRHandler(deps.EMR, cfg.Uploads.MaxBytes)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		userRoutes := private.Group("/users")
		{
			// Any authenticated user, so patients can pick a doctor.
			userRoutes.GET("/doctors", userHandler.GetDoctors)
			userRoutes.GET("/patients", userHandler.GetPatients)

			adminRoutes := userRoutes.Group("")
			adminRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
			{
				adminRoutes.POST("", userHandler.CreateUser)
				adminRoutes.GET("", userHandler.GetUsers)
				adminRoutes.GET("/:id", userHandler.GetUserByID)
				adminRoutes.PUT("/:id", userHandler.UpdateUser)
				adminRoutes.DELETE("/:id", userHandler.DeleteUser)
			}
		}

		// Role and ownership checks for appointments and EMR live in the services.
		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointments)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.PATCH("/:id", appointmentHandler.UpdateAppointment)
			appointmentRoutes.POST("/:id/cancel", appointmentHandler.CancelAppointment)
			appointmentRoutes.POST("/:id/complete", appointmentHandler.CompleteAppointment)
			appointmentRoutes.POST("/:id/reschedule", appointmentHandler.RescheduleAppointment)
		}

		emrRoutes := private.Group("/emr")
		{
			emrRoutes.POST("/requests", emrHandler.CreateRequest)
			emrRoutes.GET("/requests", emrHandler.GetRequests)
			emrRoutes.GET("/requests/:id", emrHandler.GetRequestByID)
			emrRoutes.POST("/requests/:id/review", emrHandler.ReviewRequest)

			emrRoutes.POST("/files", emrHandler.UploadFile)
			emrRoutes.GET("/files", emrHandler.GetFiles)
			emrRoutes.GET("/files/visible", emrHandler.GetVisibleFiles)
			emrRoutes.GET("/files/:id", emrHandler.GetFileByID)
			emrRoutes.GET("/files/:id/download", emrHandler.DownloadFile)
		}
	}

	if deps.Health != nil {
		router.GET("/health", deps.Health.Liveness)
		router.GET("/health/ready", deps.Health.Readiness)
	}
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
}
